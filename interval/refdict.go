package interval

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/sam"
)

// LoadRefDict reads a reference sequence dictionary (a SAM header, as in a
// Picard .dict file, or any SAM file whose header lists the contigs).
func LoadRefDict(ctx context.Context, path string) (header *sam.Header, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return nil, errors.E(err, "interval.LoadRefDict:", path)
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	var r *sam.Reader
	if r, err = sam.NewReader(infile.Reader(ctx)); err != nil {
		return nil, errors.E(errors.Invalid, err, "interval.LoadRefDict:", path)
	}
	return r.Header(), nil
}

// ValidateRegions checks that every region lies on a contig listed in header,
// and ends within it.
func ValidateRegions(regions []Region, header *sam.Header) error {
	refLens := make(map[string]int, len(header.Refs()))
	for _, ref := range header.Refs() {
		refLens[ref.Name()] = ref.Len()
	}
	for i, r := range regions {
		refLen, ok := refLens[r.ChrName]
		if !ok {
			return errors.E(errors.Invalid, fmt.Sprintf("interval.ValidateRegions: region #%d (%s, %s) is on contig %s, which is not in the reference dictionary", i+1, r.Name, r, r.ChrName))
		}
		if int(r.End) > refLen {
			return errors.E(errors.Invalid, fmt.Sprintf("interval.ValidateRegions: region #%d (%s, %s) extends past the end of %s (length %d)", i+1, r.Name, r, r.ChrName, refLen))
		}
	}
	return nil
}
