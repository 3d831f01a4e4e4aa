package interval

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/klauspost/compress/gzip"
)

// PosType is the coordinate type used throughout this module.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// Region is a named genomic interval, usually one amplicon of a targeted
// panel.  Start0 is 0-based and inclusive, End is exclusive, as in BED.
type Region struct {
	ChrName string
	Start0  PosType
	End     PosType
	// Name is the BED name column (column 4).
	Name string
	// Description is the free-text amplicon label.  It is column 7 of a
	// sambamba-style BED, and equal to Name otherwise.
	Description string
}

// Len returns the number of bases in the region.
func (r Region) Len() int {
	return int(r.End - r.Start0)
}

// String renders the region as <chr>:<1-based first pos>-<last pos>.
func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.ChrName, r.Start0+1, r.End)
}

// LoadRegionsOpts defines the behavior of LoadRegions.
type LoadRegionsOpts struct {
	// Sambamba requires the 8-column BED layout produced for sambamba
	// (chrom, start, end, coordinate key, score, strand, amplicon description,
	// gene ID), and takes Description from the 7th column.
	Sambamba bool
}

const (
	minRegionCols          = 4
	sambambaCols           = 8
	sambambaDescriptionCol = 6
)

// getTabTokens splits curLine on tabs, saving up to the first len(tokens)
// columns.  It returns the total number of columns on the line, which may
// exceed len(tokens).
func getTabTokens(tokens [][]byte, curLine []byte) int {
	nCol := 0
	for {
		tabPos := bytes.IndexByte(curLine, '\t')
		end := tabPos
		if tabPos == -1 {
			end = len(curLine)
		}
		if nCol < len(tokens) {
			tokens[nCol] = curLine[:end]
		}
		nCol++
		if tabPos == -1 {
			return nCol
		}
		curLine = curLine[tabPos+1:]
	}
}

// isBEDHeaderLine returns true for lines which carry no interval: blank
// lines, comments, and UCSC "track"/"browser" lines.
func isBEDHeaderLine(curLine []byte) bool {
	trimmed := bytes.TrimSpace(curLine)
	if len(trimmed) == 0 || trimmed[0] == '#' {
		return true
	}
	firstWord := trimmed
	if pos := bytes.IndexAny(trimmed, " \t"); pos != -1 {
		firstWord = trimmed[:pos]
	}
	s := gunsafe.BytesToString(firstWord)
	return s == "track" || s == "browser"
}

func invalidLine(lineIdx int, format string, args ...interface{}) error {
	return errors.E(errors.Invalid, fmt.Sprintf("interval.LoadRegions: line %d: ", lineIdx)+fmt.Sprintf(format, args...))
}

func scanRegions(scanner *bufio.Scanner, opts LoadRegionsOpts) (regions []Region, err error) {
	var tokens [sambambaCols][]byte
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := bytes.TrimRight(scanner.Bytes(), "\r")
		if isBEDHeaderLine(curLine) {
			continue
		}
		nCol := getTabTokens(tokens[:], curLine)
		if opts.Sambamba {
			if nCol != sambambaCols {
				return nil, invalidLine(lineIdx, "%d column(s), expected %d in sambamba BED", nCol, sambambaCols)
			}
		} else if nCol < minRegionCols {
			return nil, invalidLine(lineIdx, "%d column(s), expected at least %d (chrom, start, end, name)", nCol, minRegionCols)
		}
		if len(tokens[0]) == 0 {
			return nil, invalidLine(lineIdx, "empty chromosome name")
		}
		var start, end int
		if start, err = strconv.Atoi(gunsafe.BytesToString(tokens[1])); err != nil {
			return nil, invalidLine(lineIdx, "invalid start coordinate %q", tokens[1])
		}
		if end, err = strconv.Atoi(gunsafe.BytesToString(tokens[2])); err != nil {
			return nil, invalidLine(lineIdx, "invalid end coordinate %q", tokens[2])
		}
		if start < 0 {
			return nil, invalidLine(lineIdx, "negative start coordinate %d", start)
		}
		if end <= start || end >= PosTypeMax {
			return nil, invalidLine(lineIdx, "invalid coordinate pair [%d, %d)", start, end)
		}
		region := Region{
			ChrName: string(tokens[0]),
			Start0:  PosType(start),
			End:     PosType(end),
			Name:    string(tokens[3]),
		}
		if opts.Sambamba {
			region.Description = string(tokens[sambambaDescriptionCol])
		} else {
			region.Description = region.Name
		}
		regions = append(regions, region)
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.E(err, "interval.LoadRegions: read failed")
	}
	return regions, nil
}

// LoadRegions reads a region catalog from a BED stream, preserving input
// order.  Overlapping and duplicate regions are kept as-is.  Any malformed
// record is an error.
func LoadRegions(reader io.Reader, opts LoadRegionsOpts) ([]Region, error) {
	return scanRegions(bufio.NewScanner(reader), opts)
}

// LoadRegionsFromPath is a wrapper for LoadRegions that takes a path instead
// of an io.Reader.  Gzipped input is recognized by its extension.
func LoadRegionsFromPath(ctx context.Context, path string, opts LoadRegionsOpts) (regions []Region, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return nil, errors.E(err, "interval.LoadRegionsFromPath:", path)
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			return nil, errors.E(err, "interval.LoadRegionsFromPath:", path)
		}
	}
	if regions, err = LoadRegions(reader, opts); err != nil {
		return nil, errors.E(err, path)
	}
	log.Printf("%s: %d region(s) loaded", path, len(regions))
	return regions, nil
}
