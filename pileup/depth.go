// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pileup

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"

	"github.com/grailbio/ampliconqc/interval"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/pkg/errors"
)

// DepthRecord is a single per-base depth observation.  Pos is 1-based, as in
// mpileup text.
type DepthRecord struct {
	ChrName string
	Pos     PosType
	Depth   uint32
}

// ChrDepths maps 1-based positions on one chromosome to their depth.
type ChrDepths map[PosType]uint32

// DepthIndex maps (chromosome, 1-based position) to depth.
//
// When the same position is reported more than once, the last record wins.
// A DepthIndex is never modified after construction, so it can be queried
// from any number of goroutines.
type DepthIndex struct {
	chrs map[string]ChrDepths
	n    int
}

// Lookup returns the depth recorded for chrName:pos, and whether there was a
// record at all.
func (idx *DepthIndex) Lookup(chrName string, pos PosType) (depth uint32, ok bool) {
	depth, ok = idx.chrs[chrName][pos]
	return
}

// Chr returns the depths for one chromosome.  The result is nil (and every
// lookup on it misses) if the chromosome never appeared.  It must not be
// modified.
func (idx *DepthIndex) Chr(chrName string) ChrDepths {
	return idx.chrs[chrName]
}

// Len returns the number of distinct positions in the index.
func (idx *DepthIndex) Len() int {
	return idx.n
}

// Opts controls depth-report loading.
type Opts struct {
	// Restrict, if non-nil, drops records outside the given interval union
	// at load time.  This only saves memory; lookups inside the union are
	// unaffected.
	Restrict *interval.BEDUnion
	// RejectDuplicates makes a repeated (chromosome, position) an error
	// instead of letting the last record win.
	RejectDuplicates bool
}

// DefaultOpts are the Opts used by the command-line tool unless overridden.
var DefaultOpts = Opts{}

// Stats summarizes a depth-report load.
type Stats struct {
	// NLines is the number of non-blank lines read.
	NLines int
	// NMalformed is the number of lines skipped because they could not be
	// parsed.  Their positions look exactly like absent ones to a lookup.
	NMalformed int
	// NFiltered is the number of well-formed records dropped by Opts.Restrict.
	NFiltered int
	// NDuplicate is the number of records which replaced an earlier record
	// for the same position.
	NDuplicate int
}

type indexBuilder struct {
	idx         DepthIndex
	opts        Opts
	restrict    interval.BEDUnion
	lastChrName string
	lastChr     ChrDepths
	stats       Stats
}

func newIndexBuilder(opts Opts) *indexBuilder {
	b := &indexBuilder{
		idx:  DepthIndex{chrs: make(map[string]ChrDepths)},
		opts: opts,
	}
	if opts.Restrict != nil {
		b.restrict = opts.Restrict.Clone()
	}
	return b
}

// add inserts one record.  chrName may alias a read buffer; it is copied
// only when the chromosome changes.
func (b *indexBuilder) add(chrName []byte, pos PosType, depth uint32) error {
	if name := gunsafe.BytesToString(chrName); b.lastChr == nil || name != b.lastChrName {
		chrDepths, found := b.idx.chrs[name]
		if !found {
			chrDepths = make(ChrDepths)
			b.idx.chrs[string(chrName)] = chrDepths
		}
		b.lastChrName = string(chrName)
		b.lastChr = chrDepths
	}
	// lastChrName is used rather than chrName since the union caches it.
	if b.opts.Restrict != nil && !b.restrict.ContainsByName(b.lastChrName, pos-1) {
		b.stats.NFiltered++
		return nil
	}
	if _, dup := b.lastChr[pos]; dup {
		if b.opts.RejectDuplicates {
			return errors.Errorf("pileup: duplicate record for %s:%d", b.lastChrName, pos)
		}
		b.stats.NDuplicate++
	} else {
		b.idx.n++
	}
	b.lastChr[pos] = depth
	return nil
}

// parseDepthLine extracts CHROM, POS and depth from one mpileup line.  ok is
// false if the line is malformed.
func parseDepthLine(line []byte, truncated bool) (chrName []byte, pos PosType, depth uint32, ok bool) {
	var tokens [nMinCol][]byte
	nCol := 0
	for nCol < nMinCol {
		tabPos := bytes.IndexByte(line, '\t')
		if tabPos == -1 {
			tokens[nCol] = line
			nCol++
			line = nil
			break
		}
		tokens[nCol] = line[:tabPos]
		nCol++
		line = line[tabPos+1:]
	}
	if nCol < nMinCol {
		return
	}
	// A truncated line must still show the end of the depth column.
	if truncated && line == nil {
		return
	}
	chrName = tokens[colChrom]
	if len(chrName) == 0 {
		return
	}
	pos64, err := strconv.ParseInt(gunsafe.BytesToString(tokens[colPos]), 10, 32)
	if err != nil || pos64 <= 0 || pos64 >= PosTypeMax {
		return
	}
	depth64, err := strconv.ParseUint(gunsafe.BytesToString(tokens[colDepth]), 10, 32)
	if err != nil {
		return
	}
	return chrName, PosType(pos64), uint32(depth64), true
}

// NewDepthIndex reads an mpileup-style report.  Malformed lines (too few
// columns, unparseable or non-positive position, unparseable or negative
// depth) are skipped and counted; only read errors and, with
// opts.RejectDuplicates, repeated positions are fatal.
func NewDepthIndex(reader io.Reader, opts Opts) (*DepthIndex, Stats, error) {
	b := newIndexBuilder(opts)
	br := bufio.NewReaderSize(reader, readBufSize)
	var scratch []byte
	lineIdx := 0
	for {
		line, truncated, err := readLinePrefix(br, &scratch)
		if err != nil && err != io.EOF {
			return nil, b.stats, errors.Wrapf(err, "pileup.NewDepthIndex: read failed after line %d", lineIdx)
		}
		if len(line) > 0 || err == nil {
			lineIdx++
		}
		if len(bytes.TrimSpace(line)) != 0 {
			b.stats.NLines++
			if chrName, pos, depth, ok := parseDepthLine(line, truncated); ok {
				if e := b.add(chrName, pos, depth); e != nil {
					return nil, b.stats, errors.Wrapf(e, "pileup.NewDepthIndex: line %d", lineIdx)
				}
			} else {
				b.stats.NMalformed++
				log.Debug.Printf("pileup.NewDepthIndex: skipping malformed line %d", lineIdx)
			}
		}
		if err == io.EOF {
			break
		}
	}
	return &b.idx, b.stats, nil
}

// NewDepthIndexFromPath is a wrapper for NewDepthIndex that takes a path
// instead of an io.Reader.  Compressed reports are decompressed on the fly.
func NewDepthIndexFromPath(ctx context.Context, path string, opts Opts) (idx *DepthIndex, stats Stats, err error) {
	reader, closer, err := openDepthReport(ctx, path)
	if err != nil {
		return nil, stats, err
	}
	defer func() {
		if e := closer(); e != nil && err == nil {
			err = e
		}
	}()
	if idx, stats, err = NewDepthIndex(reader, opts); err != nil {
		return nil, stats, errors.Wrap(err, path)
	}
	if stats.NMalformed > 0 {
		log.Error.Printf("%s: skipped %d malformed line(s); their positions will be reported as MISSING", path, stats.NMalformed)
	}
	if stats.NDuplicate > 0 {
		log.Error.Printf("%s: %d position(s) reported more than once; the last record was kept", path, stats.NDuplicate)
	}
	log.Printf("%s: depth index built, %d position(s) from %d line(s), %d outside the regions of interest",
		path, idx.Len(), stats.NLines, stats.NFiltered)
	return idx, stats, nil
}

// NewDepthIndexFromRecords builds an index from in-memory records, applying
// the same duplicate and Restrict rules as NewDepthIndex.
func NewDepthIndexFromRecords(records []DepthRecord, opts Opts) (*DepthIndex, error) {
	b := newIndexBuilder(opts)
	for _, r := range records {
		if err := b.add([]byte(r.ChrName), r.Pos, r.Depth); err != nil {
			return nil, err
		}
	}
	return &b.idx, nil
}
