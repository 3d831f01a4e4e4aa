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

// Package pileup loads per-base read depths from samtools-mpileup-style text
// reports into an in-memory index.
//
// Only the CHROM, POS and depth columns (1, 2 and 4) are consumed; the read
// bases and qualities that follow are ignored.  No depth is recomputed here:
// the report is trusted to have been generated with the same base-quality and
// soft-clip filtering as the downstream variant caller.
package pileup

import (
	"bufio"
	"context"
	"io"

	"github.com/grailbio/ampliconqc/interval"
	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/pkg/errors"
)

// PosType is the integer type used to represent genomic positions.
type PosType = interval.PosType

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = interval.PosTypeMax

const (
	colChrom = 0
	colPos   = 1
	colDepth = 3
	// nMinCol is the minimum number of columns a usable line carries.
	nMinCol = colDepth + 1
)

// readBufSize bounds the portion of each line that is retained.  mpileup
// lines grow with depth (one base and one quality character per read), but
// only the leading columns are needed.
const readBufSize = 64 << 10

// readLinePrefix returns the next line without its trailing newline.  If the
// line doesn't fit in r's buffer, the first readBufSize bytes are copied to
// scratch and returned with truncated=true, and the rest of the line is
// discarded.
func readLinePrefix(r *bufio.Reader, scratch *[]byte) (line []byte, truncated bool, err error) {
	line, err = r.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		*scratch = append((*scratch)[:0], line...)
		for err == bufio.ErrBufferFull {
			_, err = r.ReadSlice('\n')
		}
		line = *scratch
		truncated = true
	}
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return
}

// openDepthReport opens path, transparently decompressing it if necessary.
// The returned function must be called to release the file.
func openDepthReport(ctx context.Context, path string) (reader io.Reader, closer func() error, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return nil, nil, errors.Wrapf(err, "pileup: open %s", path)
	}
	rc, _ := compress.NewReader(infile.Reader(ctx))
	closer = func() error {
		err := rc.Close()
		if e := infile.Close(ctx); e != nil && err == nil {
			err = e
		}
		return err
	}
	return rc, closer, nil
}
