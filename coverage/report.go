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
package coverage

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/hts/bgzf"
	"github.com/klauspost/compress/gzip"
)

// ReportFormat selects the report layout.
type ReportFormat int

const (
	// FormatTSV writes one line per region with its verdict and failing
	// positions.
	FormatTSV ReportFormat = iota
	// FormatLegacy writes the free-text report of the older amplicon
	// coverage script: failing regions only, followed by the number of
	// passing ones.
	FormatLegacy
)

var formatNames = map[string]ReportFormat{
	"tsv":    FormatTSV,
	"legacy": FormatLegacy,
}

// ParseReportFormat maps a -format flag value to a ReportFormat.
func ParseReportFormat(s string) (ReportFormat, error) {
	f, ok := formatNames[s]
	if !ok {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("coverage.ParseReportFormat: unrecognized format %q (want tsv or legacy)", s))
	}
	return f, nil
}

// ReportOpts controls report rendering.
type ReportOpts struct {
	Format ReportFormat
	// MinDepth is quoted in the legacy report.
	MinDepth uint32
}

const tsvHeader = "#CHROM\tSTART\tEND\tNAME\tDESCRIPTION\tVERDICT\tN_MISSING\tN_BELOW_THRESHOLD\tFAILED_POSITIONS"

// appendFailedRuns renders failures as comma-separated runs of the form
// pos:REASON or first-last:REASON, merging consecutive positions which failed
// for the same reason.
func appendFailedRuns(buf []byte, failures []FailedPos) []byte {
	for i := 0; i < len(failures); {
		j := i + 1
		for j < len(failures) && failures[j].Reason == failures[i].Reason && failures[j].Pos == failures[j-1].Pos+1 {
			j++
		}
		if i != 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(failures[i].Pos), 10)
		if j-i > 1 {
			buf = append(buf, '-')
			buf = strconv.AppendInt(buf, int64(failures[j-1].Pos), 10)
		}
		buf = append(buf, ':')
		buf = append(buf, failures[i].Reason.String()...)
		i = j
	}
	return buf
}

func countReasons(failures []FailedPos) (nMissing, nBelow uint32) {
	for _, f := range failures {
		switch f.Reason {
		case Missing:
			nMissing++
		case BelowThreshold:
			nBelow++
		}
	}
	return
}

func writeTSVReport(tsvw *tsv.Writer, verdicts []Verdict) error {
	tsvw.WriteString(tsvHeader)
	if err := tsvw.EndLine(); err != nil {
		return err
	}
	var runBuf []byte
	for i := range verdicts {
		v := &verdicts[i]
		tsvw.WriteString(v.Region.ChrName)
		tsvw.WriteUint32(uint32(v.Region.Start0))
		tsvw.WriteUint32(uint32(v.Region.End))
		tsvw.WriteString(v.Region.Name)
		tsvw.WriteString(v.Region.Description)
		if v.Passed {
			tsvw.WriteString("PASS")
		} else {
			tsvw.WriteString("FAIL")
		}
		nMissing, nBelow := countReasons(v.Failures)
		tsvw.WriteUint32(nMissing)
		tsvw.WriteUint32(nBelow)
		if len(v.Failures) == 0 {
			tsvw.WriteByte('.')
		} else {
			runBuf = appendFailedRuns(runBuf[:0], v.Failures)
			tsvw.WriteString(gunsafe.BytesToString(runBuf))
		}
		if err := tsvw.EndLine(); err != nil {
			return err
		}
	}
	return nil
}

func writeLegacyReport(tsvw *tsv.Writer, verdicts []Verdict, minDepth uint32) error {
	tsvw.WriteString(fmt.Sprintf("The listed amplicons were not completely covered at the required coverage (%dX)", minDepth))
	if err := tsvw.EndLine(); err != nil {
		return err
	}
	for i := range verdicts {
		v := &verdicts[i]
		if v.Passed {
			continue
		}
		tsvw.WriteString(v.Region.ChrName)
		tsvw.WriteUint32(uint32(v.Region.Start0))
		tsvw.WriteUint32(uint32(v.Region.End))
		tsvw.WriteString(v.Region.Description)
		if err := tsvw.EndLine(); err != nil {
			return err
		}
	}
	summary := Summarize(verdicts)
	tsvw.WriteString(fmt.Sprintf("The remaining %d amplicons were covered above the required coverage (%dX)", summary.NPassed, minDepth))
	return tsvw.EndLine()
}

// WriteReport renders verdicts to w in the order given.
func WriteReport(w io.Writer, verdicts []Verdict, opts ReportOpts) error {
	tsvw := tsv.NewWriter(w)
	var err error
	switch opts.Format {
	case FormatTSV:
		err = writeTSVReport(tsvw, verdicts)
	case FormatLegacy:
		err = writeLegacyReport(tsvw, verdicts, opts.MinDepth)
	default:
		return errors.E(errors.Invalid, fmt.Sprintf("coverage.WriteReport: unknown format %d", opts.Format))
	}
	if err != nil {
		return err
	}
	return tsvw.Flush()
}

// WriteReportToPath is a wrapper for WriteReport that creates path.  A path
// ending in .gz is gzip-compressed, and one ending in .bgz is
// BGZF-compressed (so it can be indexed with tabix).  On error, nothing is
// left at path.
func WriteReportToPath(ctx context.Context, path string, verdicts []Verdict, opts ReportOpts) error {
	if err := writeToPath(ctx, path, func(w io.Writer) error {
		return WriteReport(w, verdicts, opts)
	}); err != nil {
		return errors.E(err, "coverage.WriteReportToPath:", path)
	}
	log.Printf("coverage.WriteReportToPath: done, %d region(s) written to %s", len(verdicts), path)
	return nil
}

// writeToPath creates path and passes write a (possibly compressing) writer
// for it.  The file is only committed if write and every Close succeed;
// otherwise it is discarded.
func writeToPath(ctx context.Context, path string, write func(w io.Writer) error) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dst.Discard(ctx)
			return
		}
		file.CloseAndReport(ctx, dst, &err)
	}()
	w := dst.Writer(ctx)
	var zw io.WriteCloser
	if strings.HasSuffix(path, ".bgz") {
		zw = bgzf.NewWriter(w, 1)
	} else if fileio.DetermineType(path) == fileio.Gzip {
		zw = gzip.NewWriter(w)
	}
	if zw != nil {
		w = zw
	}
	if err = write(w); err != nil {
		return err
	}
	if zw != nil {
		err = zw.Close()
	}
	return err
}
