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
package main

import (
	"context"
	"fmt"
	"math"

	"github.com/grailbio/ampliconqc/coverage"
	"github.com/grailbio/ampliconqc/interval"
	"github.com/grailbio/ampliconqc/pileup"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

type runOpts struct {
	bedPath          string
	mpileupPath      string
	minDepth         int
	outPath          string
	format           string
	sambamba         bool
	dictPath         string
	restrict         bool
	rejectDuplicates bool
	fastFail         bool
	parallelism      int
}

func (o *runOpts) validate() error {
	if o.bedPath == "" {
		return errors.E(errors.Invalid, "missing -b (amplicon BED path)")
	}
	if o.mpileupPath == "" {
		return errors.E(errors.Invalid, "missing -m (mpileup path)")
	}
	if o.minDepth < 0 {
		return errors.E(errors.Invalid, "missing or negative -c (minimum depth)")
	}
	if uint64(o.minDepth) > math.MaxUint32 {
		return errors.E(errors.Invalid, fmt.Sprintf("-c=%d is too large", o.minDepth))
	}
	if o.outPath == "" {
		return errors.E(errors.Invalid, "missing -o (output path)")
	}
	return nil
}

// run loads both inputs, evaluates every amplicon, and only then creates the
// report, so that no partial report is left behind on an input error.
func run(ctx context.Context, opts runOpts) error {
	if err := opts.validate(); err != nil {
		return err
	}
	reportFormat, err := coverage.ParseReportFormat(opts.format)
	if err != nil {
		return err
	}

	regions, err := interval.LoadRegionsFromPath(ctx, opts.bedPath, interval.LoadRegionsOpts{Sambamba: opts.sambamba})
	if err != nil {
		return err
	}
	if len(regions) == 0 {
		log.Error.Printf("%s: no amplicons found", opts.bedPath)
	}
	nBases := 0
	for _, r := range regions {
		nBases += r.Len()
	}
	log.Printf("%s: %d amplicon(s), %d base(s) to check", opts.bedPath, len(regions), nBases)
	if opts.dictPath != "" {
		var header *sam.Header
		if header, err = interval.LoadRefDict(ctx, opts.dictPath); err != nil {
			return err
		}
		if err = interval.ValidateRegions(regions, header); err != nil {
			return errors.E(err, opts.bedPath)
		}
	}
	if nOverlap := interval.CountOverlaps(regions); nOverlap > 0 {
		log.Printf("%s: %d amplicon(s) overlap an earlier one; each is evaluated separately", opts.bedPath, nOverlap)
	}

	pileupOpts := pileup.DefaultOpts
	pileupOpts.RejectDuplicates = opts.rejectDuplicates
	if opts.restrict {
		union := interval.NewBEDUnionFromRegions(regions)
		pileupOpts.Restrict = &union
		log.Debug.Printf("restricting depth index to %d base(s)", union.NBases())
	}
	idx, _, err := pileup.NewDepthIndexFromPath(ctx, opts.mpileupPath, pileupOpts)
	if err != nil {
		return err
	}

	evalOpts := coverage.DefaultOpts
	evalOpts.MinDepth = uint32(opts.minDepth)
	evalOpts.FastFail = opts.fastFail
	evalOpts.Parallelism = opts.parallelism
	verdicts, err := coverage.EvaluateAll(regions, idx, evalOpts)
	if err != nil {
		return err
	}
	summary := coverage.Summarize(verdicts)
	log.Printf("%d amplicon(s) passed, %d failed at minimum depth %d (verdict checksum %016x)",
		summary.NPassed, summary.NFailed, opts.minDepth, coverage.Checksum(verdicts))

	return coverage.WriteReportToPath(ctx, opts.outPath, verdicts, coverage.ReportOpts{
		Format:   reportFormat,
		MinDepth: evalOpts.MinDepth,
	})
}
