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

// Package coverage decides, for each region of an amplicon panel, whether
// every base reached a minimum read depth, and renders the verdicts.
package coverage

import (
	"runtime"

	"github.com/grailbio/ampliconqc/interval"
	"github.com/grailbio/ampliconqc/pileup"
	"github.com/grailbio/base/traverse"
)

// PosType is the integer type used to represent genomic positions.
type PosType = interval.PosType

// FailReason describes why a single position failed.
type FailReason uint8

const (
	// BelowThreshold means the position has a depth record, but the depth is
	// less than the minimum.
	BelowThreshold FailReason = iota + 1
	// Missing means the depth source has no (well-formed) record for the
	// position.
	Missing
)

var failReasonNames = [...]string{"UNKNOWN", "BELOW_THRESHOLD", "MISSING"}

func (r FailReason) String() string {
	if int(r) >= len(failReasonNames) {
		return failReasonNames[0]
	}
	return failReasonNames[r]
}

// FailedPos is a position which did not reach the minimum depth.  Pos is
// 1-based.
type FailedPos struct {
	Pos    PosType
	Reason FailReason
}

// Verdict is the QC outcome for one region.  Passed is true iff Failures is
// empty.  Failures are in increasing position order.
type Verdict struct {
	Region   interval.Region
	Passed   bool
	Failures []FailedPos
}

// Opts controls region evaluation.
type Opts struct {
	// MinDepth is the depth every base of a region must reach.  A depth equal
	// to MinDepth passes.
	MinDepth uint32
	// FastFail stops scanning a region at its first failing position, so
	// Failures holds at most one entry.  Pass/fail results are unchanged.
	FastFail bool
	// Parallelism is the number of regions evaluated concurrently by
	// EvaluateAll; 0 means runtime.NumCPU().
	Parallelism int
}

// DefaultOpts are the Opts used by the command-line tool unless overridden.
var DefaultOpts = Opts{
	FastFail:    false,
	Parallelism: 0,
}

// Evaluate checks every base of region against idx.  BED coordinates are
// 0-based half-open while the depth index is 1-based, so the positions
// checked are [Start0+1, End].
func Evaluate(region interval.Region, idx *pileup.DepthIndex, opts Opts) Verdict {
	var failures []FailedPos
	chrDepths := idx.Chr(region.ChrName)
	for pos := region.Start0 + 1; pos <= region.End; pos++ {
		depth, ok := chrDepths[pos]
		if !ok {
			failures = append(failures, FailedPos{pos, Missing})
		} else if depth < opts.MinDepth {
			failures = append(failures, FailedPos{pos, BelowThreshold})
		} else {
			continue
		}
		if opts.FastFail {
			break
		}
	}
	return Verdict{
		Region:   region,
		Passed:   len(failures) == 0,
		Failures: failures,
	}
}

// EvaluateAll evaluates each region independently.  verdicts[i] always
// belongs to regions[i], whatever the degree of parallelism.
func EvaluateAll(regions []interval.Region, idx *pileup.DepthIndex, opts Opts) (verdicts []Verdict, err error) {
	verdicts = make([]Verdict, len(regions))
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(regions) {
		parallelism = len(regions)
	}
	if parallelism <= 1 {
		for i, region := range regions {
			verdicts[i] = Evaluate(region, idx, opts)
		}
		return verdicts, nil
	}
	// Each job owns the verdict slots congruent to its index, so no locking is
	// needed; idx is only read.
	if err = traverse.Each(parallelism, func(jobIdx int) error {
		for i := jobIdx; i < len(regions); i += parallelism {
			verdicts[i] = Evaluate(regions[i], idx, opts)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return verdicts, nil
}

// Summary counts passing and failing regions.
type Summary struct {
	NPassed int
	NFailed int
}

// Summarize counts the verdicts.
func Summarize(verdicts []Verdict) (s Summary) {
	for i := range verdicts {
		if verdicts[i].Passed {
			s.NPassed++
		} else {
			s.NFailed++
		}
	}
	return
}
