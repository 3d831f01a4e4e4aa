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
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/ampliconqc/coverage"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
)

var (
	bedPath          = flag.String("b", "", "Input amplicon BED path (required)")
	mpileupPath      = flag.String("m", "", "Input mpileup path (required)")
	minDepth         = flag.Int("c", -1, "Minimum depth required at every base of an amplicon (required)")
	outPath          = flag.String("o", "", "Output report path (required); a .gz suffix enables gzip compression, .bgz enables BGZF")
	format           = flag.String("format", "tsv", "Report format; 'tsv' and 'legacy' supported")
	sambamba         = flag.Bool("sambamba", false, "Require the 8-column sambamba BED layout and report its 7th column as the amplicon description")
	dictPath         = flag.String("dict", "", "Optional reference dictionary (.dict or SAM header); amplicons must lie within its contigs")
	restrict         = flag.Bool("restrict", true, "Only keep mpileup records inside some amplicon (saves memory, doesn't change results)")
	rejectDuplicates = flag.Bool("reject-duplicates", false, "Fail if the mpileup reports a position twice, instead of keeping the last record")
	fastFail         = flag.Bool("fast-fail", coverage.DefaultOpts.FastFail, "Stop scanning an amplicon at its first failing base; the report then lists only that base")
	parallelism      = flag.Int("parallelism", coverage.DefaultOpts.Parallelism, "Maximum number of amplicons evaluated simultaneously; 0 = runtime.NumCPU()")
)

func bioAmpliconCoverageUsage() {
	fmt.Printf("Usage: %s -b bedpath -m mpileuppath -c mindepth -o outpath [OPTIONS]\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioAmpliconCoverageUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 0 {
		log.Fatalf("Unexpected positional arguments; please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	opts := runOpts{
		bedPath:          *bedPath,
		mpileupPath:      *mpileupPath,
		minDepth:         *minDepth,
		outPath:          *outPath,
		format:           *format,
		sambamba:         *sambamba,
		dictPath:         *dictPath,
		restrict:         *restrict,
		rejectDuplicates: *rejectDuplicates,
		fastFail:         *fastFail,
		parallelism:      *parallelism,
	}
	if err := run(vcontext.Background(), opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
