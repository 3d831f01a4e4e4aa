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

/*
Given a BED file of amplicons and a samtools-mpileup report, bio-amplicon-coverage
reports which amplicons were not covered at the required depth.  An amplicon
passes only if every one of its bases has a depth record >= -c; a base with no
record (e.g. the pileup was run without -a, or the line was malformed) fails
the amplicon just like a low-depth base.

Depths are taken as-is.  Generate the mpileup with the same base-quality
threshold and soft-clip handling as the downstream variant caller.

The default report has one line per amplicon, in BED order:
  #CHROM START END NAME DESCRIPTION VERDICT N_MISSING N_BELOW_THRESHOLD FAILED_POSITIONS
where FAILED_POSITIONS lists runs of failing 1-based positions, e.g.
"102:BELOW_THRESHOLD,103-110:MISSING".  -format=legacy writes the free-text
report of the older amplicon coverage script instead.

The exit status is zero whenever the report was written, even if every
amplicon failed.

Sample usage:
bio-amplicon-coverage \
    -b panel.sambamba.bed -sambamba \
    -m sample.mpileup \
    -c 600 \
    -o sample.amplicon_coverage.tsv
*/
package main
