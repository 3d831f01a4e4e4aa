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
package pileup_test

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/ampliconqc/interval"
	"github.com/grailbio/ampliconqc/pileup"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// makeTestMpileup joins rows with "\t" and lines with "\n".
func makeTestMpileup(data [][]string) string {
	testString := ""
	for _, row := range data {
		testString += strings.Join(row, "\t") + "\n"
	}
	return testString
}

var testRows = [][]string{
	{"chr1", "101", "A", "600", "..........", "IIIIIIIIII"},
	{"chr1", "102", "C", "499", ",,,,,", "IIIII"},
	{"chr2", "7", "G", "0", "*", "*"},
	{"chr1", "104", "T", "12"},
}

func TestNewDepthIndex(t *testing.T) {
	idx, stats, err := pileup.NewDepthIndex(strings.NewReader(makeTestMpileup(testRows)), pileup.Opts{})
	assert.NoError(t, err)
	expect.EQ(t, idx.Len(), 4)
	expect.EQ(t, stats, pileup.Stats{NLines: 4})

	for _, tt := range []struct {
		chrName string
		pos     pileup.PosType
		depth   uint32
		ok      bool
	}{
		{"chr1", 101, 600, true},
		{"chr1", 102, 499, true},
		{"chr1", 103, 0, false},
		{"chr1", 104, 12, true},
		{"chr2", 7, 0, true},
		{"chr3", 101, 0, false},
	} {
		depth, ok := idx.Lookup(tt.chrName, tt.pos)
		expect.EQ(t, ok, tt.ok, "%s:%d", tt.chrName, tt.pos)
		expect.EQ(t, depth, tt.depth, "%s:%d", tt.chrName, tt.pos)
	}
	expect.EQ(t, len(idx.Chr("chr1")), 3)
	expect.EQ(t, len(idx.Chr("chrM")), 0)
}

func TestNewDepthIndexMalformedLines(t *testing.T) {
	input := makeTestMpileup([][]string{
		{"chr1", "101", "A", "600", "x", "I"},
		{"chr1", "102", "A"},
		{"chr1", "103", "A", "lots", "x", "I"},
		{"chr1", "104", "A", "-3", "x", "I"},
		{"chr1", "0", "A", "50", "x", "I"},
		{"chr1", "1e3", "A", "50", "x", "I"},
		{"", "106", "A", "50", "x", "I"},
		{"chr1", "107", "A", "700", "x", "I"},
	}) + "\n   \n" + "chr1\t108\tA\t800" // no trailing newline
	idx, stats, err := pileup.NewDepthIndex(strings.NewReader(input), pileup.Opts{})
	assert.NoError(t, err)
	expect.EQ(t, stats.NMalformed, 6)
	expect.EQ(t, stats.NLines, 9)
	expect.EQ(t, idx.Len(), 3)
	for _, pos := range []pileup.PosType{102, 103, 104, 105, 106} {
		_, ok := idx.Lookup("chr1", pos)
		expect.False(t, ok, "position %d", pos)
	}
	depth, ok := idx.Lookup("chr1", 108)
	expect.True(t, ok)
	expect.EQ(t, depth, uint32(800))
}

func TestNewDepthIndexLongLine(t *testing.T) {
	bases := strings.Repeat(".", 200000)
	input := makeTestMpileup([][]string{
		{"chr1", "101", "A", "200000", bases, bases},
		{"chr1", "102", "A", "5", ".....", "IIIII"},
	})
	idx, stats, err := pileup.NewDepthIndex(strings.NewReader(input), pileup.Opts{})
	assert.NoError(t, err)
	expect.EQ(t, stats.NMalformed, 0)
	depth, ok := idx.Lookup("chr1", 101)
	expect.True(t, ok)
	expect.EQ(t, depth, uint32(200000))
	depth, ok = idx.Lookup("chr1", 102)
	expect.True(t, ok)
	expect.EQ(t, depth, uint32(5))
}

func TestNewDepthIndexDuplicates(t *testing.T) {
	input := makeTestMpileup([][]string{
		{"chr1", "101", "A", "600"},
		{"chr1", "101", "A", "20"},
	})
	idx, stats, err := pileup.NewDepthIndex(strings.NewReader(input), pileup.Opts{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.NDuplicate)
	require.Equal(t, 1, idx.Len())
	depth, _ := idx.Lookup("chr1", 101)
	require.Equal(t, uint32(20), depth, "last record wins")

	_, _, err = pileup.NewDepthIndex(strings.NewReader(input), pileup.Opts{RejectDuplicates: true})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate record for chr1:101")
	require.Contains(t, err.Error(), "line 2")

	_, err = pileup.NewDepthIndexFromRecords([]pileup.DepthRecord{
		{ChrName: "chr1", Pos: 5, Depth: 1},
		{ChrName: "chr1", Pos: 5, Depth: 2},
	}, pileup.Opts{RejectDuplicates: true})
	require.Error(t, err)
}

func TestNewDepthIndexRestrict(t *testing.T) {
	union := interval.NewBEDUnionFromRegions([]interval.Region{
		{ChrName: "chr1", Start0: 100, End: 102},
	})
	idx, stats, err := pileup.NewDepthIndex(strings.NewReader(makeTestMpileup(testRows)), pileup.Opts{Restrict: &union})
	assert.NoError(t, err)
	expect.EQ(t, stats.NFiltered, 2)
	expect.EQ(t, idx.Len(), 2)
	depth, ok := idx.Lookup("chr1", 102)
	expect.True(t, ok)
	expect.EQ(t, depth, uint32(499))
	_, ok = idx.Lookup("chr1", 104)
	expect.False(t, ok)
	_, ok = idx.Lookup("chr2", 7)
	expect.False(t, ok)
}

func TestNewDepthIndexFromRecords(t *testing.T) {
	idx, err := pileup.NewDepthIndexFromRecords([]pileup.DepthRecord{
		{ChrName: "chr1", Pos: 101, Depth: 600},
		{ChrName: "chr2", Pos: 101, Depth: 3},
		{ChrName: "chr1", Pos: 102, Depth: 7},
		{ChrName: "chr1", Pos: 101, Depth: 9},
	}, pileup.DefaultOpts)
	assert.NoError(t, err)
	expect.EQ(t, idx.Len(), 3)
	depth, _ := idx.Lookup("chr1", 101)
	expect.EQ(t, depth, uint32(9))
	depth, _ = idx.Lookup("chr2", 101)
	expect.EQ(t, depth, uint32(3))
}

func TestNewDepthIndexFromPath(t *testing.T) {
	ctx := context.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	content := makeTestMpileup(testRows)
	plainPath := filepath.Join(tmpdir, "sample.mpileup")
	assert.NoError(t, ioutil.WriteFile(plainPath, []byte(content), 0644))
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(content))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	gzPath := filepath.Join(tmpdir, "sample.mpileup.gz")
	assert.NoError(t, ioutil.WriteFile(gzPath, buf.Bytes(), 0644))

	for _, path := range []string{plainPath, gzPath} {
		idx, stats, err := pileup.NewDepthIndexFromPath(ctx, path, pileup.Opts{})
		assert.NoError(t, err, path)
		expect.EQ(t, idx.Len(), 4, path)
		expect.EQ(t, stats.NLines, 4, path)
	}

	_, _, err = pileup.NewDepthIndexFromPath(ctx, filepath.Join(tmpdir, "missing.mpileup"), pileup.Opts{})
	expect.NotNil(t, err)
}
