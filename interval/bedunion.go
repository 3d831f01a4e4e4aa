package interval

import (
	"sort"
)

// searchPosType returns the index of x in a[], or the position where x would
// be inserted if x isn't in a (this could be len(a)).  It's exactly the same
// as sort.SearchInt(), except for PosType.
func searchPosType(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// fwdsearchPosType checks a[idx], then a[idx + 1], then a[idx + 3], then
// a[idx + 7], etc., and then uses binary search to finish the job.  It's
// usually a better choice than searchPosType when iterating.
func fwdsearchPosType(a []PosType, x PosType, idx int) int {
	nextIncr := 1
	startIdx := idx
	endIdx := len(a)
	for idx < endIdx {
		if a[idx] >= x {
			endIdx = idx
			break
		}
		startIdx = idx + 1
		idx += nextIncr
		nextIncr *= 2
	}
	for startIdx < endIdx {
		midIdx := int(uint(startIdx+endIdx) >> 1)
		if a[midIdx] >= x {
			endIdx = midIdx
		} else {
			startIdx = midIdx + 1
		}
	}
	return startIdx
}

// BEDUnion is the union of a set of regions, stored per chromosome as a
// length-2N sequence where the (0-based) start of merged interval #k is in
// element [2k] and its end is in element [2k+1], in increasing order.
//
// Queries update a small search cursor, so a BEDUnion must not be queried
// from several goroutines at once; use Clone to give each one its own cursor.
type BEDUnion struct {
	// nameMap is a chromosome-keyed map with disjoint-interval-set values.
	// Always initialized.
	nameMap map[string]([]PosType)
	// lastChrIntervals points to the disjoint-interval-set for the most recently
	// queried chromosome.
	lastChrIntervals []PosType
	// lastChrName is the name of the last queried chromosome.  If it's
	// nonempty, it must be in sync with lastChrIntervals.
	lastChrName string
	// lastPosPlus1 is 1 plus the last spot-queried position.
	lastPosPlus1 PosType
	// lastIdx is searchPosType(lastChrIntervals, lastPosPlus1).  Cached to
	// accelerate sequential queries.
	lastIdx int
	// isSequential is true if all queries since the last chromosome change have
	// been in order of nondecreasing position.
	isSequential bool
}

// ContainsByName checks whether the (0-based) interval [pos, pos+1) is
// contained within the BEDUnion.
func (u *BEDUnion) ContainsByName(chrName string, pos PosType) bool {
	posPlus1 := pos + 1
	if chrName != u.lastChrName {
		u.lastChrName = chrName
		u.lastChrIntervals = u.nameMap[chrName]
		// Force use of searchPosType() on the first query for a contig.
		if u.lastChrIntervals == nil {
			return false
		}
		u.lastIdx = searchPosType(u.lastChrIntervals, posPlus1)
		u.lastPosPlus1 = posPlus1
		u.isSequential = true
		return u.lastIdx&1 == 1
	}
	if u.lastChrIntervals == nil {
		return false
	}
	if u.isSequential {
		if posPlus1 >= u.lastPosPlus1 {
			u.lastIdx = fwdsearchPosType(u.lastChrIntervals, posPlus1, u.lastIdx)
			u.lastPosPlus1 = posPlus1
			return u.lastIdx&1 == 1
		}
		u.isSequential = false
	}
	return searchPosType(u.lastChrIntervals, posPlus1)&1 == 1
}

// NBases returns the number of distinct bases covered by the union.
func (u *BEDUnion) NBases() int {
	n := 0
	for _, chrIntervals := range u.nameMap {
		for i := 0; i < len(chrIntervals); i += 2 {
			n += int(chrIntervals[i+1] - chrIntervals[i])
		}
	}
	return n
}

// NewBEDUnionFromRegions merges regions (in any order) into a BEDUnion.
// Touching and overlapping regions are merged.
func NewBEDUnionFromRegions(regions []Region) (bedUnion BEDUnion) {
	sorted := make([]Region, len(regions))
	copy(sorted, regions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ChrName != sorted[j].ChrName {
			return sorted[i].ChrName < sorted[j].ChrName
		}
		return sorted[i].Start0 < sorted[j].Start0
	})

	bedUnion.nameMap = make(map[string]([]PosType))
	prevChr := ""
	var prevStart, prevEnd PosType
	var chrIntervals []PosType
	for _, region := range sorted {
		if region.ChrName != prevChr {
			if prevChr != "" {
				bedUnion.nameMap[prevChr] = append(chrIntervals, prevStart, prevEnd)
			}
			prevChr = region.ChrName
			chrIntervals = []PosType{}
			prevStart = region.Start0
			prevEnd = region.End
			continue
		}
		if region.Start0 > prevEnd {
			// New interval doesn't overlap previous one, so we can save the previous
			// one.
			chrIntervals = append(chrIntervals, prevStart, prevEnd)
			prevStart = region.Start0
			prevEnd = region.End
		} else if region.End > prevEnd {
			// Intervals overlap, merge them.
			prevEnd = region.End
		}
	}
	if prevChr != "" {
		bedUnion.nameMap[prevChr] = append(chrIntervals, prevStart, prevEnd)
	}
	return
}

// Clone returns a new BEDUnion which shares the interval set, but has its own
// search state.
func (u *BEDUnion) Clone() (bedUnion BEDUnion) {
	bedUnion.nameMap = u.nameMap
	return
}
