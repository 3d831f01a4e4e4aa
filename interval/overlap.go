package interval

import (
	"github.com/biogo/store/llrb"
)

type regionKey struct {
	chrName string
	start0  PosType
	end     PosType
	idx     int
}

// Compare compares two regionKey objects for use in llrb.
func (k regionKey) Compare(c2 llrb.Comparable) int {
	k2 := c2.(regionKey)
	if k.chrName != k2.chrName {
		if k.chrName < k2.chrName {
			return -1
		}
		return 1
	}
	if diff := int(k.start0) - int(k2.start0); diff != 0 {
		return diff
	}
	return k.idx - k2.idx
}

// CountOverlaps returns the number of regions which overlap at least one
// region starting at or before them on the same chromosome.  Overlaps are
// legal (each region is evaluated on its own); this is informational.
func CountOverlaps(regions []Region) int {
	tree := llrb.Tree{}
	for i, r := range regions {
		tree.Insert(regionKey{r.ChrName, r.Start0, r.End, i})
	}
	nOverlap := 0
	curChr := ""
	var maxEnd PosType
	first := true
	tree.Do(func(c llrb.Comparable) bool {
		k := c.(regionKey)
		if first || k.chrName != curChr {
			first = false
			curChr = k.chrName
			maxEnd = k.end
			return false
		}
		if k.start0 < maxEnd {
			nOverlap++
		}
		if k.end > maxEnd {
			maxEnd = k.end
		}
		return false
	})
	return nOverlap
}
