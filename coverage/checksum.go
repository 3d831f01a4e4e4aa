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
	"encoding/binary"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/unsafe"
)

// Checksum returns a fingerprint of a verdict sequence.  It covers region
// order, coordinates, names, outcomes and every failing position, so two runs
// over the same inputs produce the same value.
func Checksum(verdicts []Verdict) uint64 {
	h := seahash.New()
	var buf [16]byte
	for i := range verdicts {
		v := &verdicts[i]
		r := &v.Region
		h.Write(unsafe.StringToBytes(r.ChrName))
		h.Write([]byte{0})
		h.Write(unsafe.StringToBytes(r.Name))
		h.Write([]byte{0})
		h.Write(unsafe.StringToBytes(r.Description))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Start0))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(r.End))
		binary.LittleEndian.PutUint32(buf[8:12], uint32(len(v.Failures)))
		buf[12] = 0
		if v.Passed {
			buf[12] = 1
		}
		h.Write(buf[:13])
		for _, f := range v.Failures {
			binary.LittleEndian.PutUint32(buf[0:4], uint32(f.Pos))
			buf[4] = byte(f.Reason)
			h.Write(buf[:5])
		}
	}
	return h.Sum64()
}
