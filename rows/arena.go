// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package rows

const arenaSlab = 64 * 1024

// Arena is a slab allocator for the byte values of decoded
// batches. The caller owns the arena and must keep it alive
// for as long as any batch decoded into it; Reset reclaims
// all allocations at once.
//
// An Arena must not be used from multiple goroutines
// simultaneously.
type Arena struct {
	cur    []byte
	curIdx int // index of cur in slabs
	slabs  [][]byte
}

// Alloc returns a zeroed slice of n bytes backed by the arena.
func (a *Arena) Alloc(n int) []byte {
	if n == 0 {
		return []byte{}
	}
	if n > arenaSlab {
		// oversize allocations get a dedicated slab and do
		// not disturb cur
		big := make([]byte, n)
		a.slabs = append(a.slabs, big)
		return big
	}
	if len(a.cur)+n > cap(a.cur) {
		a.cur = make([]byte, 0, arenaSlab)
		a.slabs = append(a.slabs, a.cur)
		a.curIdx = len(a.slabs) - 1
	}
	off := len(a.cur)
	a.cur = a.cur[:off+n]
	// keep cur's slab entry in sync with the grown slice
	a.slabs[a.curIdx] = a.cur
	return a.cur[off : off+n : off+n]
}

// Copy copies b into the arena and returns the copy.
func (a *Arena) Copy(b []byte) []byte {
	if len(b) == 0 {
		return []byte{}
	}
	dst := a.Alloc(len(b))
	copy(dst, b)
	return dst
}

// Size returns the total number of bytes the arena has
// reserved from the runtime.
func (a *Arena) Size() int {
	n := 0
	for i := range a.slabs {
		n += cap(a.slabs[i])
	}
	return n
}

// Reset discards all allocations. Memory handed out before
// Reset must no longer be referenced.
func (a *Arena) Reset() {
	a.cur = nil
	a.slabs = a.slabs[:0]
}
