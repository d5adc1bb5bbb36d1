/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package heapfit

import "unsafe"

const (
	wordSize  = 4
	dwordSize = 8
	alignment = 8

	segListCount = 13

	// minBlockSize is header + pred + succ + footer.
	minBlockSize = 16

	// sentinelRegionSize is one prolog (or epilog) region: segListCount
	// triples of 3 words each.
	sentinelRegionSize = segListCount * 3 * wordSize

	// freeBit is the only meaningful status bit; bits 1-2 are always zero
	// because every block size is 8-byte aligned.
	freeBit = uint32(1)
)

func alignUp(n int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

func packWord(size int, free bool) uint32 {
	w := uint32(size)
	if free {
		w |= freeBit
	}
	return w
}

func unpackSize(w uint32) int {
	return int(w &^ uint32(alignment-1))
}

func unpackFree(w uint32) bool {
	return w&freeBit != 0
}

// ptr resolves an arena-relative byte offset to a live address.
func (a *Allocator) ptr(off int) unsafe.Pointer {
	return unsafe.Add(a.base, off)
}

func (a *Allocator) readWord(off int) uint32 {
	return *(*uint32)(a.ptr(off))
}

func (a *Allocator) writeWord(off int, w uint32) {
	*(*uint32)(a.ptr(off)) = w
}

// hdrOff, ftrOff and nextOff implement the HDR/FTR/NEXT boundary-tag
// arithmetic over a payload offset bp.
func (a *Allocator) hdrOff(bp int) int {
	return bp - wordSize
}

func (a *Allocator) blockSize(bp int) int {
	return unpackSize(a.readWord(a.hdrOff(bp)))
}

func (a *Allocator) blockFree(bp int) bool {
	return unpackFree(a.readWord(a.hdrOff(bp)))
}

func (a *Allocator) ftrOff(bp, size int) int {
	return bp + size - dwordSize
}

func (a *Allocator) nextOff(bp, size int) int {
	return bp + size
}

// prevFooterOff returns the offset of the previous block's footer word,
// read without knowing the previous block's size up front.
func (a *Allocator) prevFooterOff(bp int) int {
	return bp - dwordSize
}

// setBlock writes size/status to both the header and footer of the block
// starting at bp. The footer offset is derived from the size being
// written, not from a stale header read, so callers never need to worry
// about write order.
func (a *Allocator) setBlock(bp, size int, free bool) {
	w := packWord(size, free)
	a.writeWord(a.hdrOff(bp), w)
	a.writeWord(a.ftrOff(bp, size), w)
}

// setPred and setSucc write a free block's (or sentinel node's) links.
// pred lives at bp, succ at bp+wordSize — the same layout for a normal
// free block's payload area, a prolog node, and an epilog node, so list
// splicing needs no special cases for sentinels.
func (a *Allocator) predOff(node int) int {
	return int(a.readWord(node))
}

func (a *Allocator) succOff(node int) int {
	return int(a.readWord(node + wordSize))
}

func (a *Allocator) setPred(node, v int) {
	a.writeWord(node, uint32(v))
}

func (a *Allocator) setSucc(node, v int) {
	a.writeWord(node+wordSize, uint32(v))
}

// isSentinel reports whether node is a prolog/epilog list node rather than
// a real free block, by the same zero-header signal that terminates
// boundary-tag walks at either end of the arena.
func (a *Allocator) isSentinel(node int) bool {
	return a.readWord(a.hdrOff(node)) == 0
}

// sliceFor builds the []byte payload view handed back to callers: data
// pointer at bp, cap spanning the block's usable bytes (total size minus
// header+footer overhead), len trimmed to the caller's requested size.
func (a *Allocator) sliceFor(bp, totalSize, reqSize int) []byte {
	p := (*byte)(a.ptr(bp))
	return unsafe.Slice(p, totalSize-dwordSize)[:reqSize]
}

// offsetOf recovers the arena offset of a payload slice previously handed
// out by sliceFor. It reads the slice header's data pointer directly
// (rather than &block[0]) so it also works for a zero-length live block.
func (a *Allocator) offsetOf(block []byte) int {
	data := *(*uintptr)(unsafe.Pointer(&block))
	return int(data - uintptr(a.base))
}
