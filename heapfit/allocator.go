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

import (
	"fmt"
	"unsafe"
)

// Allocator is a segregated-fit heap allocator over a single Host-backed
// arena. Its zero value is not usable; construct one with New.
type Allocator struct {
	host Host
	base unsafe.Pointer

	// prologBase never moves once set by New. epilogBase moves forward
	// every time the arena grows.
	prologBase int
	epilogBase int
}

// New reserves the sentinel regions on host and returns a ready allocator.
func New(host Host) (*Allocator, error) {
	off, err := host.Extend(2 * sentinelRegionSize)
	if err != nil {
		return nil, fmt.Errorf("heapfit: init: %w", err)
	}

	a := &Allocator{
		host:       host,
		base:       host.Base(),
		prologBase: off,
		epilogBase: off + sentinelRegionSize,
	}

	for i := 0; i < segListCount; i++ {
		pt := a.prologTripleOff(i)
		et := a.epilogTripleOff(i)
		a.writeWord(pt, 0)                                 // prolog pred, unused
		a.writeWord(pt+wordSize, uint32(a.epilogNode(i)))  // prolog succ -> epilog
		a.writeWord(pt+2*wordSize, 0)                      // prolog footer, terminates backward walks
		a.writeWord(et, 0)                                 // epilog header, terminates forward walks
		a.writeWord(et+wordSize, uint32(a.prologNode(i)))  // epilog pred -> prolog
		a.writeWord(et+2*wordSize, 0)                      // epilog succ, unused
	}
	return a, nil
}

// Alloc returns a payload slice of at least size bytes, or nil if size is
// zero. It panics if the host's arena is exhausted.
func (a *Allocator) Alloc(size int) []byte {
	if size <= 0 {
		return nil
	}
	asize := alignUp(size) + dwordSize

	if bp, ok := a.findFit(asize); ok {
		a.remove(bp)
		bsize := a.blockSize(bp)
		if bsize-asize >= minBlockSize {
			a.setBlock(bp, asize, false)
			rem := a.nextOff(bp, asize)
			a.setBlock(rem, bsize-asize, true)
			a.insert(rem)
			return a.sliceFor(bp, asize, size)
		}
		a.setBlock(bp, bsize, false)
		return a.sliceFor(bp, bsize, size)
	}

	bp := a.extendFor(asize)
	a.setBlock(bp, asize, false)
	return a.sliceFor(bp, asize, size)
}

// findFit walks size classes from classOf(asize) up to the largest,
// first-fit within each class, escalating on a class-wide miss.
func (a *Allocator) findFit(asize int) (int, bool) {
	for i := classOf(asize); i < segListCount; i++ {
		node := a.first(i)
		for !a.isSentinel(node) {
			if a.blockSize(node) >= asize {
				return node, true
			}
			node = a.succOff(node)
		}
	}
	return 0, false
}

// extendFor handles the no-fit path: absorb the arena's trailing free
// block if there is one, otherwise carve the new block out of freshly
// grown space. Either way it returns the new block's bp with no header
// written yet.
func (a *Allocator) extendFor(asize int) int {
	lastFooter := a.readWord(a.epilogBase - wordSize)
	if unpackFree(lastFooter) {
		lastSize := unpackSize(lastFooter)
		lastBp := a.epilogBase + wordSize - lastSize
		a.remove(lastBp)
		a.growArena(asize - lastSize)
		return lastBp
	}
	bp := a.epilogBase + wordSize
	a.growArena(asize)
	return bp
}

// Free returns block to the allocator, coalescing immediately with any
// free neighbor. A nil or zero-capacity block is a no-op.
func (a *Allocator) Free(block []byte) {
	if cap(block) == 0 {
		return
	}
	bp := a.offsetOf(block)
	a.checkLiveBlock(bp, cap(block)+dwordSize)
	a.freeAt(bp, cap(block)+dwordSize)
}

func (a *Allocator) checkLiveBlock(bp, size int) {
	if bp < a.prologBase+sentinelRegionSize+wordSize || bp >= a.epilogBase {
		panic("heapfit: block not in arena")
	}
	w := a.readWord(a.hdrOff(bp))
	if unpackFree(w) {
		panic("heapfit: double free")
	}
	if unpackSize(w) != size {
		panic("heapfit: corrupted block")
	}
}

func (a *Allocator) freeAt(bp, size int) {
	prevFooter := a.readWord(a.prevFooterOff(bp))
	nextHdr := a.readWord(a.hdrOff(a.nextOff(bp, size)))

	start, total := bp, size

	if unpackFree(prevFooter) {
		prevSize := unpackSize(prevFooter)
		prevBp := bp - prevSize
		a.remove(prevBp)
		start = prevBp
		total += prevSize
	}
	if unpackFree(nextHdr) {
		nextSize := unpackSize(nextHdr)
		nextBp := a.nextOff(bp, size)
		a.remove(nextBp)
		total += nextSize
	}

	a.setBlock(start, total, true)
	a.insert(start)
}

// isLastBlock reports whether the block at bp with the given size is the
// arena's last normal block, i.e. its next-header address is the arena's
// first epilog header.
func (a *Allocator) isLastBlock(bp, size int) bool {
	return a.hdrOff(a.nextOff(bp, size)) == a.epilogBase
}

// Realloc resizes block to size bytes using a forward-only absorption
// strategy: it considers only the next neighbor (never the previous one,
// which would force a data-moving memmove) and grows the arena in place
// when block is the last normal block. It falls back to
// allocate+copy+free when none of those apply.
func (a *Allocator) Realloc(block []byte, size int) []byte {
	if block == nil {
		return a.Alloc(size)
	}
	if size == 0 {
		a.Free(block)
		return nil
	}

	asize := alignUp(size) + dwordSize
	bp := a.offsetOf(block)
	cur := cap(block) + dwordSize
	a.checkLiveBlock(bp, cur)

	nextBp := a.nextOff(bp, cur)
	nextHdr := a.readWord(a.hdrOff(nextBp))
	nextFree := unpackFree(nextHdr)
	nextSize := unpackSize(nextHdr)

	var total int
	switch {
	case nextFree && cur+nextSize >= asize:
		a.remove(nextBp)
		total = cur + nextSize
	case !nextFree && cur >= asize:
		total = cur
	case a.isLastBlock(bp, cur):
		if nextFree {
			a.remove(nextBp)
			cur += nextSize
		}
		a.growArena(asize - cur)
		total = asize
	default:
		newBlock := a.Alloc(size)
		if newBlock != nil {
			copy(newBlock, block)
		}
		a.Free(block)
		return newBlock
	}

	if total-asize >= minBlockSize {
		a.setBlock(bp, asize, false)
		tail := a.nextOff(bp, asize)
		a.setBlock(tail, total-asize, true)
		a.insert(tail)
		return a.sliceFor(bp, asize, size)
	}
	a.setBlock(bp, total, false)
	return a.sliceFor(bp, total, size)
}

// growArena extends the host arena by delta bytes (rounded up to 8) and
// relocates the epilog sentinel region to the new end, fixing up whichever
// free block (or prolog, if a class's list is empty) currently points at
// the old epilog address.
func (a *Allocator) growArena(delta int) {
	delta = alignUp(delta)
	if delta == 0 {
		return
	}

	oldEpilog := a.epilogBase
	if _, err := a.host.Extend(delta); err != nil {
		panic(fmt.Errorf("heapfit: arena exhausted growing by %d bytes: %w", delta, err))
	}
	newEpilog := oldEpilog + delta

	a.relocate(oldEpilog, newEpilog, sentinelRegionSize)
	a.epilogBase = newEpilog

	for i := 0; i < segListCount; i++ {
		pred := a.predOff(a.epilogNode(i))
		a.setSucc(pred, a.epilogNode(i))
	}
}

// relocate copies n bytes from src to dst, high address to low, which is
// safe for overlapping ranges as long as dst >= src (growArena only ever
// moves the epilog region forward).
func (a *Allocator) relocate(src, dst, n int) {
	for off := n - wordSize; off >= 0; off -= wordSize {
		a.writeWord(dst+off, a.readWord(src+off))
	}
}
