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

import "github.com/alloclab/segfit/heapfit/internal/xfnv"

// Check walks the whole arena and every segregated list and reports
// whether the structural invariants still hold. It is a diagnostic, not
// something the hot path calls: it is O(blocks + free entries).
func (a *Allocator) Check() bool {
	return a.checkBlocks() && a.checkLists()
}

// checkBlocks walks every normal block header-to-header, verifying that
// each header matches its footer and that no two adjacent blocks are both
// free.
func (a *Allocator) checkBlocks() bool {
	bp := a.prologBase + sentinelRegionSize + wordSize
	prevFree := false
	for a.hdrOff(bp) < a.epilogBase {
		hdr := a.readWord(a.hdrOff(bp))
		size := unpackSize(hdr)
		free := unpackFree(hdr)
		if size < minBlockSize || size%alignment != 0 {
			return false
		}
		if a.readWord(a.ftrOff(bp, size)) != hdr {
			return false
		}
		if free && prevFree {
			return false
		}
		prevFree = free
		bp = a.nextOff(bp, size)
	}
	return a.hdrOff(bp) == a.epilogBase
}

// checkLists verifies that every member of every segregated list is
// actually marked free and lives in the class its own size selects.
func (a *Allocator) checkLists() bool {
	for i := 0; i < segListCount; i++ {
		node := a.first(i)
		for !a.isSentinel(node) {
			if !a.blockFree(node) {
				return false
			}
			if classOf(a.blockSize(node)) != i {
				return false
			}
			node = a.succOff(node)
		}
	}
	return true
}

// Digest folds the offset of every free block, in each class's LIFO
// order, into a single fingerprint. It is not a correctness primitive: it
// exists so tests can cheaply ask "did free-list state change by more than
// I expect" without diffing the lists by hand.
func (a *Allocator) Digest() uint64 {
	sum := xfnv.New()
	for i := 0; i < segListCount; i++ {
		sum = sum.WriteInt(i)
		node := a.first(i)
		for !a.isSentinel(node) {
			sum = sum.WriteInt(node).WriteInt(a.blockSize(node))
			node = a.succOff(node)
		}
	}
	return sum.Sum64()
}
