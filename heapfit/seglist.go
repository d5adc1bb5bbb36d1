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

import "math/bits"

// classOf returns the segregated-list index for a block of the given
// size: class i covers [2^(i+4), 2^(i+5)), class 12 absorbs everything
// 2^16 and up. Computed with bits.Len rather than a loop.
func classOf(size int) int {
	if size < minBlockSize {
		size = minBlockSize
	}
	c := bits.Len(uint(size)) - 1 - 4
	if c < 0 {
		c = 0
	}
	if c > segListCount-1 {
		c = segListCount - 1
	}
	return c
}

// prologTripleOff and epilogTripleOff return the start of class i's
// 3-word sentinel triple within the prolog/epilog region.
func (a *Allocator) prologTripleOff(i int) int {
	return a.prologBase + i*3*wordSize
}

func (a *Allocator) epilogTripleOff(i int) int {
	return a.epilogBase + i*3*wordSize
}

// prologNode and epilogNode return class i's sentinel in "bp" form: the
// position at which pred lives at node+0 and succ at node+wordSize, which
// is exactly the payload-offset layout of a real free block. A prolog
// triple is [pred=0 | succ | footer=0], so its pred word already sits
// where a real block's pred would: prologNode is the triple start itself.
// An epilog triple is [header=0 | pred | succ], so its pred word is one
// word into the triple: epilogNode is the triple start plus one word,
// which also puts the zero header exactly at epilogNode-wordSize, where
// isSentinel expects to find it.
func (a *Allocator) prologNode(i int) int {
	return a.prologTripleOff(i)
}

func (a *Allocator) epilogNode(i int) int {
	return a.epilogTripleOff(i) + wordSize
}

// first returns the head of class i's free list: a real block's bp, or
// the class's own epilog node if the list is empty.
func (a *Allocator) first(i int) int {
	return a.succOff(a.prologNode(i))
}

// insert splices bp in as the new LIFO head of its size class.
func (a *Allocator) insert(bp int) {
	i := classOf(a.blockSize(bp))
	head := a.first(i)
	a.setPred(bp, a.prologNode(i))
	a.setSucc(bp, head)
	a.setSucc(a.prologNode(i), bp)
	a.setPred(head, bp)
}

// remove splices bp out of whichever list it currently sits in. No class
// lookup is needed: the sentinels absorb both the head and tail case.
func (a *Allocator) remove(bp int) {
	p := a.predOff(bp)
	s := a.succOff(bp)
	a.setSucc(p, s)
	a.setPred(s, p)
}
