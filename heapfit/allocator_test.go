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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alloclab/segfit/heapfit/memhost"
)

func newTestAllocator(t *testing.T, capacity int) *Allocator {
	t.Helper()
	a, err := New(memhost.WithCapacity(capacity))
	require.NoError(t, err)
	return a
}

func TestEmptyInitThenSingleAllocate(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	require.True(t, a.Check())

	p := a.Alloc(1)
	require.NotNil(t, p)
	require.Len(t, p, 1)

	bp := a.offsetOf(p)
	assert.Equal(t, a.prologBase+sentinelRegionSize+wordSize, bp)
	assert.Equal(t, minBlockSize, a.blockSize(bp))
	assert.False(t, a.blockFree(bp))
	assert.True(t, a.Check())
}

func TestAllocZeroReturnsNil(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	assert.Nil(t, a.Alloc(0))
}

func TestSplitOnFit(t *testing.T) {
	a := newTestAllocator(t, 1<<16)

	x := a.Alloc(40)
	b := a.Alloc(40)
	_ = a.Alloc(40)
	bBp := a.offsetOf(b)

	a.Free(b)
	d := a.Alloc(32) // asize 40, carved from b's 48-byte block, 8 bytes spare short of a split
	require.Equal(t, bBp, a.offsetOf(d), "a request that leaves < MIN_BLOCK_SIZE spare must not split")
	assert.Equal(t, 48, a.blockSize(bBp))

	a.Free(d)
	e := a.Alloc(8) // asize 16, carved from the same 48-byte block, 32 spare: must split
	require.Equal(t, bBp, a.offsetOf(e))
	assert.Equal(t, 16, a.blockSize(bBp))

	rem := a.nextOff(bBp, 16)
	assert.True(t, a.blockFree(rem))
	assert.GreaterOrEqual(t, a.blockSize(rem), minBlockSize)

	_ = x
	assert.True(t, a.Check())
}

func TestCoalesceThreeWay(t *testing.T) {
	a := newTestAllocator(t, 1<<16)

	x := a.Alloc(8)
	y := a.Alloc(8)
	z := a.Alloc(8)
	xBp := a.offsetOf(x)

	require.Equal(t, 16, a.blockSize(xBp))

	a.Free(x)
	a.Free(z)
	a.Free(y)

	assert.Equal(t, 48, a.blockSize(xBp), "three adjacent 16-byte blocks must coalesce into one 48-byte block")
	assert.True(t, a.blockFree(xBp))

	i := classOf(48)
	assert.Equal(t, xBp, a.first(i), "the merged block must be the sole entry in its class")
	assert.True(t, a.isSentinel(a.succOff(xBp)))

	assert.True(t, a.Check())
}

func TestGrowArenaWhenNoFit(t *testing.T) {
	a := newTestAllocator(t, 1<<20)
	before := a.epilogBase

	p := a.Alloc(4096)
	require.NotNil(t, p)
	require.Len(t, p, 4096)

	bp := a.offsetOf(p)
	assert.Equal(t, 4104, a.blockSize(bp))
	assert.Greater(t, a.epilogBase, before)
	assert.True(t, a.isLastBlock(bp, a.blockSize(bp)))
	assert.True(t, a.Check())
}

func TestGrowArenaAbsorbsTrailingFreeBlock(t *testing.T) {
	a := newTestAllocator(t, 1<<20)

	p := a.Alloc(64)
	bp := a.offsetOf(p)
	a.Free(p)
	require.True(t, a.isLastBlock(bp, a.blockSize(bp)))

	q := a.Alloc(4096)
	assert.Equal(t, bp, a.offsetOf(q), "extendFor should reuse the trailing free block's address")
	assert.Equal(t, 4104, a.blockSize(bp))
	assert.True(t, a.Check())
}

func TestReallocForwardAbsorption(t *testing.T) {
	a := newTestAllocator(t, 1<<16)

	x := a.Alloc(24)
	y := a.Alloc(24)
	xBp := a.offsetOf(x)

	a.Free(y)
	grown := a.Realloc(x, 40)
	require.Equal(t, xBp, a.offsetOf(grown), "forward absorption must not move the block")
	assert.Len(t, grown, 40)
	assert.False(t, a.blockFree(xBp))
	assert.True(t, a.Check())
}

func TestReallocGrowsLastBlockInPlace(t *testing.T) {
	a := newTestAllocator(t, 1<<20)

	x := a.Alloc(32)
	xBp := a.offsetOf(x)
	require.True(t, a.isLastBlock(xBp, a.blockSize(xBp)))

	grown := a.Realloc(x, 10000)
	assert.Equal(t, xBp, a.offsetOf(grown), "growing the last block in place must not move it")
	assert.Len(t, grown, 10000)
	assert.True(t, a.Check())
}

func TestReallocFallsBackWhenBoxedIn(t *testing.T) {
	a := newTestAllocator(t, 1<<20)

	x := a.Alloc(16)
	_ = a.Alloc(16) // keeps x from being the last block
	xBp := a.offsetOf(x)

	grown := a.Realloc(x, 1000)
	assert.NotEqual(t, xBp, a.offsetOf(grown), "with no forward room and not the last block, realloc must relocate")
	assert.Len(t, grown, 1000)
	assert.True(t, a.Check())
}

func TestReallocNilIsAlloc(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	p := a.Realloc(nil, 16)
	require.NotNil(t, p)
	assert.Len(t, p, 16)
}

func TestReallocZeroIsFree(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	p := a.Alloc(16)
	bp := a.offsetOf(p)
	out := a.Realloc(p, 0)
	assert.Nil(t, out)
	assert.True(t, a.blockFree(bp))
}

func TestFreeOfZeroCapBlockIsNoop(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	require.NotPanics(t, func() {
		a.Free(nil)
		a.Free([]byte{})
	})
}

func TestFreeDetectsDoubleFree(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	p := a.Alloc(16)
	a.Free(p)
	assert.PanicsWithValue(t, "heapfit: double free", func() {
		a.Free(p)
	})
}

func TestLIFOReuse(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	p := a.Alloc(32)
	bp := a.offsetOf(p)
	a.Free(p)
	q := a.Alloc(32)
	assert.Equal(t, bp, a.offsetOf(q), "freeing and re-requesting the same size must reuse the same block")
}

func TestDigestReflectsFreeListState(t *testing.T) {
	a := newTestAllocator(t, 1<<16)
	p := a.Alloc(128)
	_ = a.Alloc(64) // keeps p from being the arena's last block

	base := a.Digest()
	a.Free(p)
	mid := a.Digest()
	assert.NotEqual(t, base, mid, "freeing a block must change the free-list fingerprint")

	q := a.Alloc(128)
	after := a.Digest()
	assert.Equal(t, a.offsetOf(p), a.offsetOf(q))
	assert.Equal(t, base, after, "re-allocating the exact freed size must restore the prior fingerprint")
}
