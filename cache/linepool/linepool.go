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

// Package linepool pools the line-scratch byte slices cmd/traceplay uses to
// tokenize a trace file, so replaying a multi-million line trace doesn't
// force the garbage collector to churn on one short-lived slice per line.
package linepool

import (
	"math/bits"
	"sync"
)

const (
	minSize = 64       // smallest pooled bucket
	maxSize = 1 << 20  // largest pooled bucket; callers above this size bypass the pool
)

type bucket struct {
	sync.Pool
	size int
}

var buckets []*bucket

// bits2idx maps bits.Len(size) to the bucket holding the largest power of
// two <= size; bucketIndex moves one bucket up for sizes that are not a
// power of two.
var bits2idx [64]int

func init() {
	i := 0
	for sz := minSize; sz <= maxSize; sz <<= 1 {
		b := &bucket{size: sz}
		b.New = func() interface{} {
			buf := make([]byte, b.size)
			return buf
		}
		buckets = append(buckets, b)
		bits2idx[bits.Len(uint(sz))] = i
		i++
	}
}

func bucketIndex(size int) int {
	if size <= minSize {
		return 0
	}
	i := bits2idx[bits.Len(uint(size))]
	if uint(size)&(uint(size)-1) == 0 {
		return i
	}
	return i + 1
}

// Get returns a []byte of length size. Sizes above maxSize are served
// directly from make, bypassing the pool.
func Get(size int) []byte {
	if size > maxSize {
		return make([]byte, size)
	}
	i := bucketIndex(size)
	buf := buckets[i].Get().([]byte)
	return buf[:size]
}

// Put returns buf to its bucket. buf must have been obtained from Get (or
// have a capacity that happens to match a bucket size exactly); anything
// else is silently dropped rather than pooled.
func Put(buf []byte) {
	c := cap(buf)
	if c < minSize || c > maxSize || uint(c)&uint(c-1) != 0 {
		return
	}
	i := bits2idx[bits.Len(uint(c))]
	if i < len(buckets) && buckets[i].size == c {
		buckets[i].Put(buf[:c])
	}
}
