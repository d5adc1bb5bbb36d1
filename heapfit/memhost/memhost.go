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

// Package memhost is the default heapfit.Host: a single fixed-capacity
// arena that never reallocates, the Go analog of a process mmap-ing a
// large virtual heap up front and moving a brk pointer within it.
package memhost

import (
	"errors"
	"unsafe"

	"github.com/bytedance/gopkg/lang/mcache"
)

// DefaultCapacity is used by New when no capacity is given.
const DefaultCapacity = 64 << 20 // 64MiB

// ErrExhausted is returned by Extend once the reserved capacity is used
// up. heapfit treats it as an irrecoverable, abort-worthy condition.
var ErrExhausted = errors.New("memhost: arena exhausted")

// Arena is a heapfit.Host backed by one mcache-allocated byte slice. Its
// capacity is fixed at construction; Extend only ever advances a length
// counter within that capacity, so the backing array's address — and
// therefore every offset and payload slice heapfit has ever handed out —
// never moves.
type Arena struct {
	buf  []byte
	base unsafe.Pointer
	used int
}

// New reserves DefaultCapacity bytes.
func New() *Arena {
	return WithCapacity(DefaultCapacity)
}

// WithCapacity reserves capacity bytes. It panics if capacity is not a
// positive multiple of 8, the same word-alignment precondition heapfit
// itself relies on.
func WithCapacity(capacity int) *Arena {
	if capacity <= 0 || capacity%8 != 0 {
		panic("memhost: capacity must be a positive multiple of 8")
	}
	buf := mcache.Malloc(capacity)
	return &Arena{
		buf:  buf,
		base: unsafe.Pointer(&buf[0]),
	}
}

// Extend implements heapfit.Host.
func (a *Arena) Extend(n int) (int, error) {
	if n < 0 {
		panic("memhost: negative extend")
	}
	if a.used+n > len(a.buf) {
		return 0, ErrExhausted
	}
	off := a.used
	a.used += n
	return off, nil
}

// Bounds implements heapfit.Host.
func (a *Arena) Bounds() (int, int) {
	return 0, a.used
}

// Base implements heapfit.Host.
func (a *Arena) Base() unsafe.Pointer {
	return a.base
}

// Capacity returns the arena's fixed reservation, for diagnostics.
func (a *Arena) Capacity() int {
	return len(a.buf)
}
