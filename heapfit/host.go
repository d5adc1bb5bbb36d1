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

// Host is the consumed interface through which the engine touches the
// outside world: a single growth primitive and a bounds query. It plays
// the role of a classic sbrk in a hosted malloc implementation.
//
// Implementations must never move or free bytes already handed out by a
// previous Extend call; the engine and every live payload slice it has
// returned depend on offsets staying valid for the lifetime of the Host.
type Host interface {
	// Extend grows the arena by n bytes (n is always a non-negative
	// multiple of 8 in heapfit's own usage) and returns the offset, from
	// Base, of the first newly added byte. It returns an error if the
	// arena cannot grow by n bytes.
	Extend(n int) (offset int, err error)

	// Bounds reports the arena's current [lo, hi) extent as offsets from
	// Base. It exists for diagnostics only; the engine does not call it.
	Bounds() (lo, hi int)

	// Base resolves offset 0 to a live address. The returned pointer must
	// stay valid, and must keep denoting the same underlying bytes, for as
	// long as the Host is in use.
	Base() unsafe.Pointer
}
