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

// Package heapfit implements a segregated-fit, boundary-tagged dynamic
// memory allocator over a single, monotonically growing byte arena.
//
// The arena is owned by a Host (see host.go); heapfit never allocates or
// grows memory on its own. Blocks are addressed as byte offsets from the
// Host's base pointer, which the Allocator caches once in New; payload
// slices handed to callers point into the arena as well, so the Host must
// keep its backing bytes in place for as long as it is in use.
//
// heapfit is not goroutine-safe. Serialize all calls into a given
// Allocator the same way a single-threaded C allocator would require its
// caller to.
package heapfit
