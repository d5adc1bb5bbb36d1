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

package linepool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsRequestedLength(t *testing.T) {
	buf := Get(100)
	assert.Len(t, buf, 100)
	Put(buf)
}

func TestGetAboveMaxBypassesPool(t *testing.T) {
	buf := Get(maxSize + 1)
	assert.Len(t, buf, maxSize+1)
}

func TestPutIgnoresForeignCapacities(t *testing.T) {
	assert.NotPanics(t, func() {
		Put(make([]byte, 0, 17)) // not a power of two, not a bucket size
		Put(make([]byte, 0, 8))  // below minSize
	})
}

func TestBucketRoundTrip(t *testing.T) {
	a := Get(64)
	Put(a)
	b := Get(64)
	assert.Equal(t, cap(a), cap(b))
}
