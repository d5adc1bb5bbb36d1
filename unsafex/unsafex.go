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

// Package unsafex holds small zero-copy conversions built on unsafe.
package unsafex

import "unsafe"

// BinaryToString converts []byte to string without copying the backing
// array. The result aliases b: mutating b after the call changes the
// string's contents too, and the string must not outlive any reuse of b's
// backing array (a pooled or scanner-owned buffer, for instance).
func BinaryToString(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// StringToBinary converts string to []byte without copying the backing
// array. The returned slice must not be written to: a Go string's backing
// array is immutable and may be shared.
func StringToBinary(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
