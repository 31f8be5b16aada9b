// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package fill provides functions to fill byte slices with a value.
package fill

func Bytes(b []byte, v byte) {
	for i := 0; i < len(b); i++ {
		b[i] = v
	}
}
