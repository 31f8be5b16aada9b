// Copyright 2024 The libbitcoin-database Go authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package memfile

// Accessor is a scoped view into the mapping.  It holds the file's shared
// lock from creation until Release, which is what keeps the mapping base
// stable: any slice obtained from Buffer is valid only until Release.
type Accessor struct {
	file   *File
	offset int64
}

// Buffer returns the mapping from the accessor's current position to the end
// of the mapped region.
func (a *Accessor) Buffer() []byte {
	return a.file.data[a.offset:]
}

// Increment shifts the logical view within the mapping.
func (a *Accessor) Increment(n int64) {
	a.offset += n
}

// Release drops the shared lock.  The accessor must not be used again.
func (a *Accessor) Release() {
	a.file.mu.RUnlock()
}
