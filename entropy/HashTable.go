/*
Copyright 2011-2017 Frederic Langlet
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
you may obtain a copy of the License at

                http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package entropy

import (
	"fmt"
)

const (
	HASH_SLOT_SIZE = 16 // checksum, priority, 14 bit history states
	HASH_MIN_SIZE  = 4 * HASH_SLOT_SIZE
)

// HashTable maps 32 bit context hashes to 16 byte slots of bit history
// states. Byte 0 of a slot is an 8 bit checksum, byte 1 is the state of
// the first bit of the nibble and doubles as the slot priority.
// A hash is looked up at 3 neighboring slots of the same 64 byte line.
// On a miss the slot with the lowest priority is cleared and reused.
type HashTable struct {
	t    []byte
	mask uint32
}

// NewHashTable creates a table of size bytes (power of 2, at least 64)
func NewHashTable(size int) (*HashTable, error) {
	if size < HASH_MIN_SIZE || size&(size-1) != 0 {
		return nil, fmt.Errorf("Invalid hash table size: %d (must be a power of 2 >= %d)", size, HASH_MIN_SIZE)
	}

	this := &HashTable{}
	this.t = make([]byte, size)
	this.mask = uint32(size - HASH_SLOT_SIZE)
	return this, nil
}

// Lookup returns the offset of the slot matching h, replacing the lowest
// priority candidate if none matches.
func (this *HashTable) Lookup(h uint32) int {
	h *= 123456791
	h = (h << 16) | (h >> 16)
	h *= 234567891
	chk := byte(h >> 24)
	i := (h * HASH_SLOT_SIZE) & this.mask
	t := this.t

	if t[i] == chk {
		return int(i)
	}

	if t[i^HASH_SLOT_SIZE] == chk {
		return int(i ^ HASH_SLOT_SIZE)
	}

	if t[i^(2*HASH_SLOT_SIZE)] == chk {
		return int(i ^ (2 * HASH_SLOT_SIZE))
	}

	// Evict the lowest priority of the 3 candidates, first one on ties
	j := i

	if t[j+1] > t[(i^HASH_SLOT_SIZE)+1] {
		j = i ^ HASH_SLOT_SIZE
	}

	if t[j+1] > t[(i^(2*HASH_SLOT_SIZE))+1] {
		j = i ^ (2 * HASH_SLOT_SIZE)
	}

	i = j

	slot := t[i : i+HASH_SLOT_SIZE]

	for j := range slot {
		slot[j] = 0
	}

	slot[0] = chk
	return int(i)
}

// Size returns the size of the table in bytes
func (this *HashTable) Size() int {
	return len(this.t)
}

// Bytes returns the underlying table
func (this *HashTable) Bytes() []byte {
	return this.t
}
