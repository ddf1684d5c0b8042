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
	STATEMAP_DEFAULT_LIMIT = 1023
	STATEMAP_MAX_LIMIT     = 1023
)

// Reciprocal table: 16384/(2n+3), used to adapt with rate 1/(n+1.5)
var _STATEMAP_DT [1024]int32

func init() {
	for i := range _STATEMAP_DT {
		_STATEMAP_DT[i] = int32(16384 / (i + i + 3))
	}
}

// StateMap maps a context to a probability. Each slot packs a 22 bit
// probability and a 10 bit count: p<<10 | n. The count controls the
// adaptation rate and saturates at limit.
type StateMap struct {
	cxt   int
	limit uint32
	t     []uint32
}

// NewStateMap creates a map of n slots, all starting at p=0.5 with a zero count.
func NewStateMap(n int, limit uint) (*StateMap, error) {
	if n <= 0 {
		return nil, fmt.Errorf("Invalid number of contexts for state map: %d (must be positive)", n)
	}

	if limit == 0 || limit > STATEMAP_MAX_LIMIT {
		return nil, fmt.Errorf("Invalid state map limit: %d (must be in [1..%d])", limit, STATEMAP_MAX_LIMIT)
	}

	this := &StateMap{}
	this.limit = uint32(limit)
	this.t = make([]uint32, n)

	for i := range this.t {
		this.t[i] = 1 << 31
	}

	return this, nil
}

// Update moves the probability of the last predicted slot toward the bit.
func (this *StateMap) Update(bit byte) {
	t := this.t[this.cxt]
	n := t & 1023
	p := int32(t >> 10)

	if n < this.limit {
		t++
	} else {
		t = (t & 0xFFFFFC00) | this.limit
	}

	t += uint32(((int32(bit)<<22)-p)>>3*_STATEMAP_DT[n]) & 0xFFFFFC00
	this.t[this.cxt] = t
}

// Predict returns the 12 bit probability of slot cx and remembers cx
// for the next update.
func (this *StateMap) Predict(cx int) int {
	this.cxt = cx
	return int(this.t[cx] >> 20)
}

// Size returns the number of slots
func (this *StateMap) Size() int {
	return len(this.t)
}

func (this *StateMap) copyFrom(other *StateMap) {
	this.cxt = other.cxt
	this.limit = other.limit
	copy(this.t, other.t)
}

func (this *StateMap) clone() *StateMap {
	sm := &StateMap{cxt: this.cxt, limit: this.limit}
	sm.t = make([]uint32, len(this.t))
	copy(sm.t, this.t)
	return sm
}
