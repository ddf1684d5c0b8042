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

	pqs "github.com/flanglet/pqs-go"
)

const (
	MATCH_MAX_LENGTH = 62
	MATCH_MIN_MEMORY = 64
	_MATCH_CONTEXTS  = 56 << 8
)

// MatchModel finds the most recent occurrence of the current context
// in the history buffer and predicts the byte that followed it.
// The prediction is weighted by the match length.
type MatchModel struct {
	buf    []byte  // history, mem/2 bytes
	ht     []int32 // context hash -> position in buf, mem/8 entries
	bufMsk int
	htMsk  uint32
	pos    int    // next write position in buf
	ptr    int    // position of the predicted byte
	length int    // match length (0 if no match)
	h1     uint32 // context hashes
	h2     uint32
	c0     int // partial byte with leading 1
	bcount uint
	sm     *StateMap
}

// NewMatchModel creates a match model using about mem bytes (power of 2)
func NewMatchModel(mem int) (*MatchModel, error) {
	if mem < MATCH_MIN_MEMORY || mem&(mem-1) != 0 {
		return nil, fmt.Errorf("Invalid match model memory: %d (must be a power of 2 >= %d)", mem, MATCH_MIN_MEMORY)
	}

	sm, err := NewStateMap(_MATCH_CONTEXTS, STATEMAP_DEFAULT_LIMIT)

	if err != nil {
		return nil, err
	}

	this := &MatchModel{sm: sm, c0: 1}
	this.buf = make([]byte, mem/2)
	this.ht = make([]int32, mem/8)
	this.bufMsk = len(this.buf) - 1
	this.htMsk = uint32(len(this.ht) - 1)
	return this, nil
}

// Update trains the model with the bit just coded and, at the end of
// a byte, extends the current match or looks for a new one.
func (this *MatchModel) Update(bit byte) {
	this.sm.Update(bit)
	this.c0 += this.c0 + int(bit)
	this.bcount++

	if this.bcount < 8 {
		return
	}

	c := uint32(this.c0 & 0xFF)
	this.buf[this.pos] = byte(c)
	this.pos = (this.pos + 1) & this.bufMsk
	this.c0 = 1
	this.bcount = 0
	this.h1 = (this.h1*(3<<3) + c + 1) & this.htMsk
	this.h2 = (this.h2*(5<<5) + c + 1) & this.htMsk

	if this.length > 0 {
		if this.length < MATCH_MAX_LENGTH {
			this.length++
		}

		this.ptr = (this.ptr + 1) & this.bufMsk
	} else {
		this.find(this.h1)

		if this.length < 2 {
			this.find(this.h2)
		}
	}

	this.ht[this.h1] = int32(this.pos)
	this.ht[this.h2] = int32(this.pos)
}

func (this *MatchModel) find(h uint32) {
	this.length = 0
	this.ptr = int(this.ht[h])

	if this.ptr == 0 || this.ptr == this.pos {
		return
	}

	for this.length < MATCH_MAX_LENGTH {
		i := (this.pos - this.length - 1) & this.bufMsk
		j := (this.ptr - this.length - 1) & this.bufMsk

		if this.buf[i] != this.buf[j] {
			break
		}

		this.length++
	}
}

// Predict returns the stretched probability that the next bit is 1
func (this *MatchModel) Predict() int {
	cxt := this.c0

	if this.length > 0 {
		b := (int(this.buf[this.ptr]) + 256) >> (7 - this.bcount)

		if b>>1 == this.c0 {
			if this.length < 16 {
				cxt = this.length*2 + (b & 1)
			} else {
				cxt = (this.length>>2)*2 + (b & 1) + 24
			}

			cxt = cxt<<8 | int(this.buf[(this.pos-1)&this.bufMsk])
		} else {
			this.length = 0
		}
	}

	return pqs.Stretch(this.sm.Predict(cxt))
}

// Length returns the length of the current match (0 if none)
func (this *MatchModel) Length() int {
	return this.length
}

func (this *MatchModel) copyFrom(other *MatchModel) {
	copy(this.buf, other.buf)
	copy(this.ht, other.ht)
	this.pos = other.pos
	this.ptr = other.ptr
	this.length = other.length
	this.h1 = other.h1
	this.h2 = other.h2
	this.c0 = other.c0
	this.bcount = other.bcount
	this.sm.copyFrom(other.sm)
}

func (this *MatchModel) clone() *MatchModel {
	mm := *this
	mm.buf = make([]byte, len(this.buf))
	mm.ht = make([]int32, len(this.ht))
	copy(mm.buf, this.buf)
	copy(mm.ht, this.ht)
	mm.sm = this.sm.clone()
	return &mm
}
