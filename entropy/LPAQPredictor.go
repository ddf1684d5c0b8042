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
	"io"

	pqs "github.com/flanglet/pqs-go"
)

// LPAQ predictor
// Derived from lpaq1 by Matt Mahoney.
// Bit histories of orders 1-4, 6 and of the current word are mapped to
// probabilities by StateMaps and mixed with a match model prediction.
// The mixer output is refined by two APM stages.

const (
	LPAQ_NB_INPUTS    = 7
	LPAQ_NB_CONTEXTS  = 6
	LPAQ_NB_WEIGHTS   = 80
	_LPAQ_ORDER1_SIZE = 1 << 16
	_LPAQ_APM1_SIZE   = 256
	_LPAQ_APM2_SIZE   = 1 << 14
)

type LPAQPredictor struct {
	pr       int    // next predicted value (0-4095)
	c0       uint32 // bitwise context: last 0-7 bits with a leading 1 (1-255)
	c4       uint32 // last 4 whole bytes, last is in low 8 bits
	bcount   uint   // number of bits in c0 (0-7)
	selector uint
	h        [LPAQ_NB_CONTEXTS]uint32 // context hashes
	cp       [LPAQ_NB_CONTEXTS]int    // bit history offsets (cp[0] in t0, others in hash table)
	t0       []byte                   // order 1 bit histories
	table    *HashTable               // orders 2-4, 6 and word bit histories
	sm       [LPAQ_NB_CONTEXTS]*StateMap
	a1       *AdaptiveProbMap
	a2       *AdaptiveProbMap
	mixer    *Mixer
	mm       *MatchModel
}

// NewLPAQPredictor creates a predictor using about 3*2^(20+selector) bytes
func NewLPAQPredictor(selector uint) (*LPAQPredictor, error) {
	if selector > pqs.MAX_MEMORY_SELECTOR {
		return nil, fmt.Errorf("Invalid memory selector: %d (must be in [%d..%d])", selector,
			pqs.MIN_MEMORY_SELECTOR, pqs.MAX_MEMORY_SELECTOR)
	}

	var err error
	mem := pqs.MemorySize(selector)
	this := new(LPAQPredictor)
	this.selector = selector
	this.pr = 2048
	this.c0 = 1
	this.t0 = make([]byte, _LPAQ_ORDER1_SIZE)

	if this.table, err = NewHashTable(2 * mem); err != nil {
		return nil, err
	}

	if this.mm, err = NewMatchModel(mem); err != nil {
		return nil, err
	}

	for i := range this.sm {
		if this.sm[i], err = NewStateMap(256, STATEMAP_DEFAULT_LIMIT); err != nil {
			return nil, err
		}
	}

	if this.a1, err = NewAdaptiveProbMap(_LPAQ_APM1_SIZE); err != nil {
		return nil, err
	}

	if this.a2, err = NewAdaptiveProbMap(_LPAQ_APM2_SIZE); err != nil {
		return nil, err
	}

	if this.mixer, err = NewMixer(LPAQ_NB_INPUTS, LPAQ_NB_WEIGHTS); err != nil {
		return nil, err
	}

	for i := 1; i < LPAQ_NB_CONTEXTS; i++ {
		this.cp[i] = this.table.Lookup(0) + 1
	}

	this.predict()
	return this, nil
}

// Update updates the model with the bit just coded and computes
// the prediction of the next bit.
func (this *LPAQPredictor) Update(bit byte) {
	if bit > 1 {
		panic(fmt.Errorf("Invalid bit value: %d (must be 0 or 1)", bit))
	}

	// Update bit histories and models
	nex := &STATE_TRANSITIONS[bit]
	t := this.table.t
	this.t0[this.cp[0]] = nex[this.t0[this.cp[0]]]

	for i := 1; i < LPAQ_NB_CONTEXTS; i++ {
		t[this.cp[i]] = nex[t[this.cp[i]]]
	}

	this.mixer.Update(bit)

	for i := range this.sm {
		this.sm[i].Update(bit)
	}

	this.a1.Update(bit)
	this.a2.Update(bit)
	this.mm.Update(bit)

	// Update contexts
	this.bcount++
	this.c0 += this.c0 + uint32(bit)

	if this.c0 >= 256 {
		c := this.c0 & 0xFF
		this.c4 = (this.c4 << 8) | c
		this.c0 = 1
		this.bcount = 0
		this.h[0] = (this.c4 & 0xFF) << 8
		this.h[1] = ((this.c4 & 0xFFFF) << 5) | 0x57000000
		this.h[2] = (this.c4 << 8) * 3
		this.h[3] = this.c4 * 5
		this.h[4] = (this.h[4]*(11<<5) + c*13) & 0x3FFFFFFF

		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}

		if c >= 'a' && c <= 'z' {
			this.h[5] = (this.h[5] + c) * (7 << 3)
		} else {
			this.h[5] = 0
		}

		for i := 1; i < LPAQ_NB_CONTEXTS; i++ {
			this.cp[i] = this.table.Lookup(this.h[i]) + 1
		}
	} else if this.bcount == 4 {
		for i := 1; i < LPAQ_NB_CONTEXTS; i++ {
			this.cp[i] = this.table.Lookup(this.h[i]+this.c0) + 1
		}
	} else {
		j := (int(bit) + 1) << ((this.bcount & 3) - 1)

		for i := 1; i < LPAQ_NB_CONTEXTS; i++ {
			this.cp[i] += j
		}
	}

	this.cp[0] = int(this.h[0] + this.c0)
	this.predict()
}

func (this *LPAQPredictor) predict() {
	t := this.table.t
	this.mixer.Add(this.mm.Predict())
	length := this.mm.Length()
	order := 0

	if length == 0 {
		for i := 1; i < 5; i++ {
			if t[this.cp[i]] != 0 {
				order++
			}
		}
	} else {
		order = 5

		for _, l := range [...]int{8, 12, 16, 32} {
			if length >= l {
				order++
			}
		}
	}

	this.mixer.Add(pqs.Stretch(this.sm[0].Predict(int(this.t0[this.cp[0]]))))

	for i := 1; i < LPAQ_NB_CONTEXTS; i++ {
		this.mixer.Add(pqs.Stretch(this.sm[i].Predict(int(t[this.cp[i]]))))
	}

	this.mixer.SetContext(order + 10*int(this.h[0]>>13))
	pr := this.mixer.Predict()
	pr = (pr + 3*this.a1.Predict(pr, int(this.c0))) >> 2
	cx := (this.c0 ^ ((this.c4&0xFF)*2654435761)>>18) & 0x3FFF
	this.pr = (pr + 3*this.a2.Predict(pr, int(cx))) >> 2
}

// Get returns the probability that the next bit is 1 in the [0..4095] range
func (this *LPAQPredictor) Get() int {
	return this.pr
}

// MemorySelector returns the memory option of this predictor
func (this *LPAQPredictor) MemorySelector() uint {
	return this.selector
}

// Clone returns an independent deep copy of the predictor
func (this *LPAQPredictor) Clone() *LPAQPredictor {
	p := *this
	p.t0 = make([]byte, len(this.t0))
	copy(p.t0, this.t0)
	p.table = &HashTable{t: make([]byte, len(this.table.t)), mask: this.table.mask}
	copy(p.table.t, this.table.t)

	for i := range this.sm {
		p.sm[i] = this.sm[i].clone()
	}

	p.a1 = this.a1.clone()
	p.a2 = this.a2.clone()
	p.mixer = this.mixer.clone()
	p.mm = this.mm.clone()
	return &p
}

// CopyFrom overwrites the state of this predictor with the state of other.
// Both predictors must have the same memory selector.
func (this *LPAQPredictor) CopyFrom(other *LPAQPredictor) error {
	if other == this {
		return nil
	}

	if other.selector != this.selector {
		return fmt.Errorf("Cannot copy predictor state: memory selector mismatch (%d vs %d)",
			other.selector, this.selector)
	}

	this.pr = other.pr
	this.c0 = other.c0
	this.c4 = other.c4
	this.bcount = other.bcount
	this.h = other.h
	this.cp = other.cp
	copy(this.t0, other.t0)
	copy(this.table.t, other.table.t)

	for i := range this.sm {
		this.sm[i].copyFrom(other.sm[i])
	}

	this.a1.copyFrom(other.a1)
	this.a2.copyFrom(other.a2)
	this.mixer.copyFrom(other.mixer)
	this.mm.copyFrom(other.mm)
	return nil
}

// Save writes a snapshot of the predictor (see LoadPredictor)
func (this *LPAQPredictor) Save(w io.Writer) error {
	return SaveSnapshot(w, this)
}
