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
	MIXER_LEARNING_RATE = 7
	MIXER_INIT_WEIGHT   = 1 << 14 // 0.25, weights are scaled by 16 bits
)

const (
	_MIXER_ADDING = iota
	_MIXER_READY
	_MIXER_PREDICTED
)

// Mixer combines n stretched predictions with one of m weight sets
// (a single layer neural network) and trains the selected set to reduce
// the coding cost of the last prediction.
// For each bit: Add() n times, SetContext(), Predict(), then Update().
type Mixer struct {
	n     int
	m     int
	tx    []int32 // inputs
	wx    []int32 // n*m weights
	nx    int     // number of inputs added
	cxt   int     // selected weight set
	pr    int     // last prediction
	phase int
}

// NewMixer creates a mixer of n inputs and m weight sets
func NewMixer(n, m int) (*Mixer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("Invalid number of mixer inputs: %d (must be positive)", n)
	}

	if m <= 0 {
		return nil, fmt.Errorf("Invalid number of mixer weight sets: %d (must be positive)", m)
	}

	this := &Mixer{n: n, m: m, pr: 2048}
	this.tx = make([]int32, n)
	this.wx = make([]int32, n*m)

	for i := range this.wx {
		this.wx[i] = MIXER_INIT_WEIGHT
	}

	return this, nil
}

// Add appends an input in [-2047..2047]
func (this *Mixer) Add(x int) {
	if this.phase != _MIXER_ADDING || this.nx >= this.n {
		panic(fmt.Errorf("Mixer: input added out of order (%d inputs out of %d)", this.nx, this.n))
	}

	this.tx[this.nx] = int32(x)
	this.nx++
}

// SetContext selects the weight set used by the next prediction
func (this *Mixer) SetContext(cx int) {
	if this.phase != _MIXER_ADDING || this.nx != this.n {
		panic(fmt.Errorf("Mixer: context set with %d inputs out of %d", this.nx, this.n))
	}

	if cx < 0 || cx >= this.m {
		panic(fmt.Errorf("Mixer: invalid context %d (must be in [0..%d])", cx, this.m-1))
	}

	this.cxt = cx
	this.phase = _MIXER_READY
}

// Predict returns the mixed probability in [0..4095]
func (this *Mixer) Predict() int {
	if this.phase != _MIXER_READY {
		panic(fmt.Errorf("Mixer: prediction requested before the context was set"))
	}

	w := this.wx[this.cxt*this.n : this.cxt*this.n+this.n]
	sum := int64(0)

	for i := range this.tx {
		sum += int64(this.tx[i]) * int64(w[i])
	}

	this.pr = pqs.Squash(int(sum >> 16))
	this.phase = _MIXER_PREDICTED
	return this.pr
}

// Update trains the selected weight set and resets the inputs
func (this *Mixer) Update(bit byte) {
	if this.phase != _MIXER_PREDICTED {
		panic(fmt.Errorf("Mixer: update requested before prediction"))
	}

	err := ((int32(bit) << 12) - int32(this.pr)) * MIXER_LEARNING_RATE
	w := this.wx[this.cxt*this.n : this.cxt*this.n+this.n]

	for i := range this.tx {
		w[i] += (this.tx[i]*err + 0x8000) >> 16
	}

	this.nx = 0
	this.phase = _MIXER_ADDING
}

// Inputs returns the number of inputs
func (this *Mixer) Inputs() int {
	return this.n
}

// Contexts returns the number of weight sets
func (this *Mixer) Contexts() int {
	return this.m
}

func (this *Mixer) copyFrom(other *Mixer) {
	this.n = other.n
	this.m = other.m
	copy(this.tx, other.tx)
	copy(this.wx, other.wx)
	this.nx = other.nx
	this.cxt = other.cxt
	this.pr = other.pr
	this.phase = other.phase
}

func (this *Mixer) clone() *Mixer {
	mx := &Mixer{n: this.n, m: this.m, nx: this.nx, cxt: this.cxt, pr: this.pr, phase: this.phase}
	mx.tx = make([]int32, len(this.tx))
	mx.wx = make([]int32, len(this.wx))
	copy(mx.tx, this.tx)
	copy(mx.wx, this.wx)
	return mx
}
