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
	APM_BINS  = 24
	APM_LIMIT = 255
)

// AdaptiveProbMap (APM) refines a probability given a context.
// The stretched input probability is quantized into 24 bins per context.
// The output interpolates between the two nearest bins and the nearer
// one is trained on the next bit.
type AdaptiveProbMap struct {
	StateMap
	n int // number of contexts
}

// NewAdaptiveProbMap creates an APM with n contexts. Every context starts
// with the identity mapping.
func NewAdaptiveProbMap(n int) (*AdaptiveProbMap, error) {
	if n <= 0 {
		return nil, fmt.Errorf("Invalid number of contexts for APM: %d (must be positive)", n)
	}

	sm, err := NewStateMap(n*APM_BINS, APM_LIMIT)

	if err != nil {
		return nil, err
	}

	this := &AdaptiveProbMap{StateMap: *sm, n: n}

	for i := range this.t {
		p := ((i%APM_BINS*2+1)*4096)/48 - 2048
		this.t[i] = (uint32(pqs.Squash(p)) << 20) + 6
	}

	return this, nil
}

// Predict returns the refined probability of pr in context cx
func (this *AdaptiveProbMap) Predict(pr, cx int) int {
	pr = (pqs.Stretch(pr) + 2048) * (APM_BINS - 1)
	wt := pr & 0xFFF
	cx = cx*APM_BINS + (pr >> 12)
	this.cxt = cx + (wt >> 11)
	return (int(this.t[cx]>>13)*(0x1000-wt) + int(this.t[cx+1]>>13)*wt) >> 19
}

// Contexts returns the number of contexts
func (this *AdaptiveProbMap) Contexts() int {
	return this.n
}

func (this *AdaptiveProbMap) copyFrom(other *AdaptiveProbMap) {
	this.StateMap.copyFrom(&other.StateMap)
	this.n = other.n
}

func (this *AdaptiveProbMap) clone() *AdaptiveProbMap {
	return &AdaptiveProbMap{StateMap: *this.StateMap.clone(), n: this.n}
}
