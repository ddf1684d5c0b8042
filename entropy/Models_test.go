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
	"testing"

	pqs "github.com/flanglet/pqs-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMap(t *testing.T) {
	_, err := NewStateMap(0, STATEMAP_DEFAULT_LIMIT)
	require.Error(t, err)
	_, err = NewStateMap(16, STATEMAP_MAX_LIMIT+1)
	require.Error(t, err)

	sm, err := NewStateMap(16, STATEMAP_DEFAULT_LIMIT)
	require.NoError(t, err)
	require.Equal(t, 16, sm.Size())

	for i := 0; i < 16; i++ {
		assert.Equal(t, 2048, sm.Predict(i))
	}

	for i := 0; i < 100; i++ {
		sm.Predict(3)
		sm.Update(1)
		sm.Predict(5)
		sm.Update(0)
	}

	assert.Greater(t, sm.Predict(3), 4000)
	assert.Less(t, sm.Predict(5), 96)
	assert.Equal(t, 2048, sm.Predict(4))
}

func TestStateMapLimit(t *testing.T) {
	fast, _ := NewStateMap(1, 2)
	slow, _ := NewStateMap(1, STATEMAP_DEFAULT_LIMIT)

	for i := 0; i < 200; i++ {
		fast.Predict(0)
		fast.Update(1)
		slow.Predict(0)
		slow.Update(1)
	}

	// A low limit keeps adapting quickly
	fast.Predict(0)
	fast.Update(0)
	slow.Predict(0)
	slow.Update(0)
	assert.Less(t, fast.Predict(0), slow.Predict(0))
}

func TestAdaptiveProbMap(t *testing.T) {
	_, err := NewAdaptiveProbMap(0)
	require.Error(t, err)

	apm, err := NewAdaptiveProbMap(4)
	require.NoError(t, err)
	require.Equal(t, 4, apm.Contexts())

	// Starts close to the identity
	for pr := 256; pr <= 3840; pr += 64 {
		assert.InDelta(t, pr, apm.Predict(pr, 2), 96)
	}

	for i := 0; i < 500; i++ {
		apm.Predict(2048, 1)
		apm.Update(1)
	}

	assert.Greater(t, apm.Predict(2048, 1), 2700)
	assert.InDelta(t, 2048, apm.Predict(2048, 0), 96)

	for pr := 0; pr < 4096; pr++ {
		p := apm.Predict(pr, 3)
		require.True(t, p >= 0 && p < 4096)
	}
}

func TestMixer(t *testing.T) {
	_, err := NewMixer(0, 1)
	require.Error(t, err)
	_, err = NewMixer(3, 0)
	require.Error(t, err)

	mixer, err := NewMixer(3, 2)
	require.NoError(t, err)
	require.Equal(t, 3, mixer.Inputs())
	require.Equal(t, 2, mixer.Contexts())
	first := -1
	last := -1

	for i := 0; i < 200; i++ {
		mixer.Add(256)
		mixer.Add(256)
		mixer.Add(256)
		mixer.SetContext(1)
		last = mixer.Predict()

		if first < 0 {
			first = last
		}

		mixer.Update(1)
	}

	assert.Greater(t, first, 2048)
	assert.Greater(t, last, first)

	// The other weight set is untouched
	mixer.Add(256)
	mixer.Add(256)
	mixer.Add(256)
	mixer.SetContext(0)
	assert.Equal(t, first, mixer.Predict())
	mixer.Update(0)
}

func TestMixerCallOrder(t *testing.T) {
	mixer, _ := NewMixer(2, 4)

	assert.Panics(t, func() { mixer.SetContext(0) })
	assert.Panics(t, func() { mixer.Predict() })
	assert.Panics(t, func() { mixer.Update(1) })

	mixer.Add(10)
	mixer.Add(20)
	assert.Panics(t, func() { mixer.Add(30) })
	assert.Panics(t, func() { mixer.SetContext(4) })
	mixer.SetContext(3)
	assert.Panics(t, func() { mixer.Update(1) })
	mixer.Predict()
	assert.Panics(t, func() { mixer.Predict() })
	mixer.Update(1)
	assert.NotPanics(t, func() { mixer.Add(10) })
}

func TestHashTable(t *testing.T) {
	_, err := NewHashTable(32)
	require.Error(t, err)
	_, err = NewHashTable(100)
	require.Error(t, err)

	ht, err := NewHashTable(1 << 12)
	require.NoError(t, err)
	require.Equal(t, 1<<12, ht.Size())

	for i := uint32(0); i < 1000; i++ {
		h := i * 0x9E3779B1
		off := ht.Lookup(h)
		require.Equal(t, 0, off%HASH_SLOT_SIZE)
		require.True(t, off >= 0 && off+HASH_SLOT_SIZE <= ht.Size())
		require.Equal(t, off, ht.Lookup(h))
	}
}

func TestHashTableReplacement(t *testing.T) {
	ht, _ := NewHashTable(HASH_MIN_SIZE)
	off := ht.Lookup(12345)
	ht.Bytes()[off+1] = 250
	ht.Bytes()[off+2] = 7

	// Other contexts evict the lower priority slots first
	for i := uint32(0); i < 4; i++ {
		o := ht.Lookup(i + 1000)
		require.Equal(t, byte(0), ht.Bytes()[o+2])

		if o != off {
			ht.Bytes()[o+1] = 0
		}
	}

	require.Equal(t, off, ht.Lookup(12345))
	assert.Equal(t, byte(7), ht.Bytes()[off+2])
}

func TestHashTableFullLine(t *testing.T) {
	for h := uint32(0); h < 50; h++ {
		fresh, _ := NewHashTable(HASH_MIN_SIZE)
		base := fresh.Lookup(h * 7919)
		chk := fresh.Bytes()[base]
		candidates := []int{base, base ^ HASH_SLOT_SIZE, base ^ (2 * HASH_SLOT_SIZE)}
		other := base ^ (3 * HASH_SLOT_SIZE)

		for r := range candidates {
			ht, _ := NewHashTable(HASH_MIN_SIZE)
			b := ht.Bytes()

			// All 4 slots of the line are busy with other contexts
			for k, off := range candidates {
				b[off] = chk ^ 1
				b[off+1] = byte(5 + 2*((k+3-r)%3))
			}

			b[other] = chk ^ 1
			b[other+1] = 0
			b[other+3] = 99

			off := ht.Lookup(h * 7919)
			require.Equal(t, candidates[r], off)
			assert.Equal(t, byte(99), b[other+3])
			assert.Equal(t, chk^1, b[other])

			b[off+3] = 42
			require.Equal(t, off, ht.Lookup(h*7919))
			assert.Equal(t, byte(42), b[off+3])
		}
	}
}

func TestMatchModel(t *testing.T) {
	_, err := NewMatchModel(100)
	require.Error(t, err)

	mm, err := NewMatchModel(pqs.MemorySize(0))
	require.NoError(t, err)
	pattern := []byte("abcdefgh")
	var preds []int
	var bits []byte

	for n := 0; n < 160; n++ {
		c := pattern[n%len(pattern)]
		preds = preds[:0]
		bits = bits[:0]

		for i := 7; i >= 0; i-- {
			bit := (c >> uint(i)) & 1
			preds = append(preds, mm.Predict())
			bits = append(bits, bit)
			mm.Update(bit)
		}
	}

	assert.GreaterOrEqual(t, mm.Length(), 32)

	for i := range bits {
		if bits[i] == 1 {
			assert.Greater(t, preds[i], 0)
		} else {
			assert.Less(t, preds[i], 0)
		}
	}
}
