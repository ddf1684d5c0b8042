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
	"bytes"
	"math/rand"
	"os"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPredictor(t *testing.T) *LPAQPredictor {
	p, err := NewLPAQPredictor(0)
	require.NoError(t, err)
	return p
}

// encodeFrame returns the escaped coded bytes followed by the end of frame mark
func encodeFrame(t *testing.T, data []byte, p *LPAQPredictor) []byte {
	var buf bytes.Buffer
	enc, err := NewBinaryEntropyEncoder(NewEscapeWriter(&buf), p)
	require.NoError(t, err)

	for _, b := range data {
		enc.EncodeByte(b)
	}

	require.NoError(t, enc.Flush())
	buf.WriteByte(END_OF_FRAME)
	buf.WriteByte(END_OF_FRAME)
	return buf.Bytes()
}

func decodeFrame(t *testing.T, r *bytes.Reader, n int, p *LPAQPredictor) []byte {
	dec, err := NewBinaryEntropyDecoder(NewEscapeReader(r), p)
	require.NoError(t, err)
	res := make([]byte, n)

	for i := range res {
		res[i] = dec.DecodeByte()
	}

	require.NoError(t, dec.Err())
	return res
}

func getTestInputs() map[string][]byte {
	res := make(map[string][]byte)
	res["single"] = []byte{0x42}
	res["zeros"] = make([]byte, 1000)
	res["ff_run"] = bytes.Repeat([]byte{0xFF}, 500)
	res["ff_fe"] = bytes.Repeat([]byte{0xFF, 0xFE}, 300)
	res["text"] = bytes.Repeat([]byte("The quick brown fox jumps over the lazy dog. "), 50)
	rnd := make([]byte, 4096)
	rand.New(rand.NewSource(12345)).Read(rnd)
	res["random"] = rnd
	return res
}

func TestBinaryEntropyCodec(t *testing.T) {
	for name, data := range getTestInputs() {
		t.Run(name, func(t *testing.T) {
			coded := encodeFrame(t, data, newPredictor(t))
			assert.False(t, bytes.Contains(coded[:len(coded)-2], []byte{0xFF, 0xFF}))

			r := bytes.NewReader(coded)
			assert.Equal(t, data, decodeFrame(t, r, len(data), newPredictor(t)))

			// At most the escaped flush byte is left
			assert.LessOrEqual(t, r.Len(), 1)
		})
	}
}

func TestBinaryEntropyCodecFrames(t *testing.T) {
	frames := [][]byte{
		[]byte("first frame, first frame"),
		bytes.Repeat([]byte{0xFF}, 33),
		[]byte("first frame, second time"),
	}

	enc := newPredictor(t)
	var stream []byte

	// Each frame starts with a 0x00 marker, a leftover FF may precede it
	for _, f := range frames {
		stream = append(stream, 0x00)
		stream = append(stream, encodeFrame(t, f, enc)...)
	}

	dec := newPredictor(t)
	r := bytes.NewReader(stream)

	for _, f := range frames {
		c, err := r.ReadByte()

		if err == nil && c == END_OF_FRAME {
			c, err = r.ReadByte()
		}

		require.NoError(t, err)
		require.Equal(t, byte(0x00), c)
		require.Equal(t, f, decodeFrame(t, r, len(f), dec))
	}

	assert.Equal(t, enc.Get(), dec.Get())
}

func TestBinaryEntropyCodecCompression(t *testing.T) {
	data := bytes.Repeat([]byte("Compressible streams of text compress well. "), 500)
	coded := encodeFrame(t, data, newPredictor(t))
	assert.Less(t, len(coded), len(data)/4)
}

func TestBinaryEntropyCodecTruncated(t *testing.T) {
	data := getTestInputs()["random"]
	coded := encodeFrame(t, data, newPredictor(t))
	r := bytes.NewReader(coded[:len(coded)/2])
	dec, err := NewBinaryEntropyDecoder(NewEscapeReader(r), newPredictor(t))
	require.NoError(t, err)

	for range data {
		dec.DecodeByte()
	}

	assert.True(t, dec.Truncated())
	assert.True(t, dec.Stopped())
	assert.False(t, dec.Malformed())
}

func TestBinaryEntropyCodecNullParams(t *testing.T) {
	_, err := NewBinaryEntropyEncoder(nil, newPredictor(t))
	assert.Error(t, err)
	_, err = NewBinaryEntropyEncoder(&bytes.Buffer{}, nil)
	assert.Error(t, err)
	_, err = NewBinaryEntropyDecoder(nil, newPredictor(t))
	assert.Error(t, err)
	_, err = NewBinaryEntropyDecoder(&bytes.Buffer{}, nil)
	assert.Error(t, err)
}

func TestBinaryEntropyCodecRoundTripProp(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.MaxSize = 512
	properties := gopter.NewProperties(parameters)
	reporter := gopter.NewFormatedReporter(true, 160, os.Stdout)

	properties.Property("decode(encode(x)) == x", prop.ForAll(
		func(data []byte) bool {
			coded := encodeFrame(t, data, newPredictor(t))
			return bytes.Equal(data, decodeFrame(t, bytes.NewReader(coded), len(data), newPredictor(t)))
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t, reporter)
}

func escape(data []byte) []byte {
	var buf bytes.Buffer
	w := NewEscapeWriter(&buf)

	for _, b := range data {
		w.WriteByte(b)
	}

	return buf.Bytes()
}

func TestEscapeCodecProp(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	check := func(data []byte) bool {
		escaped := escape(data)

		if bytes.Contains(escaped, []byte{0xFF, 0xFF}) {
			return false
		}

		src := bytes.NewReader(append(escaped, END_OF_FRAME, END_OF_FRAME))
		r := NewEscapeReader(src)

		for _, b := range data {
			if c, err := r.ReadByte(); err != nil || c != b {
				return false
			}
		}

		// The end of frame mark is found within 2 reads
		for i := 0; i < 2 && r.Stopped() == false; i++ {
			r.ReadByte()
		}

		return r.Stopped() && !r.Truncated() && !r.Malformed() && src.Len() <= 1
	}

	properties.Property("escaped bytes are restored", prop.ForAll(check, gen.SliceOf(gen.UInt8())))
	properties.Property("escaped FF and FE runs are restored", prop.ForAll(check, gen.SliceOf(gen.UInt8Range(0xFC, 0xFF))))
	properties.TestingRun(t)
}

func TestEscapeCodec(t *testing.T) {
	assert.Equal(t, []byte{0xFF, 0xFE, 0xFE, 0xFF}, escape([]byte{0xFF, 0xFF, 0xFF}))
	assert.Equal(t, []byte{0xFF, 0xFE, 0xFD, 0xFE}, escape([]byte{0xFF, 0xFE, 0xFE}))
	assert.Equal(t, []byte{0xFE, 0x10, 0xFF, 0x10}, escape([]byte{0xFE, 0x10, 0xFF, 0x10}))
}

func TestEscapeReaderMalformed(t *testing.T) {
	r := NewEscapeReader(bytes.NewReader([]byte{0xFF, 0xFE, 0x10, 0x20}))
	c, err := r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0xFF), c)

	_, err = r.ReadByte()
	require.Equal(t, ErrMalformedEscape, err)
	require.True(t, r.Malformed())
	require.True(t, r.Stopped())

	// Stopped readers return 255 without consuming input
	c, err = r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(255), c)
}

func TestEscapeReaderTruncated(t *testing.T) {
	src := bytes.NewReader([]byte{0x01, 0xFF, 0xFE})
	r := NewEscapeReader(src)
	r.ReadByte()
	r.ReadByte()
	c, err := r.ReadByte()
	require.Error(t, err)
	require.Equal(t, byte(255), c)
	require.True(t, r.Truncated())
	require.False(t, r.Malformed())
}
