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
	"io"

	pqs "github.com/flanglet/pqs-go"
	"github.com/pkg/errors"
)

// Binary arithmetic coder with 32 bit precision.
// The range [x1, x2] is split according to the prediction of the next bit.
// Leading bytes common to x1 and x2 are shifted out as soon as they appear.

const (
	_MASK_TOP_BYTE = uint32(0xFF000000)
)

type BinaryEntropyEncoder struct {
	predictor pqs.Predictor
	x1        uint32
	x2        uint32
	w         io.ByteWriter
	err       error
	flushed   bool
}

// NewBinaryEntropyEncoder creates an encoder writing to w. For framed
// output, w should be an EscapeWriter.
func NewBinaryEntropyEncoder(w io.ByteWriter, predictor pqs.Predictor) (*BinaryEntropyEncoder, error) {
	if w == nil {
		return nil, errors.New("Invalid null writer parameter")
	}

	if predictor == nil {
		return nil, errors.New("Invalid null predictor parameter")
	}

	this := new(BinaryEntropyEncoder)
	this.predictor = predictor
	this.x1 = 0
	this.x2 = 0xFFFFFFFF
	this.w = w
	return this, nil
}

func (this *BinaryEntropyEncoder) EncodeByte(val byte) {
	this.EncodeBit((val >> 7) & 1)
	this.EncodeBit((val >> 6) & 1)
	this.EncodeBit((val >> 5) & 1)
	this.EncodeBit((val >> 4) & 1)
	this.EncodeBit((val >> 3) & 1)
	this.EncodeBit((val >> 2) & 1)
	this.EncodeBit((val >> 1) & 1)
	this.EncodeBit(val & 1)
}

func (this *BinaryEntropyEncoder) EncodeBit(bit byte) {
	if this.flushed == true {
		panic(errors.New("Binary entropy encoder: bit encoded after flush"))
	}

	xmid := split(this.x1, this.x2, this.predictor.Get())

	if bit != 0 {
		this.x2 = xmid
	} else {
		this.x1 = xmid + 1
	}

	this.predictor.Update(bit)

	// Write identical leading bytes
	for (this.x1^this.x2)&_MASK_TOP_BYTE == 0 {
		this.write(byte(this.x2 >> 24))
		this.x1 <<= 8
		this.x2 = (this.x2 << 8) | 255
	}
}

func (this *BinaryEntropyEncoder) write(b byte) {
	if this.err != nil {
		return
	}

	this.err = this.w.WriteByte(b)
}

// Flush writes the first byte that differs between x1 and x2.
// Must be called exactly once, after the last bit.
func (this *BinaryEntropyEncoder) Flush() error {
	if this.flushed == false {
		this.flushed = true
		this.write(byte(this.x1 >> 24))
	}

	return this.err
}

// Err returns the first write error, if any
func (this *BinaryEntropyEncoder) Err() error {
	return this.err
}

type BinaryEntropyDecoder struct {
	predictor pqs.Predictor
	x1        uint32
	x2        uint32
	x         uint32
	r         io.ByteReader
	err       error
}

// NewBinaryEntropyDecoder creates a decoder reading from r. The first 4
// bytes are read immediately. For framed input, r should be an EscapeReader.
func NewBinaryEntropyDecoder(r io.ByteReader, predictor pqs.Predictor) (*BinaryEntropyDecoder, error) {
	if r == nil {
		return nil, errors.New("Invalid null reader parameter")
	}

	if predictor == nil {
		return nil, errors.New("Invalid null predictor parameter")
	}

	this := new(BinaryEntropyDecoder)
	this.predictor = predictor
	this.x1 = 0
	this.x2 = 0xFFFFFFFF
	this.r = r

	for i := 0; i < 4; i++ {
		this.x = (this.x << 8) | uint32(this.read())
	}

	return this, nil
}

func (this *BinaryEntropyDecoder) DecodeByte() byte {
	return (this.DecodeBit() << 7) |
		(this.DecodeBit() << 6) |
		(this.DecodeBit() << 5) |
		(this.DecodeBit() << 4) |
		(this.DecodeBit() << 3) |
		(this.DecodeBit() << 2) |
		(this.DecodeBit() << 1) |
		this.DecodeBit()
}

func (this *BinaryEntropyDecoder) DecodeBit() byte {
	xmid := split(this.x1, this.x2, this.predictor.Get())
	var bit byte

	if this.x <= xmid {
		bit = 1
		this.x2 = xmid
	} else {
		this.x1 = xmid + 1
	}

	this.predictor.Update(bit)

	// Read bytes replacing identical leading bytes
	for (this.x1^this.x2)&_MASK_TOP_BYTE == 0 {
		this.x1 <<= 8
		this.x2 = (this.x2 << 8) | 255
		this.x = (this.x << 8) | uint32(this.read())
	}

	return bit
}

func (this *BinaryEntropyDecoder) read() byte {
	b, err := this.r.ReadByte()

	if err != nil {
		if this.err == nil {
			this.err = err
		}

		return 255
	}

	return b
}

// Stopped returns true if the underlying EscapeReader reached the end
// of the frame or failed
func (this *BinaryEntropyDecoder) Stopped() bool {
	if er, ok := this.r.(*EscapeReader); ok {
		return er.Stopped()
	}

	return this.err != nil
}

// Truncated returns true if the input ended before the end of the frame
func (this *BinaryEntropyDecoder) Truncated() bool {
	return this.err == io.EOF || this.err == io.ErrUnexpectedEOF
}

// Malformed returns true if an illegal escape sequence was read
func (this *BinaryEntropyDecoder) Malformed() bool {
	return this.err == ErrMalformedEscape
}

// Err returns the first read error, if any
func (this *BinaryEntropyDecoder) Err() error {
	return this.err
}

// split returns the end of the sub range of bit 1 for probability p (12 bits)
func split(x1, x2 uint32, p int) uint32 {
	if p < 2048 {
		p++
	}

	r := x2 - x1
	return x1 + (r>>12)*uint32(p) + (((r & 0xFFF) * uint32(p)) >> 12)
}
