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

	"github.com/pkg/errors"
)

// Coded bytes are framed with an escape protocol so that the pair FF FF
// never appears inside a frame and can terminate it:
//   FF (attention off) -> FF, attention on
//   FF (attention on)  -> FE FE
//   FE (attention on)  -> FE FD
// Any other byte clears the attention flag.

const (
	ESCAPE_MARK  = 0xFF
	ESCAPE_BYTE  = 0xFE
	ESCAPED_FF   = 0xFE
	ESCAPED_FE   = 0xFD
	END_OF_FRAME = 0xFF
)

// ErrMalformedEscape is reported when FE (attention on) is followed by
// a byte other than FE or FD.
var ErrMalformedEscape = errors.New("Malformed escape sequence in coded frame")

// EscapeWriter escapes the bytes written to the underlying writer
type EscapeWriter struct {
	w         io.ByteWriter
	attention bool
}

// NewEscapeWriter creates an EscapeWriter with attention off
func NewEscapeWriter(w io.ByteWriter) *EscapeWriter {
	return &EscapeWriter{w: w}
}

// WriteByte writes the escaped form of c
func (this *EscapeWriter) WriteByte(c byte) error {
	if c == ESCAPE_MARK {
		if this.attention == false {
			this.attention = true
			return this.w.WriteByte(ESCAPE_MARK)
		}

		this.attention = false

		if err := this.w.WriteByte(ESCAPE_BYTE); err != nil {
			return err
		}

		return this.w.WriteByte(ESCAPED_FF)
	}

	if c == ESCAPE_BYTE && this.attention == true {
		this.attention = false

		if err := this.w.WriteByte(ESCAPE_BYTE); err != nil {
			return err
		}

		return this.w.WriteByte(ESCAPED_FE)
	}

	this.attention = false
	return this.w.WriteByte(c)
}

// EscapeReader reverses EscapeWriter. It stops at the end of frame mark
// (FF FF), on a malformed sequence or at the end of the input. Once
// stopped, every read returns 255 without consuming input.
type EscapeReader struct {
	r         io.ByteReader
	attention bool
	stopped   bool
	truncated bool
	malformed bool
}

// NewEscapeReader creates an EscapeReader with attention off
func NewEscapeReader(r io.ByteReader) *EscapeReader {
	return &EscapeReader{r: r}
}

// ReadByte returns the next unescaped byte. An error is returned once,
// when the reader stops because of a malformed sequence, a truncated
// input or a read failure. A normal end of frame is not an error.
func (this *EscapeReader) ReadByte() (byte, error) {
	if this.stopped == true {
		return 255, nil
	}

	c, err := this.r.ReadByte()

	if err != nil {
		return 255, this.fail(err)
	}

	if c < ESCAPE_BYTE {
		this.attention = false
		return c, nil
	}

	if this.attention == false {
		this.attention = c == ESCAPE_MARK
		return c, nil
	}

	this.attention = false

	if c == END_OF_FRAME {
		this.stopped = true
		return 255, nil
	}

	d, err := this.r.ReadByte()

	if err != nil {
		return 255, this.fail(err)
	}

	switch d {
	case ESCAPED_FF:
		return 0xFF, nil

	case ESCAPED_FE:
		return 0xFE, nil
	}

	this.stopped = true
	this.malformed = true
	return 255, ErrMalformedEscape
}

func (this *EscapeReader) fail(err error) error {
	this.stopped = true

	if err == io.EOF {
		this.truncated = true
		return io.ErrUnexpectedEOF
	}

	return err
}

// Stopped returns true once the end of frame mark was read or the
// reader failed
func (this *EscapeReader) Stopped() bool {
	return this.stopped
}

// Truncated returns true if the input ended before the end of frame mark
func (this *EscapeReader) Truncated() bool {
	return this.truncated
}

// Malformed returns true if an illegal escape sequence was read
func (this *EscapeReader) Malformed() bool {
	return this.malformed
}
