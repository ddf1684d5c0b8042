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

package internal

import (
	"bytes"

	"github.com/pkg/errors"
)

// ErrStreamClosed is returned by a closed BufferStream
var ErrStreamClosed = errors.New("Stream closed")

// ErrInjected is returned once the write budget of a BufferStream is spent
var ErrInjected = errors.New("Injected write failure")

// BufferStream a closable read/write stream of bytes backed by a bytes.Buffer.
// It can emulate a pipe: reads return at most readLimit bytes and every
// call to Write is recorded.
type BufferStream struct {
	buf       *bytes.Buffer
	closed    bool
	readLimit int
	writes    []int
	maxWrites int // -1: no limit
}

// NewBufferStream creates a new instance of BufferStream
func NewBufferStream(args ...[]byte) *BufferStream {
	this := &BufferStream{maxWrites: -1}

	if len(args) == 1 {
		this.buf = bytes.NewBuffer(args[0])
	} else {
		this.buf = bytes.NewBuffer(make([]byte, 0))
	}

	return this
}

// SetReadLimit caps the number of bytes returned by each Read (0: no cap)
func (this *BufferStream) SetReadLimit(limit int) {
	this.readLimit = limit
}

// FailAfter makes every Write fail once n writes have succeeded
func (this *BufferStream) FailAfter(n int) {
	this.maxWrites = n
}

// Write returns an error if the stream is closed, otherwise writes the given
// data to the internal buffer (growing the buffer as needed).
// Returns the number of bytes written.
func (this *BufferStream) Write(b []byte) (int, error) {
	if this.closed == true {
		return 0, ErrStreamClosed
	}

	if this.maxWrites >= 0 && len(this.writes) >= this.maxWrites {
		return 0, ErrInjected
	}

	this.writes = append(this.writes, len(b))
	return this.buf.Write(b)
}

// Read returns an error if the stream is closed, otherwise reads data from
// the internal buffer at the read offset position.
// Returns the number of bytes read or (0, io.EOF) when no more data remains.
func (this *BufferStream) Read(b []byte) (int, error) {
	if this.closed == true {
		return 0, ErrStreamClosed
	}

	if this.readLimit > 0 && len(b) > this.readLimit {
		b = b[0:this.readLimit]
	}

	return this.buf.Read(b)
}

// Close makes the stream unavailable for future reads or writes.
func (this *BufferStream) Close() error {
	this.closed = true
	return nil
}

// Len returns the number of unread bytes in the stream
func (this *BufferStream) Len() int {
	return this.buf.Len()
}

// Bytes returns the unread bytes of the stream
func (this *BufferStream) Bytes() []byte {
	return this.buf.Bytes()
}

// Writes returns the size of every successful call to Write
func (this *BufferStream) Writes() []int {
	return this.writes
}
