/*
Copyright 2011-2024 Frederic Langlet
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

package pqs

import (
	"fmt"
	"time"
)

const (
	EVT_COMPRESSION_START     = 0 // Compression starts
	EVT_DECOMPRESSION_START   = 1 // Decompression starts
	EVT_AFTER_HEADER_ENCODING = 2 // Stream header written
	EVT_AFTER_HEADER_DECODING = 3 // Stream header read and validated
	EVT_LITERAL_FRAME         = 4 // Verbatim frame written or read
	EVT_CODED_FRAME           = 5 // Arithmetic coded frame written or read
	EVT_COMPRESSION_END       = 6 // Compression ends
	EVT_DECOMPRESSION_END     = 7 // Decompression ends
)

// Event a compression/decompression event
type Event struct {
	eventType int
	id        int
	size      int64
	coded     int64
	eventTime time.Time
}

// NewEvent creates a new Event instance with size info.
// size is the number of payload bytes, coded the number of bytes in the stream.
func NewEvent(evtType, id int, size, coded int64, evtTime time.Time) *Event {
	if evtTime.IsZero() {
		evtTime = time.Now()
	}

	return &Event{eventType: evtType, id: id, size: size, coded: coded, eventTime: evtTime}
}

// Type returns the type info
func (this *Event) Type() int {
	return this.eventType
}

// ID returns the id info (frame number for frame events)
func (this *Event) ID() int {
	return this.id
}

// Time returns the time info
func (this *Event) Time() time.Time {
	return this.eventTime
}

// Size returns the number of payload bytes
func (this *Event) Size() int64 {
	return this.size
}

// CodedSize returns the number of bytes in the compressed stream
func (this *Event) CodedSize() int64 {
	return this.coded
}

// TypeName returns the name of the event type
func (this *Event) TypeName() string {
	switch this.eventType {
	case EVT_COMPRESSION_START:
		return "COMPRESSION_START"

	case EVT_DECOMPRESSION_START:
		return "DECOMPRESSION_START"

	case EVT_AFTER_HEADER_ENCODING:
		return "AFTER_HEADER_ENCODING"

	case EVT_AFTER_HEADER_DECODING:
		return "AFTER_HEADER_DECODING"

	case EVT_LITERAL_FRAME:
		return "LITERAL_FRAME"

	case EVT_CODED_FRAME:
		return "CODED_FRAME"

	case EVT_COMPRESSION_END:
		return "COMPRESSION_END"

	case EVT_DECOMPRESSION_END:
		return "DECOMPRESSION_END"
	}

	return "UNKNOWN"
}

// String returns a JSON like representation of this event
func (this *Event) String() string {
	id := ""

	if this.id >= 0 {
		id = fmt.Sprintf(", \"id\": %d", this.id)
	}

	return fmt.Sprintf("{ \"type\":\"%s\"%s, \"size\":%d, \"coded\":%d, \"time\":%d }", this.TypeName(), id,
		this.size, this.coded, this.eventTime.UnixNano()/1000000)
}

// Listener is an interface implemented by event processors
type Listener interface {
	// ProcessEvent is the method called whenever a Listener receives an event.
	ProcessEvent(evt *Event)
}
