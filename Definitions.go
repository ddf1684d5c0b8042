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

// Package pqs defines the top level interfaces of the pqs streaming
// context mixing compressor/decompressor.
//
// The implementation of these interfaces are available in sub-folders.
// The entropy package contains the bit predictor and the arithmetic coder,
// the io package contains the Writer and Reader used to compress and
// decompress streams chunk by chunk.
package pqs

import (
	"io"
)

const (
	ERR_MISSING_PARAM       = 1
	ERR_CREATE_COMPRESSOR   = 4
	ERR_CREATE_DECOMPRESSOR = 5
	ERR_CREATE_FILE         = 8
	ERR_OPEN_FILE           = 10
	ERR_READ_FILE           = 11
	ERR_WRITE_FILE          = 12
	ERR_PROCESS_BLOCK       = 13
	ERR_INVALID_FILE        = 15
	ERR_STREAM_VERSION      = 16
	ERR_INVALID_PARAM       = 18
	ERR_CRC_CHECK           = 19
	ERR_TRUNCATED           = 20
	ERR_UNKNOWN             = 127
)

const (
	// MIN_MEMORY_SELECTOR is the smallest memory option (1 MB of predictor memory)
	MIN_MEMORY_SELECTOR = 0

	// MAX_MEMORY_SELECTOR is the largest memory option (512 MB of predictor memory)
	MAX_MEMORY_SELECTOR = 9
)

// MemorySize returns the predictor memory budget (in bytes) for the given
// memory selector: 2^(20+selector).
func MemorySize(selector uint) int {
	return 1 << (20 + selector)
}

// Predictor predicts the probability of the next bit being 1.
type Predictor interface {
	// Update updates the internal probability model based on the observed bit
	Update(bit byte)

	// Get returns the value representing the probability of the next bit being 1
	// in the [0..4095] range.
	// E.G. 410 represents roughly a probability of 10% for 1
	Get() int
}

// Model is a Predictor whose whole state can be copied, saved and restored.
// Line classifiers and other front ends only rely on this contract.
type Model interface {
	Predictor

	// MemorySelector returns the memory option the model was created with
	MemorySelector() uint

	// Save writes the full state of the model to the writer
	Save(w io.Writer) error
}
