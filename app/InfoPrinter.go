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

package main

import (
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
	pqs "github.com/flanglet/pqs-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// An implementation of Listener to log stream information (verbose option
// of the BlockCompressor/BlockDecompressor)

const (
	ENCODING = 0
	DECODING = 1
)

// InfoPrinter logs the events of a compressed stream
type InfoPrinter struct {
	logger     *zap.Logger
	type_      uint
	level      uint
	thresholds []int
	time0      time.Time
	frames     int
	literals   int
}

// NewInfoPrinter creates a new instance of InfoPrinter.
// Frames are logged from level 4, the raw events from level 5.
func NewInfoPrinter(infoLevel, type_ uint, logger *zap.Logger) (*InfoPrinter, error) {
	if logger == nil {
		return nil, errors.New("Invalid null logger parameter")
	}

	this := &InfoPrinter{}
	this.type_ = type_ & 1
	this.level = infoLevel
	this.logger = logger

	if this.type_ == ENCODING {
		this.thresholds = []int{
			pqs.EVT_COMPRESSION_START,
			pqs.EVT_AFTER_HEADER_ENCODING,
			pqs.EVT_COMPRESSION_END,
		}
	} else {
		this.thresholds = []int{
			pqs.EVT_DECOMPRESSION_START,
			pqs.EVT_AFTER_HEADER_DECODING,
			pqs.EVT_DECOMPRESSION_END,
		}
	}

	return this, nil
}

// ProcessEvent logs the provided event depending on the info level
func (this *InfoPrinter) ProcessEvent(evt *pqs.Event) {
	if this.level >= 5 {
		this.logger.Debug(evt.String())
	}

	switch evt.Type() {
	case this.thresholds[0]:
		this.time0 = evt.Time()
		this.frames = 0
		this.literals = 0

	case this.thresholds[1]:
		if this.level >= 3 {
			this.logger.Info("stream header", zap.String("event", evt.TypeName()),
				zap.Int64("offset", evt.CodedSize()))
		}

	case pqs.EVT_LITERAL_FRAME, pqs.EVT_CODED_FRAME:
		this.frames++

		if evt.Type() == pqs.EVT_LITERAL_FRAME {
			this.literals++
		}

		if this.level >= 4 {
			this.logger.Info("frame", zap.Int("id", evt.ID()),
				zap.Bool("literal", evt.Type() == pqs.EVT_LITERAL_FRAME),
				zap.String("size", datasize.ByteSize(evt.Size()).HR()),
				zap.Int64("coded", evt.CodedSize()),
				zap.String("ratio", ratio(evt.Size(), evt.CodedSize())))
		}

	case this.thresholds[2]:
		if this.level >= 2 {
			durationMS := evt.Time().Sub(this.time0).Nanoseconds() / int64(time.Millisecond)
			this.logger.Info("stream end",
				zap.Int("frames", this.frames),
				zap.Int("literalFrames", this.literals),
				zap.String("size", datasize.ByteSize(evt.Size()).HR()),
				zap.String("coded", datasize.ByteSize(evt.CodedSize()).HR()),
				zap.Int64("ms", durationMS))
		}
	}
}

// ratio returns the coded size as a percentage of the size
func ratio(size, coded int64) string {
	if size == 0 {
		return "n/a"
	}

	return fmt.Sprintf("%d%%", coded*100/size)
}
