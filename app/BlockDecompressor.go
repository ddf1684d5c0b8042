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
	"time"

	"github.com/c2h5oh/datasize"
	pqs "github.com/flanglet/pqs-go"
	"github.com/flanglet/pqs-go/entropy"
	kio "github.com/flanglet/pqs-go/io"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

// BlockDecompressor main decompressor struct
type BlockDecompressor struct {
	cfg       Configuration
	logger    *zap.Logger
	scope     tally.Scope
	listeners []pqs.Listener
}

// NewBlockDecompressor creates a new instance of BlockDecompressor given
// a validated configuration. A memory of -1 means that the memory of the
// stream header is used.
func NewBlockDecompressor(cfg Configuration, logger *zap.Logger, scope tally.Scope) (*BlockDecompressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	this := &BlockDecompressor{cfg: cfg, logger: logger, scope: scope}
	this.listeners = make([]pqs.Listener, 0)

	if this.logger == nil {
		this.logger = zap.NewNop()
	}

	if this.scope == nil {
		this.scope = tally.NoopScope
	}

	return this, nil
}

// AddListener adds an event listener to this decompressor.
// Returns true if the listener has been added.
func (this *BlockDecompressor) AddListener(bl pqs.Listener) bool {
	if bl == nil {
		return false
	}

	this.listeners = append(this.listeners, bl)
	return true
}

// RemoveListener removes an event listener from this decompressor.
// Returns true if the listener has been removed.
func (this *BlockDecompressor) RemoveListener(bl pqs.Listener) bool {
	for i, e := range this.listeners {
		if e == bl {
			this.listeners = append(this.listeners[:i], this.listeners[i+1:]...)
			return true
		}
	}

	return false
}

// Decompress decompresses the input into the output provided at construction.
// Decoded frames are written to the output as soon as they are available.
// Bytes decoded before a truncation or format error are still written.
// Returns exit code, number of bytes read.
func (this *BlockDecompressor) Decompress() (int, int64) {
	logger := this.logger.With(zap.String("input", this.cfg.Input), zap.String("output", this.cfg.Output))
	input, err := openInput(this.cfg.Input)

	if err != nil {
		return reportError(logger, err), 0
	}

	defer input.Close()

	output, err := createOutput(this.cfg.Output, this.cfg.Input, this.cfg.Overwrite)

	if err != nil {
		return reportError(logger, err), 0
	}

	defer output.Close()

	ctx := make(map[string]any)
	ctx["logger"] = logger
	ctx["scope"] = this.scope

	// Without a model to restore, the predictor is created once the
	// stream header is read
	if this.cfg.Load != "" || this.cfg.Preload != "" {
		pred, err := createPredictor(this.cfg, logger, this.scope)

		if err != nil {
			return reportError(logger, err), 0
		}

		ctx["predictor"] = pred
	} else if this.cfg.Memory != _CFG_AUTO_MEMORY {
		ctx["memory"] = uint(this.cfg.Memory)
	}

	before := time.Now()
	read, written, err := kio.Decompress(output, input, ctx, this.listeners...)

	if err != nil {
		logger.Warn("partial output", zap.Int64("written", written))
		return reportError(logger, err), read
	}

	if err = output.Close(); err != nil {
		return reportError(logger, newAppError(pqs.ERR_WRITE_FILE, err, "Cannot close output")), read
	}

	if this.cfg.Save != "" {
		// Set by the reader once the stream header is decoded
		pred, hasKey := ctx["predictor"]

		if !hasKey {
			return reportError(logger, newAppError(pqs.ERR_INVALID_FILE, nil, "No model to save: missing stream header")), read
		}

		if err = saveModel(pred.(*entropy.LPAQPredictor), this.cfg.Save); err != nil {
			return reportError(logger, err), read
		}

		logger.Info("model saved", zap.String("file", this.cfg.Save))
	}

	logger.Info("decompression done",
		zap.String("inputSize", datasize.ByteSize(read).HR()),
		zap.String("outputSize", datasize.ByteSize(written).HR()),
		zap.Duration("duration", time.Since(before)))
	return 0, read
}
