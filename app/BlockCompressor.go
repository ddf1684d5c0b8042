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
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	pqs "github.com/flanglet/pqs-go"
	"github.com/flanglet/pqs-go/internal"
	kio "github.com/flanglet/pqs-go/io"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

// BlockCompressor main compressor struct
type BlockCompressor struct {
	cfg       Configuration
	logger    *zap.Logger
	scope     tally.Scope
	listeners []pqs.Listener
}

// NewBlockCompressor creates a new instance of BlockCompressor given
// a configuration. A memory of -1 selects the memory of the loaded or
// preloaded model, else the default memory.
func NewBlockCompressor(cfg Configuration, logger *zap.Logger, scope tally.Scope) (*BlockCompressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	this := &BlockCompressor{cfg: cfg, logger: logger, scope: scope}
	this.listeners = make([]pqs.Listener, 0)

	if this.logger == nil {
		this.logger = zap.NewNop()
	}

	if this.scope == nil {
		this.scope = tally.NoopScope
	}

	return this, nil
}

// AddListener adds an event listener to this compressor.
// Returns true if the listener has been added.
func (this *BlockCompressor) AddListener(bl pqs.Listener) bool {
	if bl == nil {
		return false
	}

	this.listeners = append(this.listeners, bl)
	return true
}

// RemoveListener removes an event listener from this compressor.
// Returns true if the listener has been removed.
func (this *BlockCompressor) RemoveListener(bl pqs.Listener) bool {
	for i, e := range this.listeners {
		if e == bl {
			this.listeners = append(this.listeners[:i], this.listeners[i+1:]...)
			return true
		}
	}

	return false
}

// Compress compresses the input into the output provided at construction.
// Each read of the input is flushed to the output as soon as it is coded.
// Returns exit code, number of bytes written.
func (this *BlockCompressor) Compress() (int, int64) {
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

	pred, err := createPredictor(this.cfg, logger, this.scope)

	if err != nil {
		return reportError(logger, err), 0
	}

	logger.Info("compressing",
		zap.Uint("memory", pred.MemorySelector()),
		zap.String("modelSize", datasize.ByteSize(pqs.MemorySize(pred.MemorySelector())).HR()),
		zap.Uint("chunkSize", this.cfg.ChunkSize))

	var src io.Reader = input

	// Files are not pipes: peek at the magic to detect compressed data
	if strings.ToUpper(this.cfg.Input) != _CFG_STDIN {
		br := bufio.NewReader(input)

		if buf, _ := br.Peek(4); internal.IsDataCompressed(internal.GetMagicType(buf)) {
			logger.Warn("the input looks already compressed")
		}

		src = br
	}

	ctx := make(map[string]any)
	ctx["predictor"] = pred
	ctx["chunkSize"] = this.cfg.ChunkSize
	ctx["logger"] = logger
	ctx["scope"] = this.scope
	before := time.Now()
	read, written, err := kio.Compress(output, src, ctx, this.listeners...)

	if err != nil {
		return reportError(logger, err), written
	}

	if err = output.Close(); err != nil {
		return reportError(logger, newAppError(pqs.ERR_WRITE_FILE, err, "Cannot close output")), written
	}

	if this.cfg.Save != "" {
		if err = saveModel(pred, this.cfg.Save); err != nil {
			return reportError(logger, err), written
		}

		logger.Info("model saved", zap.String("file", this.cfg.Save))
	}

	if read == 0 {
		logger.Info("input is empty")
	}

	logger.Info("compression done",
		zap.String("inputSize", datasize.ByteSize(read).HR()),
		zap.String("outputSize", datasize.ByteSize(written).HR()),
		zap.Duration("duration", time.Since(before)),
		zap.String("ratio", ratio(read, written)))
	return 0, written
}
