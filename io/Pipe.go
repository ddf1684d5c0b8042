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

package io

import (
	"io"

	pqs "github.com/flanglet/pqs-go"
	"github.com/flanglet/pqs-go/entropy"
)

// Compress reads src until EOF and writes a compressed stream to dst.
// Each read from src becomes one or more frames flushed to dst at once, so
// a consumer receives the data of a pipe without waiting for more input.
// Returns the number of bytes read from src and written to dst.
func Compress(dst io.Writer, src io.Reader, ctx map[string]any, listeners ...pqs.Listener) (int64, int64, error) {
	w, err := NewWriterWithCtx(dst, ctx)

	if err != nil {
		return 0, 0, err
	}

	for _, bl := range listeners {
		w.AddListener(bl)
	}

	buf := make([]byte, w.chunkSize)

	for {
		n, err := src.Read(buf)

		if n > 0 {
			if _, err := w.Write(buf[0:n]); err != nil {
				return w.GetRead(), w.GetWritten(), err
			}
		}

		if err == io.EOF {
			break
		}

		if err != nil {
			return w.GetRead(), w.GetWritten(), newIOError(pqs.ERR_READ_FILE, err, "Cannot read input")
		}
	}

	err = w.Close()
	return w.GetRead(), w.GetWritten(), err
}

// Decompress reads a compressed stream from src and writes the decoded
// bytes to dst as soon as each frame is decoded. Returns the number of
// bytes read from src and written to dst. A nil dst discards the output.
func Decompress(dst io.Writer, src io.Reader, ctx map[string]any, listeners ...pqs.Listener) (int64, int64, error) {
	r, err := NewReaderWithCtx(src, ctx)

	if err != nil {
		return 0, 0, err
	}

	for _, bl := range listeners {
		r.AddListener(bl)
	}

	if dst == nil {
		dst = io.Discard
	}

	buf := make([]byte, MAX_CHUNK_SIZE)
	written := int64(0)

	for {
		n, err := r.Read(buf)

		if n > 0 {
			if _, err := dst.Write(buf[0:n]); err != nil {
				return r.GetRead(), written, newIOError(pqs.ERR_WRITE_FILE, err, "Cannot write output")
			}

			written += int64(n)
		}

		if err == io.EOF {
			break
		}

		if err != nil {
			return r.GetRead(), written, err
		}
	}

	return r.GetRead(), written, r.Close()
}

// Preload trains a predictor by decompressing the stream src and
// discarding the output. If pred is nil, a predictor is created with the
// memory of the stream header (which must match the "memory" value of ctx
// if provided). Otherwise the memory of the stream must match the memory
// of pred. Returns the trained predictor.
func Preload(pred *entropy.LPAQPredictor, src io.Reader, ctx map[string]any) (*entropy.LPAQPredictor, error) {
	copyCtx := make(map[string]any)

	for k, v := range ctx {
		copyCtx[k] = v
	}

	if pred != nil {
		delete(copyCtx, "memory")
		copyCtx["predictor"] = pred
	} else {
		delete(copyCtx, "predictor")
	}

	_, _, err := Decompress(nil, src, copyCtx)

	if val, hasKey := copyCtx["predictor"]; hasKey {
		pred = val.(*entropy.LPAQPredictor)
	}

	return pred, err
}
