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

// Package io provides the implementations of a Writer and a Reader
// used to respectively compress and decompress streams chunk by chunk.
package io

import (
	"bufio"
	"fmt"
	"io"
	"time"

	pqs "github.com/flanglet/pqs-go"
	"github.com/flanglet/pqs-go/entropy"
	internal "github.com/flanglet/pqs-go/internal"
	"github.com/pkg/errors"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

// Stream layout:
// - header: "pQS" followed by the memory selector digit ('0'..'9')
// - frames:
//   - bytes < 0x80: literal byte (short chunks of 7-bit bytes)
//   - 0x80|len (len < 64) or 0xC0|len>>8, len&0xFF: coded frame of len bytes,
//     followed by the escaped arithmetic coder output and FF FF
//   - 0xFF: ignored (may follow the end of a coded frame)
// Every frame is flushed as soon as it is written.
// All frames share the same predictor, each coded frame uses a fresh coder.

const (
	STREAM_MAGIC             = "pQS"
	DEFAULT_CHUNK_SIZE       = 0x3EFE
	MAX_CHUNK_SIZE           = 0x3EFF // the first tag byte must differ from 0xFF
	_SMALL_CHUNK_SIZE        = 7
	_SHORT_TAG_MAX_LENGTH    = 64
	_STREAM_BUFFER_SIZE      = 64 * 1024
	_TAG_SHORT               = 0x80
	_TAG_LONG                = 0xC0
	_TAG_LENGTH_MASK         = 0x3F
	_FRAME_SKIP              = 0xFF
	_END_OF_FRAME            = 0xFF
	_COUNTER_LITERAL_FRAMES  = "frames.literal"
	_COUNTER_CODED_FRAMES    = "frames.coded"
	_COUNTER_SKIPPED_FRAMES  = "frames.skipped"
	_COUNTER_BYTES_IN        = "bytes.in"
	_COUNTER_BYTES_OUT       = "bytes.out"
	_COUNTER_TRUNCATED_ERROR = "errors.truncated"
	_COUNTER_FORMAT_ERROR    = "errors.format"
)

// IOError an extended error containing a message and a code value
type IOError struct {
	msg   string
	code  int
	cause error
}

// Error returns the underlying error
func (this IOError) Error() string {
	return fmt.Sprintf("%v (code %v)", this.msg, this.code)
}

// Message returns the message string associated with the error
func (this IOError) Message() string {
	return this.msg
}

// ErrorCode returns the code value associated with the error
func (this IOError) ErrorCode() int {
	return this.code
}

// Unwrap returns the error that caused this one, if any
func (this IOError) Unwrap() error {
	return this.cause
}

// NewIOError creates an IOError with the provided message and code
func NewIOError(msg string, code int) *IOError {
	return &IOError{msg: msg, code: code}
}

func newIOError(code int, cause error, msg string) *IOError {
	if cause != nil {
		msg = errors.Wrap(cause, msg).Error()
	}

	return &IOError{msg: msg, code: code, cause: cause}
}

// IsFormatError returns true if err reports an invalid stream
// (bad header, bad frame tag or illegal escape sequence)
func IsFormatError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr) && ioErr.code == pqs.ERR_INVALID_FILE
}

// IsTruncated returns true if err reports a stream that ended in the
// middle of a frame
func IsTruncated(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr) && ioErr.code == pqs.ERR_TRUNCATED
}

type streamMetrics struct {
	literal   tally.Counter
	coded     tally.Counter
	skipped   tally.Counter
	bytesIn   tally.Counter
	bytesOut  tally.Counter
	truncated tally.Counter
	format    tally.Counter
}

func newStreamMetrics(scope tally.Scope) streamMetrics {
	return streamMetrics{
		literal:   scope.Counter(_COUNTER_LITERAL_FRAMES),
		coded:     scope.Counter(_COUNTER_CODED_FRAMES),
		skipped:   scope.Counter(_COUNTER_SKIPPED_FRAMES),
		bytesIn:   scope.Counter(_COUNTER_BYTES_IN),
		bytesOut:  scope.Counter(_COUNTER_BYTES_OUT),
		truncated: scope.Counter(_COUNTER_TRUNCATED_ERROR),
		format:    scope.Counter(_COUNTER_FORMAT_ERROR),
	}
}

// ambient returns the logger and metrics scope of the context map
func ambient(ctx map[string]any) (*zap.Logger, tally.Scope) {
	logger := zap.NewNop()
	scope := tally.NoopScope

	if val, hasKey := ctx["logger"]; hasKey && val != nil {
		logger = val.(*zap.Logger)
	}

	if val, hasKey := ctx["scope"]; hasKey && val != nil {
		scope = val.(tally.Scope)
	}

	return logger, scope
}

// predictorFromCtx returns the shared predictor of the context map if
// any and the memory selector (-1 if not provided).
func predictorFromCtx(ctx map[string]any) (*entropy.LPAQPredictor, int, error) {
	var pred *entropy.LPAQPredictor
	memory := -1

	if val, hasKey := ctx["predictor"]; hasKey && val != nil {
		pred = val.(*entropy.LPAQPredictor)
		memory = int(pred.MemorySelector())
	}

	if val, hasKey := ctx["memory"]; hasKey {
		mem := val.(uint)

		if mem > pqs.MAX_MEMORY_SELECTOR {
			errMsg := fmt.Sprintf("The memory selector must be in [%d..%d], got %d",
				pqs.MIN_MEMORY_SELECTOR, pqs.MAX_MEMORY_SELECTOR, mem)
			return nil, -1, &IOError{msg: errMsg, code: pqs.ERR_INVALID_PARAM}
		}

		if memory >= 0 && int(mem) != memory {
			errMsg := fmt.Sprintf("The memory selector (%d) does not match the predictor memory (%d)", mem, memory)
			return nil, -1, &IOError{msg: errMsg, code: pqs.ERR_INVALID_PARAM}
		}

		memory = int(mem)
	}

	return pred, memory, nil
}

func notifyListeners(listeners []pqs.Listener, evt *pqs.Event) {
	defer func() {
		//nolint
		if r := recover(); r != nil {
			//lint:ignore SA9003
			// Ignore panics in listeners
		}
	}()

	for _, bl := range listeners {
		bl.ProcessEvent(evt)
	}
}

func addListener(listeners []pqs.Listener, bl pqs.Listener) ([]pqs.Listener, bool) {
	if bl == nil {
		return listeners, false
	}

	return append(listeners, bl), true
}

func removeListener(listeners []pqs.Listener, bl pqs.Listener) ([]pqs.Listener, bool) {
	if bl == nil {
		return listeners, false
	}

	for i, e := range listeners {
		if e == bl {
			return append(listeners[:i], listeners[i+1:]...), true
		}
	}

	return listeners, false
}

// Writer a Writer that writes compressed frames to an io.Writer.
// Every call to Write produces frames of at most chunkSize bytes that
// are flushed to the underlying writer before Write returns.
type Writer struct {
	w           *bufio.Writer
	predictor   *entropy.LPAQPredictor
	memory      uint
	chunkSize   int
	initialized bool
	closed      bool
	frameID     int
	read        int64 // uncompressed bytes
	written     int64 // compressed bytes, header included
	listeners   []pqs.Listener
	logger      *zap.Logger
	metrics     streamMetrics
}

// NewWriter creates a new instance of Writer.
// The writer writes compressed frames to the provided os.
func NewWriter(os io.Writer, memory, chunkSize uint) (*Writer, error) {
	ctx := make(map[string]any)
	ctx["memory"] = memory
	ctx["chunkSize"] = chunkSize
	return NewWriterWithCtx(os, ctx)
}

// NewWriterWithCtx creates a new instance of Writer using a
// map of parameters and a writer.
// Keys: "memory" (uint, required unless "predictor" is provided),
// "chunkSize" (uint), "predictor" (*entropy.LPAQPredictor),
// "logger" (*zap.Logger), "scope" (tally.Scope).
func NewWriterWithCtx(os io.Writer, ctx map[string]any) (*Writer, error) {
	if os == nil {
		return nil, &IOError{msg: "Invalid null output stream parameter", code: pqs.ERR_CREATE_COMPRESSOR}
	}

	if ctx == nil {
		return nil, &IOError{msg: "Invalid null context parameter", code: pqs.ERR_CREATE_COMPRESSOR}
	}

	pred, memory, err := predictorFromCtx(ctx)

	if err != nil {
		return nil, err
	}

	if memory < 0 {
		return nil, &IOError{msg: "Missing memory selector parameter", code: pqs.ERR_MISSING_PARAM}
	}

	chunkSize := uint(DEFAULT_CHUNK_SIZE)

	if val, hasKey := ctx["chunkSize"]; hasKey {
		chunkSize = val.(uint)
	}

	if chunkSize == 0 || chunkSize > MAX_CHUNK_SIZE {
		errMsg := fmt.Sprintf("The chunk size must be in [1..%d], got %d", MAX_CHUNK_SIZE, chunkSize)
		return nil, &IOError{msg: errMsg, code: pqs.ERR_INVALID_PARAM}
	}

	if pred == nil {
		if pred, err = entropy.NewLPAQPredictor(uint(memory)); err != nil {
			return nil, newIOError(pqs.ERR_CREATE_COMPRESSOR, err, "Cannot create predictor")
		}
	}

	this := &Writer{}
	this.w = bufio.NewWriterSize(os, _STREAM_BUFFER_SIZE)
	this.predictor = pred
	this.memory = uint(memory)
	this.chunkSize = int(chunkSize)
	this.listeners = make([]pqs.Listener, 0)
	logger, scope := ambient(ctx)
	this.logger = logger.With(zap.String("stream", "compress"))
	this.metrics = newStreamMetrics(scope)
	return this, nil
}

// AddListener adds an event listener to this writer.
// Returns true if the listener has been added.
func (this *Writer) AddListener(bl pqs.Listener) bool {
	var added bool
	this.listeners, added = addListener(this.listeners, bl)
	return added
}

// RemoveListener removes an event listener from this writer.
// Returns true if the listener has been removed.
func (this *Writer) RemoveListener(bl pqs.Listener) bool {
	var removed bool
	this.listeners, removed = removeListener(this.listeners, bl)
	return removed
}

func (this *Writer) writeHeader() error {
	if len(this.listeners) > 0 {
		notifyListeners(this.listeners, pqs.NewEvent(pqs.EVT_COMPRESSION_START, -1, 0, 0, time.Now()))
	}

	this.w.WriteString(STREAM_MAGIC)
	this.w.WriteByte(byte('0' + this.memory))

	if err := this.w.Flush(); err != nil {
		return newIOError(pqs.ERR_WRITE_FILE, err, "Cannot write stream header")
	}

	this.written += int64(len(STREAM_MAGIC) + 1)
	this.metrics.bytesOut.Inc(int64(len(STREAM_MAGIC) + 1))
	this.logger.Debug("stream header written", zap.Uint("memory", this.memory))

	if len(this.listeners) > 0 {
		notifyListeners(this.listeners, pqs.NewEvent(pqs.EVT_AFTER_HEADER_ENCODING, -1, 0, this.written, time.Now()))
	}

	return nil
}

// Write compresses len(block) bytes from block and writes the frames to the
// underlying data stream. Returns the number of bytes consumed from block
// (0 <= n <= len(block)) and any error encountered that caused the write to
// stop early.
func (this *Writer) Write(block []byte) (int, error) {
	if this.closed == true {
		return 0, &IOError{msg: "Stream closed", code: pqs.ERR_WRITE_FILE}
	}

	if this.initialized == false {
		if err := this.writeHeader(); err != nil {
			return 0, err
		}

		this.initialized = true
	}

	off := 0

	for off < len(block) {
		n := len(block) - off

		if n > this.chunkSize {
			n = this.chunkSize
		}

		if err := this.writeFrame(block[off : off+n]); err != nil {
			return off, err
		}

		off += n
	}

	return off, nil
}

func isSmallChunk(chunk []byte) bool {
	if len(chunk) >= _SMALL_CHUNK_SIZE {
		return false
	}

	for _, b := range chunk {
		if b >= 0x80 {
			return false
		}
	}

	return true
}

func (this *Writer) writeFrame(chunk []byte) error {
	evtType := pqs.EVT_LITERAL_FRAME
	start := this.w.Buffered()

	if isSmallChunk(chunk) == true {
		this.w.Write(chunk)
		this.metrics.literal.Inc(1)
	} else {
		evtType = pqs.EVT_CODED_FRAME

		if len(chunk) < _SHORT_TAG_MAX_LENGTH {
			this.w.WriteByte(byte(_TAG_SHORT | len(chunk)))
		} else {
			this.w.WriteByte(byte(_TAG_LONG | len(chunk)>>8))
			this.w.WriteByte(byte(len(chunk)))
		}

		// Cannot fail: both parameters are not nil
		ec, _ := entropy.NewBinaryEntropyEncoder(entropy.NewEscapeWriter(this.w), this.predictor)

		for _, b := range chunk {
			ec.EncodeByte(b)
		}

		ec.Flush()
		this.w.WriteByte(_END_OF_FRAME)
		this.w.WriteByte(_END_OF_FRAME)
		this.metrics.coded.Inc(1)
	}

	coded := int64(this.w.Buffered() - start)

	if err := this.w.Flush(); err != nil {
		return newIOError(pqs.ERR_WRITE_FILE, err, fmt.Sprintf("Cannot write frame %d", this.frameID))
	}

	this.read += int64(len(chunk))
	this.written += coded
	this.metrics.bytesIn.Inc(int64(len(chunk)))
	this.metrics.bytesOut.Inc(coded)

	if ce := this.logger.Check(zap.DebugLevel, "frame written"); ce != nil {
		ce.Write(zap.Int("id", this.frameID), zap.Int("size", len(chunk)),
			zap.Int64("coded", coded), zap.Bool("literal", evtType == pqs.EVT_LITERAL_FRAME))
	}

	if len(this.listeners) > 0 {
		notifyListeners(this.listeners, pqs.NewEvent(evtType, this.frameID, int64(len(chunk)), coded, time.Now()))
	}

	this.frameID++
	return nil
}

// Close writes the header if no data was written and flushes the
// underlying buffer. The underlying writer is not closed. Idempotent.
func (this *Writer) Close() error {
	if this.closed == true {
		return nil
	}

	this.closed = true

	if this.initialized == false {
		if err := this.writeHeader(); err != nil {
			return err
		}

		this.initialized = true
	}

	if err := this.w.Flush(); err != nil {
		return newIOError(pqs.ERR_WRITE_FILE, err, "Cannot flush stream")
	}

	if len(this.listeners) > 0 {
		notifyListeners(this.listeners, pqs.NewEvent(pqs.EVT_COMPRESSION_END, -1, this.read, this.written, time.Now()))
	}

	return nil
}

// Predictor returns the predictor shared by all the frames
func (this *Writer) Predictor() *entropy.LPAQPredictor {
	return this.predictor
}

// GetRead returns the number of uncompressed bytes written to this stream
func (this *Writer) GetRead() int64 {
	return this.read
}

// GetWritten returns the number of compressed bytes written so far
func (this *Writer) GetWritten() int64 {
	return this.written
}

// Reader a Reader that reads compressed frames from an io.Reader
type Reader struct {
	r           *bufio.Reader
	predictor   *entropy.LPAQPredictor
	memory      int // -1: use the memory of the stream header
	initialized bool
	closed      bool
	eos         bool
	err         error // delivered once all the decoded bytes are consumed
	frameID     int
	buffer      []byte // decoded bytes not consumed yet
	off         int
	read        int64 // compressed bytes, header included
	written     int64 // uncompressed bytes
	listeners   []pqs.Listener
	logger      *zap.Logger
	metrics     streamMetrics
	ctx         map[string]any
}

// NewReader creates a new instance of Reader.
// The reader reads compressed frames from the provided is.
// A memory selector greater than pqs.MAX_MEMORY_SELECTOR means
// that the memory provided in the stream header is used.
func NewReader(is io.Reader, memory uint) (*Reader, error) {
	ctx := make(map[string]any)

	if memory <= pqs.MAX_MEMORY_SELECTOR {
		ctx["memory"] = memory
	}

	return NewReaderWithCtx(is, ctx)
}

// NewReaderWithCtx creates a new instance of Reader
// using a map of parameters.
// Keys: "memory" (uint, optional), "predictor" (*entropy.LPAQPredictor),
// "logger" (*zap.Logger), "scope" (tally.Scope).
// Once the stream header is read, "memory" and "predictor" are set in the
// map to the values used by the stream.
func NewReaderWithCtx(is io.Reader, ctx map[string]any) (*Reader, error) {
	if is == nil {
		return nil, &IOError{msg: "Invalid null input stream parameter", code: pqs.ERR_CREATE_DECOMPRESSOR}
	}

	if ctx == nil {
		return nil, &IOError{msg: "Invalid null context parameter", code: pqs.ERR_CREATE_DECOMPRESSOR}
	}

	pred, memory, err := predictorFromCtx(ctx)

	if err != nil {
		return nil, err
	}

	this := &Reader{}
	this.r = bufio.NewReaderSize(is, _STREAM_BUFFER_SIZE)
	this.predictor = pred
	this.memory = memory
	this.ctx = ctx
	this.buffer = make([]byte, 0, DEFAULT_CHUNK_SIZE)
	this.listeners = make([]pqs.Listener, 0)
	logger, scope := ambient(ctx)
	this.logger = logger.With(zap.String("stream", "decompress"))
	this.metrics = newStreamMetrics(scope)
	return this, nil
}

// AddListener adds an event listener to this reader.
// Returns true if the listener has been added.
func (this *Reader) AddListener(bl pqs.Listener) bool {
	var added bool
	this.listeners, added = addListener(this.listeners, bl)
	return added
}

// RemoveListener removes an event listener from this reader.
// Returns true if the listener has been removed.
func (this *Reader) RemoveListener(bl pqs.Listener) bool {
	var removed bool
	this.listeners, removed = removeListener(this.listeners, bl)
	return removed
}

func (this *Reader) readHeader() error {
	if len(this.listeners) > 0 {
		notifyListeners(this.listeners, pqs.NewEvent(pqs.EVT_DECOMPRESSION_START, -1, 0, 0, time.Now()))
	}

	hdr := make([]byte, len(STREAM_MAGIC)+1)
	n, err := io.ReadFull(this.r, hdr)
	this.read += int64(n)
	this.metrics.bytesIn.Inc(int64(n))

	if err == io.EOF || err == io.ErrUnexpectedEOF {
		this.metrics.truncated.Inc(1)
		return newIOError(pqs.ERR_TRUNCATED, err, "Missing stream header")
	}

	if err != nil {
		return newIOError(pqs.ERR_READ_FILE, err, "Cannot read stream header")
	}

	switch internal.GetMagicType(hdr) {
	case internal.PQS_MAGIC:

	case internal.MODEL_MAGIC:
		this.metrics.format.Inc(1)
		return &IOError{msg: "Invalid stream: found a predictor snapshot", code: pqs.ERR_INVALID_FILE}

	default:
		this.metrics.format.Inc(1)

		if string(hdr[0:len(STREAM_MAGIC)]) == STREAM_MAGIC {
			errMsg := fmt.Sprintf("Invalid memory selector in stream header: 0x%02X", hdr[3])
			return &IOError{msg: errMsg, code: pqs.ERR_INVALID_FILE}
		}

		return &IOError{msg: "Invalid stream type", code: pqs.ERR_INVALID_FILE}
	}

	memory := int(hdr[3] - '0')

	if this.memory >= 0 && this.memory != memory {
		this.metrics.format.Inc(1)
		errMsg := fmt.Sprintf("Memory selector mismatch: stream uses %d, decompressor uses %d", memory, this.memory)
		return &IOError{msg: errMsg, code: pqs.ERR_INVALID_FILE}
	}

	this.memory = memory

	if this.predictor == nil {
		if this.predictor, err = entropy.NewLPAQPredictor(uint(memory)); err != nil {
			return newIOError(pqs.ERR_CREATE_DECOMPRESSOR, err, "Cannot create predictor")
		}
	}

	this.ctx["memory"] = uint(memory)
	this.ctx["predictor"] = this.predictor
	this.logger.Debug("stream header read", zap.Int("memory", memory))

	if len(this.listeners) > 0 {
		notifyListeners(this.listeners, pqs.NewEvent(pqs.EVT_AFTER_HEADER_DECODING, -1, 0, this.read, time.Now()))
	}

	return nil
}

// Read reads up to len(block) bytes and copies them into block.
// Returns the number of bytes read (0 <= n <= len(block)) and any error encountered.
// io.EOF is returned when the end of stream is reached. Bytes decoded from
// a truncated or corrupted frame are returned before the error.
func (this *Reader) Read(block []byte) (int, error) {
	if this.closed == true {
		return 0, &IOError{msg: "Stream closed", code: pqs.ERR_READ_FILE}
	}

	if this.initialized == false {
		if err := this.readHeader(); err != nil {
			this.eos = true
			this.err = err
			this.initialized = true
			return 0, err
		}

		this.initialized = true
	}

	if len(block) == 0 {
		return 0, nil
	}

	// Decode frames until some data is available
	for this.off == len(this.buffer) {
		if this.eos == true {
			if this.err != nil {
				return 0, this.err
			}

			return 0, io.EOF
		}

		this.buffer = this.buffer[:0]
		this.off = 0
		this.processFrame()
	}

	n := copy(block, this.buffer[this.off:])
	this.off += n
	return n, nil
}

// stop ends the stream with err (nil for a regular end of stream)
func (this *Reader) stop(err *IOError) {
	this.eos = true

	if err == nil {
		if len(this.listeners) > 0 {
			notifyListeners(this.listeners, pqs.NewEvent(pqs.EVT_DECOMPRESSION_END, -1, this.written, this.read, time.Now()))
		}

		return
	}

	switch err.code {
	case pqs.ERR_TRUNCATED:
		this.metrics.truncated.Inc(1)

	case pqs.ERR_INVALID_FILE:
		this.metrics.format.Inc(1)
	}

	this.logger.Debug("stream stopped", zap.Int("frame", this.frameID), zap.Error(err))
	this.err = err
}

// processFrame decodes the next frame into the buffer
func (this *Reader) processFrame() {
	c, err := this.r.ReadByte()

	if err == io.EOF {
		this.stop(nil)
		return
	}

	if err != nil {
		this.stop(newIOError(pqs.ERR_READ_FILE, err, "Cannot read frame"))
		return
	}

	this.read++
	this.metrics.bytesIn.Inc(1)

	if c == _FRAME_SKIP {
		this.metrics.skipped.Inc(1)
		return
	}

	if c < _TAG_SHORT {
		this.processLiterals(c)
		return
	}

	length := int(c & _TAG_LENGTH_MASK)

	if c >= _TAG_LONG {
		d, err := this.r.ReadByte()

		if err != nil {
			if err == io.EOF {
				this.stop(newIOError(pqs.ERR_TRUNCATED, io.ErrUnexpectedEOF, "Truncated frame length"))
			} else {
				this.stop(newIOError(pqs.ERR_READ_FILE, err, "Cannot read frame length"))
			}

			return
		}

		this.read++
		this.metrics.bytesIn.Inc(1)
		length = (length << 8) | int(d)
	}

	if length == 0 {
		this.stop(&IOError{msg: fmt.Sprintf("Invalid frame %d: zero length", this.frameID), code: pqs.ERR_INVALID_FILE})
		return
	}

	cr := &countingByteReader{r: this.r}

	// Cannot fail: both parameters are not nil
	ed, _ := entropy.NewBinaryEntropyDecoder(entropy.NewEscapeReader(cr), this.predictor)

	for i := 0; i < length; i++ {
		this.buffer = append(this.buffer, ed.DecodeByte())
	}

	this.read += cr.count
	this.written += int64(length)
	this.metrics.bytesIn.Inc(cr.count)
	this.metrics.bytesOut.Inc(int64(length))
	this.metrics.coded.Inc(1)
	this.frameDone(pqs.EVT_CODED_FRAME, length, cr.count+1)

	if err := ed.Err(); err != nil {
		switch {
		case ed.Truncated():
			this.stop(newIOError(pqs.ERR_TRUNCATED, err, fmt.Sprintf("Truncated frame %d", this.frameID-1)))

		case ed.Malformed():
			this.stop(newIOError(pqs.ERR_INVALID_FILE, err, fmt.Sprintf("Invalid frame %d", this.frameID-1)))

		default:
			this.stop(newIOError(pqs.ERR_READ_FILE, err, fmt.Sprintf("Cannot read frame %d", this.frameID-1)))
		}
	}
}

// processLiterals reads the literal byte c and the following literal
// bytes available without blocking
func (this *Reader) processLiterals(c byte) {
	this.buffer = append(this.buffer, c)

	for this.r.Buffered() > 0 && len(this.buffer) < cap(this.buffer) {
		b, _ := this.r.Peek(1)

		if b[0] >= _TAG_SHORT {
			break
		}

		this.r.ReadByte()
		this.buffer = append(this.buffer, b[0])
	}

	n := len(this.buffer)
	this.read += int64(n - 1)
	this.written += int64(n)
	this.metrics.bytesIn.Inc(int64(n - 1))
	this.metrics.bytesOut.Inc(int64(n))
	this.metrics.literal.Inc(1)
	this.frameDone(pqs.EVT_LITERAL_FRAME, n, int64(n))
}

func (this *Reader) frameDone(evtType, size int, coded int64) {
	if ce := this.logger.Check(zap.DebugLevel, "frame read"); ce != nil {
		ce.Write(zap.Int("id", this.frameID), zap.Int("size", size), zap.Int64("coded", coded),
			zap.Bool("literal", evtType == pqs.EVT_LITERAL_FRAME))
	}

	if len(this.listeners) > 0 {
		notifyListeners(this.listeners, pqs.NewEvent(evtType, this.frameID, int64(size), coded, time.Now()))
	}

	this.frameID++
}

// Close makes the stream unavailable for further reads. The underlying
// reader is not closed. Idempotent.
func (this *Reader) Close() error {
	this.closed = true
	this.buffer = this.buffer[:0]
	this.off = 0
	return nil
}

// Predictor returns the predictor shared by all the frames (nil before
// the header is read)
func (this *Reader) Predictor() *entropy.LPAQPredictor {
	return this.predictor
}

// GetRead returns the number of compressed bytes read so far
func (this *Reader) GetRead() int64 {
	return this.read
}

// GetWritten returns the number of decompressed bytes produced so far
func (this *Reader) GetWritten() int64 {
	return this.written
}

type countingByteReader struct {
	r     io.ByteReader
	count int64
}

func (this *countingByteReader) ReadByte() (byte, error) {
	b, err := this.r.ReadByte()

	if err == nil {
		this.count++
	}

	return b, err
}
