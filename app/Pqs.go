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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pqs "github.com/flanglet/pqs-go"
	"github.com/flanglet/pqs-go/entropy"
	kio "github.com/flanglet/pqs-go/io"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

const (
	APP_HEADER = "pqs 1.0 (C) 2024, Frederic Langlet"
	APP_USAGE  = `Streaming context mixing compressor (lpaq1 model).
Each read of the input produces a compressed chunk, so that
"pqs compress | pqs decompress" prints its input immediately.`
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the command line and returns the exit code
func run(args []string) int {
	status := 0
	configFile := ""
	flags := NewConfiguration()

	root := &cobra.Command{
		Use:           "pqs",
		Short:         APP_HEADER,
		Long:          APP_HEADER + "\n\n" + APP_USAGE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML configuration file (command line flags take precedence)")
	pf.StringVarP(&flags.Input, "input", "i", _CFG_STDIN, "input file name or STDIN")
	pf.StringVarP(&flags.Output, "output", "o", _CFG_STDOUT, "output file name, STDOUT or NONE")
	pf.IntVarP(&flags.Memory, "memory", "m", _CFG_AUTO_MEMORY,
		"memory selector in [0..9], the model uses 2^(20+m) bytes (default 3 to compress, stream header to decompress)")
	pf.StringVar(&flags.Preload, "preload", "", "train the model by decompressing this pqs file first")
	pf.StringVar(&flags.Load, "load", "", "restore the model from this snapshot file before working")
	pf.StringVar(&flags.Save, "save", "", "save the model to this snapshot file after working")
	pf.BoolVarP(&flags.Overwrite, "force", "f", false, "overwrite the output file if it already exists")
	pf.UintVarP(&flags.Verbosity, "verbose", "v", 1, "verbosity in [0..5]: 0=errors, 2=stream, 4=frames, 5=events")
	pf.BoolVar(&flags.Metrics, "metrics", false, "log the stream counters at the end")

	compressCmd := &cobra.Command{
		Use:     "compress",
		Aliases: []string{"c"},
		Short:   "compress the input",
		Example: `  pqs compress -m 3 < file > file.pqs
  pqs compress -i file -o file.pqs --save model.snap`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfiguration(cmd.Flags().Changed, flags, configFile)

			if err != nil {
				status = pqs.ERR_INVALID_PARAM
				return err
			}

			status = runJob(cfg, ENCODING)
			return nil
		},
	}

	compressCmd.Flags().UintVarP(&flags.ChunkSize, "chunk", "c", kio.DEFAULT_CHUNK_SIZE,
		fmt.Sprintf("maximum number of bytes per frame in [1..%d]", kio.MAX_CHUNK_SIZE))

	decompressCmd := &cobra.Command{
		Use:     "decompress",
		Aliases: []string{"d"},
		Short:   "decompress the input",
		Example: `  pqs decompress < file.pqs > file
  pqs decompress -i file.pqs -o NONE --load model.snap`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfiguration(cmd.Flags().Changed, flags, configFile)

			if err != nil {
				status = pqs.ERR_INVALID_PARAM
				return err
			}

			status = runJob(cfg, DECODING)
			return nil
		},
	}

	root.AddCommand(compressCmd, decompressCmd)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)

		if status == 0 {
			status = pqs.ERR_INVALID_PARAM
		}
	}

	return status
}

// resolveConfiguration merges the configuration file (if any) and the
// command line flags that were explicitly set.
func resolveConfiguration(changed func(string) bool, flags Configuration, configFile string) (Configuration, error) {
	cfg := NewConfiguration()

	if configFile != "" {
		if err := LoadFile(&cfg, configFile); err != nil {
			return cfg, err
		}
	}

	if changed("input") {
		cfg.Input = flags.Input
	}

	if changed("output") {
		cfg.Output = flags.Output
	}

	if changed("memory") {
		cfg.Memory = flags.Memory
	}

	if changed("chunk") {
		cfg.ChunkSize = flags.ChunkSize
	}

	if changed("preload") {
		cfg.Preload = flags.Preload
	}

	if changed("load") {
		cfg.Load = flags.Load
	}

	if changed("save") {
		cfg.Save = flags.Save
	}

	if changed("force") {
		cfg.Overwrite = flags.Overwrite
	}

	if changed("verbose") {
		cfg.Verbosity = flags.Verbosity
	}

	if changed("metrics") {
		cfg.Metrics = flags.Metrics
	}

	return cfg, cfg.Validate()
}

func runJob(cfg Configuration, type_ uint) int {
	logger, err := newLogger(cfg.Verbosity)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot create logger: %v\n", err)
		return pqs.ERR_UNKNOWN
	}

	defer logger.Sync()
	scope, closer := tally.NewRootScope(tally.ScopeOptions{Prefix: "pqs"}, 0)

	defer closer.Close()

	var listener pqs.Listener

	if cfg.Verbosity >= 2 {
		listener, _ = NewInfoPrinter(cfg.Verbosity, type_, logger)
	}

	code := 0

	if type_ == ENCODING {
		bc, err := NewBlockCompressor(cfg, logger, scope)

		if err != nil {
			return reportError(logger, err)
		}

		bc.AddListener(listener)
		code, _ = bc.Compress()
	} else {
		bd, err := NewBlockDecompressor(cfg, logger, scope)

		if err != nil {
			return reportError(logger, err)
		}

		bd.AddListener(listener)
		code, _ = bd.Decompress()
	}

	if cfg.Metrics == true {
		logCounters(logger, scope)
	}

	return code
}

// newLogger creates a console logger on stderr (stdout may carry the data)
func newLogger(verbosity uint) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true

	switch {
	case verbosity == 0:
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)

	case verbosity < 4:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)

	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return cfg.Build()
}

type snapshotter interface {
	Snapshot() tally.Snapshot
}

func logCounters(logger *zap.Logger, scope tally.Scope) {
	s, ok := scope.(snapshotter)

	if !ok {
		return
	}

	counters := s.Snapshot().Counters()
	names := make([]string, 0, len(counters))

	for name := range counters {
		names = append(names, name)
	}

	sort.Strings(names)
	fields := make([]zap.Field, 0, len(names))

	for _, name := range names {
		fields = append(fields, zap.Int64(counters[name].Name(), counters[name].Value()))
	}

	logger.Info("stream counters", fields...)
}

func newAppError(code int, cause error, msg string) *kio.IOError {
	if cause != nil {
		msg = errors.Wrap(cause, msg).Error()
	}

	return kio.NewIOError(msg, code)
}

// reportError logs the error and returns the matching exit code
func reportError(logger *zap.Logger, err error) int {
	var ioErr *kio.IOError

	if errors.As(err, &ioErr) {
		logger.Error(ioErr.Message(), zap.Int("code", ioErr.ErrorCode()))
		return ioErr.ErrorCode()
	}

	logger.Error("An unexpected condition happened", zap.Error(err))
	return pqs.ERR_UNKNOWN
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

func openInput(inputName string) (io.ReadCloser, error) {
	if strings.ToUpper(inputName) == _CFG_STDIN {
		return io.NopCloser(os.Stdin), nil
	}

	fi, err := os.Stat(inputName)

	if err != nil {
		return nil, newAppError(pqs.ERR_OPEN_FILE, err, fmt.Sprintf("Cannot access input file '%v'", inputName))
	}

	if fi.IsDir() {
		return nil, newAppError(pqs.ERR_OPEN_FILE, nil, fmt.Sprintf("Input must be a file, got directory '%v'", inputName))
	}

	input, err := os.Open(inputName)

	if err != nil {
		return nil, newAppError(pqs.ERR_OPEN_FILE, err, fmt.Sprintf("Cannot open input file '%v'", inputName))
	}

	return input, nil
}

func createOutput(outputName, inputName string, overwrite bool) (io.WriteCloser, error) {
	switch strings.ToUpper(outputName) {
	case _CFG_NONE:
		return nopWriteCloser{io.Discard}, nil

	case _CFG_STDOUT:
		return nopWriteCloser{os.Stdout}, nil
	}

	if fi, err := os.Stat(outputName); err == nil {
		// File exists
		if fi.IsDir() {
			return nil, newAppError(pqs.ERR_CREATE_FILE, nil, fmt.Sprintf("Output must be a file, got directory '%v'", outputName))
		}

		if overwrite == false {
			return nil, newAppError(pqs.ERR_CREATE_FILE, nil,
				fmt.Sprintf("File '%v' exists and the 'force' command line option has not been provided", outputName))
		}

		path1, _ := filepath.Abs(inputName)
		path2, _ := filepath.Abs(outputName)

		if path1 == path2 {
			return nil, newAppError(pqs.ERR_CREATE_FILE, nil, "The input and output files must be different")
		}
	}

	output, err := os.Create(outputName)

	if err != nil && overwrite == true {
		// Attempt to create the full folder hierarchy to file
		if err = os.MkdirAll(filepath.Dir(outputName), os.ModePerm); err == nil {
			output, err = os.Create(outputName)
		}
	}

	if err != nil {
		return nil, newAppError(pqs.ERR_CREATE_FILE, err, fmt.Sprintf("Cannot open output file '%v' for writing", outputName))
	}

	return output, nil
}

// createPredictor builds the model: restored from a snapshot (--load),
// then trained on a compressed file (--preload), else a fresh one.
func createPredictor(cfg Configuration, logger *zap.Logger, scope tally.Scope) (*entropy.LPAQPredictor, error) {
	var pred *entropy.LPAQPredictor

	if cfg.Load != "" {
		var err error

		if pred, err = loadModel(cfg.Load); err != nil {
			return nil, err
		}

		if cfg.Memory != _CFG_AUTO_MEMORY && uint(cfg.Memory) != pred.MemorySelector() {
			errMsg := fmt.Sprintf("The memory selector (%d) does not match the memory of the model '%v' (%d)",
				cfg.Memory, cfg.Load, pred.MemorySelector())
			return nil, newAppError(pqs.ERR_INVALID_PARAM, nil, errMsg)
		}

		logger.Info("model loaded", zap.String("file", cfg.Load), zap.Uint("memory", pred.MemorySelector()))
	}

	if cfg.Preload != "" {
		f, err := os.Open(cfg.Preload)

		if err != nil {
			return nil, newAppError(pqs.ERR_OPEN_FILE, err, fmt.Sprintf("Cannot open preload file '%v'", cfg.Preload))
		}

		defer f.Close()
		ctx := make(map[string]any)
		ctx["logger"] = logger
		ctx["scope"] = scope

		if pred == nil && cfg.Memory != _CFG_AUTO_MEMORY {
			ctx["memory"] = uint(cfg.Memory)
		}

		if pred, err = kio.Preload(pred, f, ctx); err != nil {
			return nil, err
		}

		logger.Info("model preloaded", zap.String("file", cfg.Preload), zap.Uint("memory", pred.MemorySelector()))
	}

	if pred != nil {
		return pred, nil
	}

	memory := cfg.Memory

	if memory == _CFG_AUTO_MEMORY {
		memory = _CFG_DEFAULT_MEMORY
	}

	pred, err := entropy.NewLPAQPredictor(uint(memory))

	if err != nil {
		return nil, newAppError(pqs.ERR_CREATE_COMPRESSOR, err, "Cannot create predictor")
	}

	return pred, nil
}

func loadModel(fileName string) (*entropy.LPAQPredictor, error) {
	f, err := os.Open(fileName)

	if err != nil {
		return nil, newAppError(pqs.ERR_OPEN_FILE, err, fmt.Sprintf("Cannot open model file '%v'", fileName))
	}

	defer f.Close()
	pred, err := entropy.LoadPredictor(bufio.NewReader(f))

	if err != nil {
		return nil, newAppError(pqs.ERR_INVALID_FILE, err, fmt.Sprintf("Cannot load model file '%v'", fileName))
	}

	return pred, nil
}

func saveModel(model pqs.Model, fileName string) error {
	f, err := os.Create(fileName)

	if err != nil {
		return newAppError(pqs.ERR_CREATE_FILE, err, fmt.Sprintf("Cannot create model file '%v'", fileName))
	}

	bw := bufio.NewWriter(f)

	if err = model.Save(bw); err == nil {
		err = bw.Flush()
	}

	if err2 := f.Close(); err == nil {
		err = err2
	}

	if err != nil {
		return newAppError(pqs.ERR_WRITE_FILE, err, fmt.Sprintf("Cannot save model file '%v'", fileName))
	}

	return nil
}
