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
	"os"
	"path/filepath"
	"testing"

	kio "github.com/flanglet/pqs-go/io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	fileName := filepath.Join(t.TempDir(), "pqs.yaml")
	require.NoError(t, os.WriteFile(fileName, []byte(content), 0644))
	return fileName
}

func TestLoadFile(t *testing.T) {
	cfg := NewConfiguration()
	fileName := writeConfig(t, `
memory: 2
chunkSize: 100
verbosity: 0
save: model.snap
`)
	require.NoError(t, LoadFile(&cfg, fileName))
	assert.Equal(t, 2, cfg.Memory)
	assert.Equal(t, uint(100), cfg.ChunkSize)
	assert.Equal(t, uint(0), cfg.Verbosity)
	assert.Equal(t, "model.snap", cfg.Save)

	// Defaults are kept
	assert.Equal(t, _CFG_STDIN, cfg.Input)
	assert.Equal(t, _CFG_STDOUT, cfg.Output)
}

func TestLoadFileErrors(t *testing.T) {
	inputs := map[string]string{
		"memory":     "memory: 12\n",
		"chunk_zero": "chunkSize: 0\n",
		"chunk_max":  "chunkSize: 16128\n",
		"verbosity":  "verbosity: 6\n",
		"unknown":    "level: 3\n",
		"input":      "input: \"\"\n",
		"syntax":     "memory: [\n",
	}

	for name, content := range inputs {
		t.Run(name, func(t *testing.T) {
			cfg := NewConfiguration()
			assert.Error(t, LoadFile(&cfg, writeConfig(t, content)))
		})
	}

	cfg := NewConfiguration()
	assert.Error(t, LoadFile(&cfg, filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestResolveConfiguration(t *testing.T) {
	fileName := writeConfig(t, "memory: 2\nchunkSize: 100\ninput: in.txt\n")
	flags := NewConfiguration()
	flags.Memory = 5
	flags.ChunkSize = 200
	flags.Output = "out.pqs"
	changed := map[string]bool{"memory": true, "output": true}

	cfg, err := resolveConfiguration(func(name string) bool { return changed[name] }, flags, fileName)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Memory)
	assert.Equal(t, uint(100), cfg.ChunkSize)
	assert.Equal(t, "in.txt", cfg.Input)
	assert.Equal(t, "out.pqs", cfg.Output)

	cfg, err = resolveConfiguration(func(string) bool { return false }, flags, "")
	require.NoError(t, err)
	assert.Equal(t, NewConfiguration(), cfg)

	flags.ChunkSize = kio.MAX_CHUNK_SIZE + 1
	_, err = resolveConfiguration(func(name string) bool { return name == "chunk" }, flags, "")
	assert.Error(t, err)
}
