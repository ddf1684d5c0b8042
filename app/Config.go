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

	kio "github.com/flanglet/pqs-go/io"
	"github.com/pkg/errors"
	validator "gopkg.in/validator.v2"
	yaml "gopkg.in/yaml.v2"
)

const (
	_CFG_STDIN          = "STDIN"
	_CFG_STDOUT         = "STDOUT"
	_CFG_NONE           = "NONE"
	_CFG_DEFAULT_MEMORY = 3
	_CFG_AUTO_MEMORY    = -1
)

// Configuration holds the options of a compression or decompression job.
// It can be loaded from a YAML file; command line flags take precedence.
type Configuration struct {
	Input     string `yaml:"input" validate:"nonzero"`
	Output    string `yaml:"output" validate:"nonzero"`
	Memory    int    `yaml:"memory" validate:"min=-1,max=9"` // -1: default (compression) or stream header (decompression)
	ChunkSize uint   `yaml:"chunkSize" validate:"min=1,max=16127"`
	Preload   string `yaml:"preload"`
	Load      string `yaml:"load"`
	Save      string `yaml:"save"`
	Overwrite bool   `yaml:"overwrite"`
	Verbosity uint   `yaml:"verbosity" validate:"max=5"`
	Metrics   bool   `yaml:"metrics"`
}

// NewConfiguration returns a configuration with the default values
func NewConfiguration() Configuration {
	return Configuration{
		Input:     _CFG_STDIN,
		Output:    _CFG_STDOUT,
		Memory:    _CFG_AUTO_MEMORY,
		ChunkSize: kio.DEFAULT_CHUNK_SIZE,
		Verbosity: 1,
	}
}

// LoadFile loads a configuration from a YAML file on top of the values
// already present in cfg and validates the result.
func LoadFile(cfg *Configuration, fname string) error {
	data, err := os.ReadFile(fname)

	if err != nil {
		return errors.Wrapf(err, "cannot read configuration file '%s'", fname)
	}

	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return errors.Wrapf(err, "invalid configuration file '%s'", fname)
	}

	return cfg.Validate()
}

// Validate checks the ranges of the configuration values
func (this *Configuration) Validate() error {
	if err := validator.Validate(this); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	return nil
}
