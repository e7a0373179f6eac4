// Copyright 2025 The udplex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"io"
	"strings"

	"github.com/udplex/udplex/pkg/private/serrors"
	"github.com/udplex/udplex/private/config"
)

const (
	// DefaultConsoleLevel is the default log level for the console.
	DefaultConsoleLevel = "info"
	// DefaultStacktraceLevel is the default level at which stack traces are
	// attached to log entries.
	DefaultStacktraceLevel = "none"
)

var _ config.Config = (*Config)(nil)

// Config is the configuration for the logger.
type Config struct {
	// Console is the configuration for the console logging.
	Console ConsoleConfig `toml:"console,omitempty"`
}

// InitDefaults populates unset fields in cfg to their default values.
func (cfg *Config) InitDefaults() {
	cfg.Console.InitDefaults()
}

// Validate validates the config.
func (cfg *Config) Validate() error {
	return cfg.Console.Validate()
}

// Sample writes the sample configuration to dst.
func (cfg *Config) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteSample(dst, path, ctx, &cfg.Console)
}

// ConfigName returns the name this config should have in a TOML file.
func (cfg *Config) ConfigName() string {
	return "log"
}

// ConsoleConfig is the config for the console logger.
type ConsoleConfig struct {
	// Level of console logging (defaults to info).
	Level string `toml:"level,omitempty"`
	// Format of the console log entries, human or json (defaults to human).
	Format string `toml:"format,omitempty"`
	// StacktraceLevel sets from which level stack traces are included in
	// log entries, none to disable (defaults to none).
	StacktraceLevel string `toml:"stacktrace_level,omitempty"`
}

// InitDefaults populates unset fields in cfg to their default values.
func (cfg *ConsoleConfig) InitDefaults() {
	if cfg.Level == "" {
		cfg.Level = DefaultConsoleLevel
	}
	if cfg.Format == "" {
		cfg.Format = "human"
	}
	if cfg.StacktraceLevel == "" {
		cfg.StacktraceLevel = DefaultStacktraceLevel
	}
}

// Validate validates the config.
func (cfg *ConsoleConfig) Validate() error {
	if _, err := parseLevel(cfg.Level); err != nil {
		return err
	}
	switch strings.ToLower(cfg.Format) {
	case "", "human", "json":
	default:
		return serrors.New("unsupported log format", "format", cfg.Format)
	}
	if s := strings.ToLower(cfg.StacktraceLevel); s != "" && s != "none" {
		if _, err := parseLevel(s); err != nil {
			return err
		}
	}
	return nil
}

// Sample writes the sample configuration to dst.
func (cfg *ConsoleConfig) Sample(dst io.Writer, _ config.Path, _ config.CtxMap) {
	config.WriteString(dst, consoleSample)
}

// ConfigName returns the name this config should have in a TOML file.
func (cfg *ConsoleConfig) ConfigName() string {
	return "console"
}

const consoleSample = `# Console logging level (debug|info|error). (default info)
level = "info"

# Encoding of the console log entries (human|json). (default human)
format = "human"

# Level starting at which stack traces are attached to log entries
# (none|debug|info|error). (default none)
stacktrace_level = "none"
`
