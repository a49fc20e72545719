// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/cardinalhq/fastjsonl/engine"
	"github.com/cardinalhq/fastjsonl/internal/output"
	"github.com/cardinalhq/fastjsonl/jsonvalue"
	"github.com/cardinalhq/fastjsonl/schema"
)

// Config aggregates configuration for the application.
type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	Output OutputConfig `mapstructure:"output"`
}

// EngineConfig tunes the validate and convert pipeline.
type EngineConfig struct {
	// Parallelism is the maximum number of partitions processed at once.
	// Zero means GOMAXPROCS.
	Parallelism       int `mapstructure:"parallelism"`
	MinPartitionBytes int `mapstructure:"min_partition_bytes"`
	MaxDepth          int `mapstructure:"max_depth"`
	// AdditionalProperties is "permit" or "forbid".
	AdditionalProperties string `mapstructure:"additional_properties"`
	// SchemaCacheTTL enables the compiled schema cache when positive.
	SchemaCacheTTL time.Duration `mapstructure:"schema_cache_ttl"`
}

// OutputConfig controls converted file output.
type OutputConfig struct {
	Compression string `mapstructure:"compression"`
	ChunkSize   int64  `mapstructure:"chunk_size"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MinPartitionBytes:    engine.DefaultMinPartitionBytes,
			MaxDepth:             jsonvalue.DefaultMaxDepth,
			AdditionalProperties: schema.PermitAdditional.String(),
		},
		Output: OutputConfig{
			Compression: "zstd",
			ChunkSize:   output.DefaultChunkSize,
		},
	}
}

// LoadFile reads configuration from path and from environment variables.
// An empty path searches the working directory for config.yaml and
// tolerates its absence. Environment variables use the prefix "FASTJSONL"
// and the dot character in keys is replaced by an underscore. For example,
// "engine.parallelism" becomes "FASTJSONL_ENGINE_PARALLELISM".
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("FASTJSONL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil && path != "" {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.Engine.Parallelism < 0 {
		errs = multierror.Append(errs, fmt.Errorf("engine.parallelism must not be negative, got %d", c.Engine.Parallelism))
	}
	if c.Engine.MinPartitionBytes < 0 {
		errs = multierror.Append(errs, fmt.Errorf("engine.min_partition_bytes must not be negative, got %d", c.Engine.MinPartitionBytes))
	}
	if c.Engine.MaxDepth < 0 {
		errs = multierror.Append(errs, fmt.Errorf("engine.max_depth must not be negative, got %d", c.Engine.MaxDepth))
	}
	if _, err := schema.ParseAdditionalProperties(c.Engine.AdditionalProperties); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("engine.additional_properties: %w", err))
	}
	if c.Engine.SchemaCacheTTL < 0 {
		errs = multierror.Append(errs, fmt.Errorf("engine.schema_cache_ttl must not be negative, got %s", c.Engine.SchemaCacheTTL))
	}
	if err := output.ValidateCompression(c.Output.Compression); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("output.compression: %w", err))
	}
	if c.Output.ChunkSize < 0 {
		errs = multierror.Append(errs, fmt.Errorf("output.chunk_size must not be negative, got %d", c.Output.ChunkSize))
	}
	return errs.ErrorOrNil()
}

// EngineOptions maps the engine settings onto engine.Options. The schema
// cache and allocator are left for the caller. Call Validate first.
func (c *Config) EngineOptions() engine.Options {
	ap, _ := schema.ParseAdditionalProperties(c.Engine.AdditionalProperties)
	return engine.Options{
		Parallelism:          c.Engine.Parallelism,
		MinPartitionBytes:    c.Engine.MinPartitionBytes,
		MaxDepth:             c.Engine.MaxDepth,
		AdditionalProperties: ap,
	}
}

// OutputOptions returns writer options for format.
func (c *Config) OutputOptions(format output.Format) output.Options {
	return output.Options{
		Format:      format,
		Compression: c.Output.Compression,
		ChunkSize:   c.Output.ChunkSize,
	}
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
