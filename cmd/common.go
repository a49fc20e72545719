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

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/fastjsonl/columnar"
	"github.com/cardinalhq/fastjsonl/config"
	"github.com/cardinalhq/fastjsonl/engine"
	"github.com/cardinalhq/fastjsonl/internal/debugging"
	"github.com/cardinalhq/fastjsonl/internal/logctx"
	"github.com/cardinalhq/fastjsonl/lineindex"
	"github.com/cardinalhq/fastjsonl/schema"
)

// tableFile is the layout of a --table-file document:
//
//	columns:
//	  - name: id
//	    type: int64
type tableFile struct {
	Columns []columnar.ColumnSpec `yaml:"columns"`
}

func parseTableFile(data []byte) (*arrow.Schema, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse table file: %w", err)
	}
	return columnar.NewTableSchema(tf.Columns)
}

// tableFlags are shared by every command that builds a batch.
type tableFlags struct {
	table     string
	tableFile string
}

func (tf *tableFlags) register(c *cobra.Command) {
	c.Flags().StringVarP(&tf.table, "table", "t", "", `Target columns as "name:type,..."`)
	c.Flags().StringVar(&tf.tableFile, "table-file", "", "YAML file listing the target columns")
	c.MarkFlagsMutuallyExclusive("table", "table-file")
	c.MarkFlagsOneRequired("table", "table-file")
}

func (tf *tableFlags) load() (*arrow.Schema, error) {
	if tf.tableFile != "" {
		data, err := os.ReadFile(tf.tableFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read table file: %w", err)
		}
		return parseTableFile(data)
	}
	return columnar.ParseTableSchema(tf.table)
}

func readSchema(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}
	return string(data), nil
}

func markRequired(c *cobra.Command, names ...string) {
	for _, name := range names {
		if err := c.MarkFlagRequired(name); err != nil {
			panic(fmt.Errorf("failed to mark %s flag as required: %w", name, err))
		}
	}
}

// newEngine builds an engine from cfg. The returned func releases the
// schema cache, if one was created.
func newEngine(cfg *config.Config) (*engine.Engine, func()) {
	opts := cfg.EngineOptions()
	if cfg.Engine.SchemaCacheTTL <= 0 {
		return engine.New(opts), func() {}
	}
	cache := schema.NewCache(cfg.Engine.SchemaCacheTTL, 0)
	opts.SchemaCache = cache
	return engine.New(opts), cache.Close
}

// commandContext returns a context cancelled on SIGINT or SIGTERM that
// carries the default logger tagged with the command name. It also starts
// the pprof server when one was asked for.
func commandContext(c *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := handleSignals(c.Context())
	ctx = logctx.With(ctx, "command", c.Name())
	if _, err := debugging.StartPprof(ctx, pprofPort); err != nil {
		logctx.FromContext(ctx).Warn("Failed to start pprof server", "error", err)
	}
	return ctx, cancel
}

func currentConfig() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}

// recordCount is the number of spans in buf without building them.
func recordCount(buf []byte) int {
	n := lineindex.Count(buf)
	if len(buf) > 0 && buf[len(buf)-1] != '\n' {
		n++
	}
	return n
}
