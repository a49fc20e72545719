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
	"io"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/fastjsonl/config"
	"github.com/cardinalhq/fastjsonl/internal/colstats"
	"github.com/cardinalhq/fastjsonl/internal/inputfile"
)

func init() {
	var (
		input, schemaPath string
		tables            tableFlags
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Convert a JSONL file and print per-column statistics",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(c)
			defer cancel()
			return runStats(ctx, c.OutOrStdout(), currentConfig(), input, schemaPath, &tables)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSONL file to read (.gz and .zst are decompressed, - for stdin)")
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "JSON Schema file")
	tables.register(cmd)
	markRequired(cmd, "input", "schema")
	rootCmd.AddCommand(cmd)
}

func runStats(ctx context.Context, out io.Writer, cfg *config.Config, input, schemaPath string, tables *tableFlags) error {
	table, err := tables.load()
	if err != nil {
		return err
	}
	schemaText, err := readSchema(schemaPath)
	if err != nil {
		return err
	}
	buf, err := inputfile.Load(ctx, input)
	if err != nil {
		return err
	}

	eng, done := newEngine(cfg)
	defer done()

	batch, err := eng.Convert(ctx, buf, schemaText, table)
	if err != nil {
		return err
	}
	defer batch.Release()

	stats, err := colstats.Compute(batch)
	if err != nil {
		return err
	}
	return colstats.Print(out, stats)
}
