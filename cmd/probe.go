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
	"io"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/fastjsonl/config"
	"github.com/cardinalhq/fastjsonl/internal/inputfile"
)

func init() {
	var (
		input, schemaPath string
		tables            tableFlags
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check a schema and table pairing against at most one record",
		Long: `Check a schema and table pairing against at most one record.
Without --input the empty buffer is used, which still compiles the schema
and checks that every target column type is supported.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(c)
			defer cancel()
			return runProbe(ctx, c.OutOrStdout(), currentConfig(), input, schemaPath, &tables)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "File holding at most one JSONL record")
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "JSON Schema file")
	tables.register(cmd)
	markRequired(cmd, "schema")
	rootCmd.AddCommand(cmd)
}

func runProbe(ctx context.Context, out io.Writer, cfg *config.Config, input, schemaPath string, tables *tableFlags) error {
	table, err := tables.load()
	if err != nil {
		return err
	}
	schemaText, err := readSchema(schemaPath)
	if err != nil {
		return err
	}
	var buf []byte
	if input != "" {
		if buf, err = inputfile.Load(ctx, input); err != nil {
			return err
		}
	}

	eng, done := newEngine(cfg)
	defer done()

	batch, err := eng.Probe(ctx, buf, schemaText, table)
	if err != nil {
		return err
	}
	defer batch.Release()

	if _, err := fmt.Fprintf(out, "rows: %d\n%s\n", batch.NumRows(), batch.Schema()); err != nil {
		return err
	}
	return nil
}
