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
	"github.com/cardinalhq/fastjsonl/internal/logctx"
)

func init() {
	var input, schemaPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every record of a JSONL file against a JSON Schema",
		Long: `Check every record of a JSONL file against a JSON Schema.
Stops at the first record that is not valid JSON or does not match the schema,
reporting its line number and the path inside the record.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(c)
			defer cancel()
			return runValidate(ctx, c.OutOrStdout(), currentConfig(), input, schemaPath)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSONL file to read (.gz and .zst are decompressed, - for stdin)")
	cmd.Flags().StringVarP(&schemaPath, "schema", "s", "", "JSON Schema file")
	markRequired(cmd, "input", "schema")
	rootCmd.AddCommand(cmd)
}

func runValidate(ctx context.Context, out io.Writer, cfg *config.Config, input, schemaPath string) error {
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

	if err := eng.Validate(ctx, buf, schemaText); err != nil {
		logctx.FromContext(ctx).Error("Validation failed", "input", input, "error", err)
		return err
	}

	records := recordCount(buf)
	logctx.FromContext(ctx).Info("Validation succeeded", "input", input, "records", records)
	_, err = fmt.Fprintf(out, "%s: %d records valid\n", input, records)
	return err
}
