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
	"github.com/cardinalhq/fastjsonl/internal/output"
)

type convertOptions struct {
	input       string
	schemaPath  string
	outPath     string
	format      string
	compression string
	tables      tableFlags
}

func init() {
	var opts convertOptions
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Validate a JSONL file and write it as Parquet, Arrow IPC or CSV",
		Long: `Validate a JSONL file and write it as Parquet, Arrow IPC or CSV.
Conversion is all or nothing: if any record fails, no output file is written.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(c)
			defer cancel()
			return runConvert(ctx, c.OutOrStdout(), currentConfig(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "JSONL file to read (.gz and .zst are decompressed, - for stdin)")
	cmd.Flags().StringVarP(&opts.schemaPath, "schema", "s", "", "JSON Schema file")
	cmd.Flags().StringVarP(&opts.outPath, "output", "o", "", "Output file")
	cmd.Flags().StringVar(&opts.format, "format", "", "Output format: parquet, arrow or csv (default from the output extension)")
	cmd.Flags().StringVar(&opts.compression, "compression", "", "Output compression, overriding output.compression")
	opts.tables.register(cmd)
	markRequired(cmd, "input", "schema", "output")
	rootCmd.AddCommand(cmd)
}

func runConvert(ctx context.Context, out io.Writer, cfg *config.Config, opts convertOptions) error {
	format := output.FormatForPath(opts.outPath)
	if opts.format != "" {
		f, err := output.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		format = f
	}
	writeOpts := cfg.OutputOptions(format)
	if opts.compression != "" {
		writeOpts.Compression = opts.compression
	}
	if format == output.FormatCSV {
		writeOpts.Compression = ""
	}

	table, err := opts.tables.load()
	if err != nil {
		return err
	}
	schemaText, err := readSchema(opts.schemaPath)
	if err != nil {
		return err
	}
	buf, err := inputfile.Load(ctx, opts.input)
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

	if err := output.WriteFile(ctx, opts.outPath, batch, writeOpts); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s: wrote %d rows, %d columns as %s\n", opts.outPath, batch.NumRows(), batch.NumCols(), format)
	return err
}
