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

	"github.com/cardinalhq/fastjsonl/engine"
	"github.com/cardinalhq/fastjsonl/internal/inputfile"
)

func init() {
	var input string
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of line terminators in a JSONL file",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(c)
			defer cancel()
			return runCount(ctx, c.OutOrStdout(), input)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSONL file to read (.gz and .zst are decompressed, - for stdin)")
	markRequired(cmd, "input")
	rootCmd.AddCommand(cmd)
}

func runCount(ctx context.Context, out io.Writer, input string) error {
	buf, err := inputfile.Load(ctx, input)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, engine.CountLineTerminators(buf))
	return err
}
