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

package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/cardinalhq/fastjsonl/columnar"
)

func writeIPC(w io.Writer, batch *columnar.Batch, opts Options) error {
	ipcOpts := []ipc.Option{ipc.WithSchema(batch.Schema())}
	switch strings.ToLower(opts.Compression) {
	case "", "none", "uncompressed":
	case "zstd":
		ipcOpts = append(ipcOpts, ipc.WithZstd())
	case "lz4":
		ipcOpts = append(ipcOpts, ipc.WithLZ4())
	default:
		return fmt.Errorf("arrow ipc does not support compression %q", opts.Compression)
	}

	fw, err := ipc.NewFileWriter(w, ipcOpts...)
	if err != nil {
		return fmt.Errorf("failed to create arrow file writer: %w", err)
	}
	if err := fw.Write(batch.Record()); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	return fw.Close()
}

func writeCSV(w io.Writer, batch *columnar.Batch) error {
	cw := csv.NewWriter(w, batch.Schema(),
		csv.WithHeader(true),
		csv.WithNullWriter(""),
	)
	if err := cw.Write(batch.Record()); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return err
	}
	return cw.Error()
}
