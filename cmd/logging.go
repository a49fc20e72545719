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
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	slogmulti "github.com/samber/slog-multi"
)

// invocationID tags every log line of one run.
var invocationID = uuid.NewString()

// setupLogging installs the default logger: text on stderr, and JSON to
// jsonPath as well when it is set. The returned func closes the JSON file.
func setupLogging(debug bool, jsonPath string) (func() error, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
	}

	closer := func() error { return nil }
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if jsonPath != "" {
		f, err := os.OpenFile(jsonPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open json log file: %w", err)
		}
		handler = slogmulti.Fanout(handler, slog.NewJSONHandler(f, opts))
		closer = f.Close
	}

	slog.SetDefault(newLogger(handler))
	return closer, nil
}

func newLogger(h slog.Handler) *slog.Logger {
	return slog.New(h).With(slog.String("invocation", invocationID))
}
