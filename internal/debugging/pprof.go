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

// Package debugging exposes net/http/pprof while a long command runs.
package debugging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"strconv"
)

// PortFromEnv reads FASTJSONL_PPROF_PORT. Unset, empty, or unparsable
// values turn profiling off.
func PortFromEnv() int {
	v := os.Getenv("FASTJSONL_PPROF_PORT")
	if v == "" {
		return 0
	}
	port, err := strconv.Atoi(v)
	if err != nil || port < 0 {
		slog.Warn("Invalid FASTJSONL_PPROF_PORT value, profiling disabled", slog.String("value", v))
		return 0
	}
	return port
}

// StartPprof serves the default mux on localhost:port until ctx is done and
// returns the bound address. Port 0 is a no-op.
func StartPprof(ctx context.Context, port int) (string, error) {
	if port <= 0 {
		return "", nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return "", fmt.Errorf("failed to listen for pprof: %w", err)
	}
	server := &http.Server{Handler: http.DefaultServeMux}
	addr := ln.Addr().String()

	go func() {
		slog.Info("Starting pprof server", slog.String("address", addr))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Pprof server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down pprof server", slog.Any("error", err))
		}
	}()
	return addr, nil
}
