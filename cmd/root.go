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
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/fastjsonl/config"
	"github.com/cardinalhq/fastjsonl/internal/debugging"
)

var (
	configFile string
	debugLog   bool
	logJSON    string
	pprofPort  int

	cfg          *config.Config
	closeLogging = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fastjsonl",
	Short: "Validate JSONL against a JSON Schema and convert it to Arrow",
	Long: `fastjsonl checks newline-delimited JSON records against a JSON Schema and
converts them into Arrow record batches, written out as Parquet, Arrow IPC or CSV.
The first failing record is reported with its line number and location.`,
	SilenceUsage: true,
	PersistentPreRunE: func(c *cobra.Command, _ []string) error {
		closer, err := setupLogging(debugLog || os.Getenv("FASTJSONL_DEBUG") != "", logJSON)
		if err != nil {
			return err
		}
		closeLogging = closer

		loaded, err := config.LoadFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default is ./config.yaml when present)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logJSON, "log-json", "", "Also write JSON logs to this file")
	rootCmd.PersistentFlags().IntVar(&pprofPort, "pprof-port", debugging.PortFromEnv(), "Serve pprof on localhost at this port while the command runs (0 disables)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		_ = closeLogging()
		os.Exit(1)
	}
}
