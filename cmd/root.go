package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/config"
)

var (
	cfg      *config.Config
	zoneMode string
)

var rootCmd = &cobra.Command{
	Use:   "zoning-cli",
	Short: "Zoning compliance analysis for Curitiba building projects",
	Long:  "Geocodes an address, resolves its zone against the municipal zoning service, and checks project measurements against the zone's regulatory limits.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if zoneMode != "" {
			cfg.Zoning.Mode = zoneMode
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&zoneMode, "zone-mode", "", `zone service fetch mode: "browser" or "http" (default from config)`)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
