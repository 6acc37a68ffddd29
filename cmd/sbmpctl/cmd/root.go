// Package cmd implements the sbmpctl command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignacioSepam/sbmp/cmd/sbmpctl/internal/config"
)

var (
	cfgFile    string
	deviceFlag string
	cksumFlag  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sbmpctl",
	Short: "sbmpctl — drive and observe an SBMP endpoint over a serial link",
	Long: `sbmpctl is the operator-facing CLI for the Simple Binary Messaging
Protocol. It opens a byte-stream device, runs and observes handshakes
against a peer endpoint, and reviews the local history of past attempts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if deviceFlag != "" {
			cfg.Device = deviceFlag
		}
		if cksumFlag != "" {
			cfg.Checksum = cksumFlag
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.sbmp/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&deviceFlag, "device", "", "serial device path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&cksumFlag, "checksum", "", "checksum kind: none, xor, crc32 (overrides config)")
}
