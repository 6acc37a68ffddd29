package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ignacioSepam/sbmp/cmd/sbmpctl/internal/link"
	"github.com/ignacioSepam/sbmp/cmd/sbmpctl/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open a live terminal dashboard for the configured endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := link.ParseChecksum(cfg.Checksum)
		if err != nil {
			return err
		}
		lnk, err := link.Open(cfg.Device, k, cfg.BufferSize, cfg.LogPath)
		if err != nil {
			return err
		}
		defer lnk.Close()

		p := tea.NewProgram(tui.New(lnk), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
