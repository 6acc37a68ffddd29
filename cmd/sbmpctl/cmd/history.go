package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ignacioSepam/sbmp/cmd/sbmpctl/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent handshake attempts recorded locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("open history db: %w", err)
		}
		defer db.Close()

		rows, err := db.Recent(historyLimit)
		if err != nil {
			return fmt.Errorf("query history: %w", err)
		}
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no handshake attempts recorded yet")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-5s %-36s %-16s %-11s %-6s %-8s\n", "ID", "SESSION", "DEVICE", "STATUS", "ORIGIN", "PEER_BUF")
		for _, h := range rows {
			status := h.Status
			switch h.Status {
			case "SUCCESS":
				status = color.GreenString(h.Status)
			case "CONFLICT":
				status = color.RedString(h.Status)
			default:
				status = color.YellowString(h.Status)
			}
			origin := "-"
			if h.LocalOrigin != nil {
				origin = fmt.Sprintf("%d", *h.LocalOrigin)
			}
			peerBuf := "-"
			if h.PeerBufferSize != nil {
				peerBuf = fmt.Sprintf("%#04x", *h.PeerBufferSize)
			}
			fmt.Fprintf(w, "%-5d %-36s %-16s %-11s %-6s %-8s\n", h.ID, h.SessionID, h.Device, status, origin, peerBuf)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of attempts to show")
	rootCmd.AddCommand(historyCmd)
}
