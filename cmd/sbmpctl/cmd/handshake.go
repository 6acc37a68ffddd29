package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ignacioSepam/sbmp/cmd/sbmpctl/internal/link"
	"github.com/ignacioSepam/sbmp/cmd/sbmpctl/internal/store"
	"github.com/ignacioSepam/sbmp/pkg/endpoint"
)

var handshakeTimeout time.Duration

var handshakeCmd = &cobra.Command{
	Use:   "handshake",
	Short: "Open the configured device and run a handshake against the peer",
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

		db, err := store.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("open history db: %w", err)
		}
		defer db.Close()

		rowID, err := db.RecordStart(lnk.SessionID, cfg.Device)
		if err != nil {
			return fmt.Errorf("record handshake start: %w", err)
		}

		if !lnk.Endpoint.StartHandshake() {
			color.Red("FAILED to start handshake on %s", cfg.Device)
			return fmt.Errorf("sbmpctl: transmit rejected the handshake frame")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "handshake started on %s (correlation id %s)\n", cfg.Device, lnk.SessionID)

		deadline := time.Now().Add(handshakeTimeout)
		for time.Now().Before(deadline) {
			if lnk.Endpoint.HandshakeStatus() != endpoint.AwaitReply {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}

		status := lnk.Endpoint.HandshakeStatus()
		peerBufSize := int(lnk.Endpoint.PeerBufferSize())
		if err := db.RecordOutcome(rowID, status.String(), int(lnk.Endpoint.Origin()), peerBufSize, cfg.Checksum); err != nil {
			return fmt.Errorf("record handshake outcome: %w", err)
		}

		switch status {
		case endpoint.Success:
			color.Green("SUCCESS  origin=%d peer_buffer_size=%#04x", lnk.Endpoint.Origin(), lnk.Endpoint.PeerBufferSize())
		case endpoint.Conflict:
			color.Red("CONFLICT  peer initiated simultaneously")
		default:
			color.Yellow("TIMED OUT waiting for a reply")
		}
		return nil
	},
}

func init() {
	handshakeCmd.Flags().DurationVar(&handshakeTimeout, "timeout", 3*time.Second, "how long to wait for a handshake reply")
	rootCmd.AddCommand(handshakeCmd)
}
