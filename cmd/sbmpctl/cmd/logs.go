package cmd

import (
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

var followLogs bool

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show (or follow) the endpoint's JSONL diagnostic log",
	RunE: func(cmd *cobra.Command, args []string) error {
		whence := io.SeekStart
		if followLogs {
			whence = io.SeekEnd
		}
		t, err := tail.TailFile(cfg.LogPath, tail.Config{
			Location: &tail.SeekInfo{Offset: 0, Whence: whence},
			Follow:   followLogs,
			ReOpen:   followLogs,
			Logger:   tail.DiscardingLogger,
		})
		if err != nil {
			return fmt.Errorf("tail %s: %w", cfg.LogPath, err)
		}
		for line := range t.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line.Text)
		}
		return t.Err()
	},
}

func init() {
	logsCmd.Flags().BoolVarP(&followLogs, "follow", "f", false, "keep the log open and stream new entries")
	rootCmd.AddCommand(logsCmd)
}
