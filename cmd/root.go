package cmd

import (
	"log/slog"
	"os"

	"github.com/zpp0196/localsend-go/cmd/history"
	"github.com/zpp0196/localsend-go/cmd/recv"
	"github.com/zpp0196/localsend-go/cmd/scan"
	"github.com/zpp0196/localsend-go/cmd/send"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "localsend",
	Short: "LocalSend CLI",
	Long:  "LocalSend CLI",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		slog.Error("Fail to execute", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(scan.Cmd)
	rootCmd.AddCommand(recv.Cmd)
	rootCmd.AddCommand(send.Cmd)
	rootCmd.AddCommand(history.Cmd)
}
