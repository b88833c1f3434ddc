package history

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zpp0196/localsend-go/internal/history"
	"github.com/spf13/cobra"
)

var (
	historyPath string
	limit       int
)

var Cmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent transfers",
	Long:  "Show recent transfers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyPath == "" {
			return errors.New("history database path is required")
		}

		store, err := history.Open(historyPath)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.Recent(limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No transfers recorded")
			return nil
		}

		for _, rec := range records {
			fmt.Fprintf(os.Stdout, "%s  %-7s %-9s %s (%d bytes) peer=%s\n",
				rec.FinishedAt.Format(time.DateTime), rec.Direction, rec.Status,
				rec.FileName, rec.Size, rec.PeerAlias)
		}
		return nil
	},
}

func init() {
	Cmd.PersistentFlags().StringVar(&historyPath, "history", "", "Path to transfer history database")
	Cmd.PersistentFlags().IntVarP(&limit, "limit", "l", 20, "Maximum records to show")
}
