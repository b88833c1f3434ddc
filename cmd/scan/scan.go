package scan

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/zpp0196/localsend-go/internal/crypto"
	"github.com/zpp0196/localsend-go/internal/localsend"
	lsutils "github.com/zpp0196/localsend-go/internal/localsend/utils"
	"github.com/zpp0196/localsend-go/internal/models"
	"github.com/spf13/cobra"
)

var timeout int64

var Cmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan local network for localsend instances",
	Long:  "Scan local network for localsend instances",
	Run: func(cmd *cobra.Command, args []string) {
		slog.Info("Start Scanning")

		identity := crypto.NewHTTPIdentity()
		registry := localsend.NewRegistry()

		scanner, err := localsend.NewDiscoverier(
			models.NewDeviceInfo(lsutils.GenAlias(), identity.Fingerprint()),
			registry, false)
		if err != nil {
			slog.Error("Fail to create advertiser", "error", err)
			return
		}

		done := make(chan struct{})
		go func() {
			scanner.Listen()
			close(done)
		}()

		time.Sleep(time.Second * time.Duration(timeout))
		slog.Info("Stop Scanning")
		scanner.Shutdown()
		<-done

		peers := registry.Peers()
		if len(peers) == 0 {
			fmt.Fprintln(os.Stderr, "No device found")
			return
		}

		fmt.Fprintf(os.Stdout, "Found Devices: \n")
		for _, info := range peers {
			fmt.Fprintf(os.Stdout, "\tName: %s, Version: %s, Address: %s:%d, Protocol: %s\n",
				info.Alias, info.Version, info.IP, info.Port, info.Protocol)
		}
	},
}

func init() {
	Cmd.PersistentFlags().Int64VarP(&timeout, "timeout", "t", 4, "scan duration in seconds")
}
