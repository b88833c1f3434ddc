package send

import (
	"errors"
	"log/slog"
	"os"

	"github.com/zpp0196/localsend-go/internal/crypto"
	"github.com/zpp0196/localsend-go/internal/history"
	"github.com/zpp0196/localsend-go/internal/localsend"
	"github.com/zpp0196/localsend-go/internal/localsend/constants"
	lssend "github.com/zpp0196/localsend-go/internal/localsend/send"
	lsutils "github.com/zpp0196/localsend-go/internal/localsend/utils"
	"github.com/zpp0196/localsend-go/internal/models"
	"github.com/zpp0196/localsend-go/internal/utils"
	"github.com/spf13/cobra"
)

var (
	ip           string
	files        []string
	text         string
	supportHttps bool
	pin          string
	historyPath  string
)

var Cmd = &cobra.Command{
	Use:   "send [files]...",
	Short: "Send files or text to a localsend instance",
	Long:  "Send files or text to a localsend instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ip == "" {
			return errors.New("IP address is required")
		}
		files = append(files, args...)
		if len(files) == 0 && text == "" {
			return errors.New("file or text is required")
		}

		devinfo, err := localsend.GetDeviceInfo(ip, constants.DefaultPort, supportHttps)
		if err != nil {
			slog.Error("Fail to get device info", "error", err)
			return nil
		}

		identity := crypto.NewHTTPIdentity()
		sender := lssend.NewSender()
		sender.SetPIN(pin)
		sender.Init(models.NewDeviceInfo(lsutils.GenAlias(), identity.Fingerprint()), &devinfo, constants.DefaultPort, supportHttps)

		// try to add every file
		for _, file := range files {
			finfo, err := os.Stat(file)
			if err != nil {
				slog.Error("Fail to probe file", "file", file, "error", err)
				continue
			}
			if finfo.IsDir() {
				err = sender.AddDir(file)
			} else {
				err = sender.AddFile(file)
			}
			if err != nil {
				slog.Error("Fail to add, skipping...", "path", file, "error", err)
				continue
			}
		}
		if text != "" {
			sender.AddText(text)
		}
		if len(sender.Files()) == 0 {
			return errors.New("nothing to send")
		}

		events, err := sender.Start()
		if err != nil {
			slog.Error("Fail to negotiate", "error", err)
			return nil
		}
		slog.Info("Start sending", "target", devinfo.Alias, "files", len(sender.Files()))

		go func() {
			<-utils.WaitForSignal()

			slog.Info("Abort")
			if err := sender.Cancel(); err != nil {
				slog.Error("Fail to cancel", "error", err)
			}
		}()

		var store *history.Store
		if historyPath != "" {
			store, err = history.Open(historyPath)
			if err != nil {
				slog.Warn("Fail to open history store", "error", err)
			} else {
				defer store.Close()
			}
		}

		terminals := make([]lssend.TransferEvent, 0, len(sender.Files()))
		for ev := range events {
			if !ev.Kind.Terminal() {
				continue
			}
			terminals = append(terminals, ev)
			slog.Info("File "+ev.Kind.String(), "file", ev.Filename, "size", ev.Total)

			if store != nil {
				store.Add(history.Record{
					SessionId:       sender.SessionId(),
					FileId:          ev.FileId,
					FileName:        ev.Filename,
					Size:            ev.Total,
					Direction:       "send",
					PeerAlias:       devinfo.Alias,
					PeerFingerprint: devinfo.Fingerprint,
					Status:          ev.Kind.String(),
				})
			}
		}

		slog.Info("Done", "outcome", lssend.SummarizeOutcome(terminals))
		return nil
	},
}

func init() {
	Cmd.PersistentFlags().StringVar(&ip, "ip", "", "IP address of remote localsend instance")
	Cmd.PersistentFlags().StringSliceVarP(&files, "file", "f", []string{}, "File/Directory to be sent")
	Cmd.PersistentFlags().StringVar(&text, "text", "", "Text message to be sent")
	Cmd.PersistentFlags().BoolVar(&supportHttps, "https", true, "Do https")
	Cmd.PersistentFlags().StringVarP(&pin, "pin", "p", "", "PIN code")
	Cmd.PersistentFlags().StringVar(&historyPath, "history", "", "Path to transfer history database")
}
