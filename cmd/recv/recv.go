package recv

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zpp0196/localsend-go/internal/crypto"
	"github.com/zpp0196/localsend-go/internal/history"
	lsrecv "github.com/zpp0196/localsend-go/internal/localsend/recv"
	"github.com/zpp0196/localsend-go/internal/localsend/session"
	lsutils "github.com/zpp0196/localsend-go/internal/localsend/utils"
	"github.com/zpp0196/localsend-go/internal/models"
	"github.com/zpp0196/localsend-go/internal/utils"
	"github.com/spf13/cobra"
)

var (
	devname      string
	savetodir    string
	supportHttps bool
	quickSave    bool
	pin          string
	acceptExt    string
	historyPath  string
)

var Cmd = &cobra.Command{
	Use:   "recv",
	Short: "Receive files from localsend instances",
	Long:  "Receive files from localsend instances",
	Run: func(cmd *cobra.Command, args []string) {
		identity, err := buildIdentity()
		if err != nil {
			slog.Error("Fail to prepare identity", "error", err)
			return
		}

		recver := lsrecv.NewFileReceiver(devname, savetodir, identity)
		recver.SetPIN(pin)
		recver.SetDecider(buildDecider())

		if historyPath != "" {
			store, err := history.Open(historyPath)
			if err != nil {
				slog.Warn("Fail to open history store", "error", err)
			} else {
				defer store.Close()
				recver.OnSessionFinished(recordSession(store))
			}
		}

		if err := recver.Init(); err != nil {
			slog.Error("Fail to initialize receiver", "error", err)
			return
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recver.Start(); err != nil {
				slog.Error("Fail to start server", "error", err)
			}
		}()

		slog.Info("Waiting to receive files (Ctrl-C to terminate)", "alias", devname, "dir", savetodir)

		<-utils.WaitForSignal()

		recver.Stop()
		wg.Wait()
	},
}

func buildIdentity() (*crypto.Identity, error) {
	if !supportHttps {
		return crypto.NewHTTPIdentity(), nil
	}

	slog.Info("Loading https certificate")
	// TODO: save certificate in user config directory
	keyFile := filepath.Join(os.TempDir(), "localsend-go.key.pem")
	certFile := filepath.Join(os.TempDir(), "localsend-go.crt")
	return crypto.LoadOrGenerate(certFile, keyFile)
}

func allowedExts() []string {
	if acceptExt == "" {
		return nil
	}
	exts := strings.Split(acceptExt, ",")
	for i, ext := range exts {
		exts[i] = strings.TrimSpace(strings.ToLower(ext))
	}
	return exts
}

// buildDecider picks quick-save or an interactive stdin prompt. Either way
// duplicates and filtered extensions are skipped by the quick-save policy.
func buildDecider() lsrecv.Decider {
	policy := lsrecv.QuickSave{SaveDir: savetodir, AllowedExts: allowedExts()}
	if quickSave {
		return policy
	}

	return lsrecv.DeciderFunc(func(ctx context.Context, sender models.DeviceInfo, files []models.FileMeta) ([]models.FileMeta, error) {
		fmt.Fprintf(os.Stdout, "%s (%s) wants to send %d file(s):\n", sender.Alias, sender.IP, len(files))
		for _, meta := range files {
			fmt.Fprintf(os.Stdout, "\t%s (%d bytes)\n", meta.Filename, meta.Size)
		}
		fmt.Fprint(os.Stdout, "Accept? [y/N] ")

		answer := make(chan string, 1)
		go func() {
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			answer <- strings.ToLower(strings.TrimSpace(line))
		}()

		select {
		case line := <-answer:
			if line != "y" && line != "yes" {
				return nil, nil
			}
			return policy.Decide(ctx, sender, files)
		case <-ctx.Done():
			fmt.Fprintln(os.Stdout, "timed out")
			return nil, ctx.Err()
		}
	})
}

// recordSession writes each file's terminal state to the history store once
// the session leaves the registry.
func recordSession(store *history.Store) func(*session.Session) {
	statusNames := map[session.FileState]string{
		session.FileDone:      "completed",
		session.FileFailed:    "failed",
		session.FileCancelled: "cancelled",
	}

	return func(sess *session.Session) {
		for fileId, state := range sess.FileStates() {
			status, ok := statusNames[state]
			if !ok {
				continue
			}
			meta, _ := sess.Meta(fileId)
			err := store.Add(history.Record{
				SessionId:       sess.Id,
				FileId:          fileId,
				FileName:        meta.Filename,
				Size:            meta.Size,
				Direction:       "receive",
				PeerAlias:       sess.Sender.Alias,
				PeerFingerprint: sess.Sender.Fingerprint,
				Status:          status,
			})
			if err != nil {
				slog.Warn("Fail to record transfer", "error", err)
			}
		}
	}
}

func init() {
	Cmd.PersistentFlags().StringVarP(&devname, "devname", "n", lsutils.GenAlias(), "Device name that is advertised")
	Cmd.PersistentFlags().StringVarP(&savetodir, "dir", "d", ".", "Directory for received files")
	Cmd.PersistentFlags().StringVarP(&pin, "pin", "p", "", "PIN code")
	Cmd.PersistentFlags().BoolVar(&supportHttps, "https", true, "Do https")
	Cmd.PersistentFlags().BoolVarP(&quickSave, "quick-save", "q", false, "Accept incoming files without asking")
	Cmd.PersistentFlags().StringVarP(&acceptExt, "accept-ext", "a", "", "Comma-separated list of allowed file extensions (e.g., epub,pdf,mobi). Empty means accept all.")
	Cmd.PersistentFlags().StringVar(&historyPath, "history", "", "Path to transfer history database")
}
