package send

import (
	"io/fs"
	"net"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/zpp0196/localsend-go/internal/models"
	"github.com/valyala/fasthttp"
)

// Sender drives one outgoing transfer: it builds the manifest, negotiates a
// session with the target and uploads the accepted files concurrently.
// A Sender is single-use; Init resets it for a new target.
type Sender struct {
	local  *models.DeviceInfo
	remote *models.DeviceInfo
	port   int
	https  bool
	pin    string

	files   models.FileMetas
	session string
	tokens  models.FileTokens

	abort  atomic.Bool
	events chan TransferEvent
}

func NewSender() *Sender {
	return &Sender{
		files:  make(models.FileMetas),
		tokens: make(models.FileTokens),
	}
}

// Init points the sender at a target device's advertised endpoint. The
// local identity travels in the manifest so the receiver knows who is
// knocking.
func (fsp *Sender) Init(local models.DeviceInfo, target *models.DeviceInfo, port int, https bool) {
	fsp.abort.Store(false)
	fsp.session = ""
	fsp.local = &local
	fsp.remote = target
	fsp.port = port
	fsp.https = https
	fsp.files = make(models.FileMetas)
	fsp.tokens = make(models.FileTokens)
}

func (fsp *Sender) SetPIN(pin string) {
	fsp.pin = pin
}

func (fsp *Sender) AddFile(filePath string) error {
	meta, err := models.GenFileMeta(filePath)
	if err != nil {
		return err
	}
	fsp.files[meta.Id] = meta
	return nil
}

// AddDir adds every regular file under dirPath, keeping paths relative to
// the directory's parent so the receiver can rebuild the tree.
func (fsp *Sender) AddDir(dirPath string) error {
	base := filepath.Dir(filepath.Clean(dirPath))

	return filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		meta, err := models.GenFileMeta(path)
		if err != nil {
			return err
		}
		if rel, rerr := filepath.Rel(base, path); rerr == nil {
			meta.Filename = filepath.ToSlash(rel)
		}
		fsp.files[meta.Id] = meta
		return nil
	})
}

// AddText queues a text message, modelled as a single synthetic file.
func (fsp *Sender) AddText(text string) {
	meta := models.GenTextMeta(text)
	fsp.files[meta.Id] = meta
}

// Files exposes the manifest, keyed by file id.
func (fsp *Sender) Files() models.FileMetas {
	return fsp.files
}

// SessionId is the receiver-issued session id, empty until negotiation
// succeeds.
func (fsp *Sender) SessionId() string {
	return fsp.session
}

func (fsp *Sender) prepareUri(req *fasthttp.Request, path string) {
	remoteAddr := net.JoinHostPort(fsp.remote.IP, strconv.Itoa(fsp.port))

	req.Header.SetUserAgent("localsend-go")
	req.URI().SetPath(path)
	if fsp.https {
		req.URI().SetScheme("https")
	} else {
		req.URI().SetScheme("http")
	}
	req.URI().SetHost(remoteAddr)
}

// SummarizeOutcome derives the session outcome from per-file terminal
// events: success iff at least one file completed and none failed.
func SummarizeOutcome(terminals []TransferEvent) string {
	var completed, failed int
	for _, ev := range terminals {
		switch ev.Kind {
		case EventCompleted:
			completed++
		case EventFailed:
			failed++
		}
	}
	switch {
	case completed > 0 && failed == 0:
		return "succeeded"
	case completed > 0:
		return "partial"
	default:
		return "failed"
	}
}
