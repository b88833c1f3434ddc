package send

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/zpp0196/localsend-go/internal/localsend/constants"
	lserrors "github.com/zpp0196/localsend-go/internal/localsend/errors"
	"github.com/zpp0196/localsend-go/internal/models"
	"github.com/gofiber/fiber/v2"
)

const (
	// maxConcurrentUploads bounds the fan-out so a big manifest does not
	// saturate the LAN or the filesystem.
	maxConcurrentUploads = 4
	// uploadChunkSize bounds how many bytes go out between cancellation
	// checks and progress events.
	uploadChunkSize = 64 * 1024
)

// Start negotiates the session and spawns the upload tasks. It returns the
// event stream immediately after a successful negotiation; the channel is
// closed once every file reached a terminal state. A non-nil error means
// the negotiation itself failed and nothing was transferred.
func (fsp *Sender) Start() (<-chan TransferEvent, error) {
	if err := fsp.negotiate(); err != nil {
		return nil, err
	}

	// terminal events are never dropped, so the buffer must cover one per
	// file on top of the progress window
	fsp.events = make(chan TransferEvent, len(fsp.files)+128)

	// files the receiver declined are terminal right away, without upload
	for fid, meta := range fsp.files {
		if _, ok := fsp.tokens[fid]; !ok {
			fsp.emitTerminal(TransferEvent{
				Kind:     EventRejected,
				FileId:   fid,
				Filename: meta.Filename,
				Total:    meta.Size,
			})
		}
	}

	go fsp.runUploads()

	return fsp.events, nil
}

func (fsp *Sender) runUploads() {
	defer close(fsp.events)

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentUploads)

	for fid, ftoken := range fsp.tokens {
		wg.Add(1)
		go func(fid, ftoken string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			fsp.uploadFile(fid, ftoken)
		}(fid, ftoken)
	}

	wg.Wait()
}

// uploadFile streams one file and emits its terminal event. A single file's
// failure never aborts its siblings.
func (fsp *Sender) uploadFile(fid, ftoken string) {
	meta, ok := fsp.files[fid]
	if !ok {
		return // unlikely, but check it anyway
	}

	terminal := TransferEvent{FileId: fid, Filename: meta.Filename, Total: meta.Size}

	err := fsp.sendFile(meta, ftoken)
	switch {
	case err == nil:
		terminal.Kind = EventCompleted
		terminal.Bytes = meta.Size
	case errors.Is(err, lserrors.ErrCancelled):
		terminal.Kind = EventCancelled
	default:
		slog.Error("Fail to send file", "error", err, "fileId", fid)
		terminal.Kind = EventFailed
		terminal.Err = err
	}

	fsp.emitTerminal(terminal)
}

func (fsp *Sender) sendFile(meta models.FileMeta, ftoken string) error {
	if fsp.abort.Load() {
		return lserrors.ErrCancelled
	}

	var src io.ReadCloser
	if meta.FullPath != "" {
		fd, err := os.Open(meta.FullPath)
		if err != nil {
			return err
		}
		src = fd
	} else {
		// text message: the payload is the preview itself
		src = io.NopCloser(strings.NewReader(meta.Preview))
	}
	defer src.Close()

	// Reuse: Bytes must not also release the agent, or the deferred
	// ReleaseAgent double-puts it into the pool (see info.go)
	agent := fiber.AcquireAgent().Reuse()
	defer fiber.ReleaseAgent(agent)

	req := agent.Request()
	fsp.prepareUri(req, constants.UploadPath)
	req.Header.SetMethod(fiber.MethodPost)
	req.URI().QueryArgs().Add("sessionId", fsp.session)
	req.URI().QueryArgs().Add("fileId", meta.Id)
	req.URI().QueryArgs().Add("token", ftoken)
	if err := agent.Parse(); err != nil {
		return err
	}

	body := &progressReader{
		src:    src,
		fileId: meta.Id,
		name:   meta.Filename,
		total:  meta.Size,
		abort:  &fsp.abort,
		emit:   fsp.emitProgress,
	}

	status, _, errs := agent.InsecureSkipVerify().BodyStream(body, int(meta.Size)).Bytes()
	if body.aborted.Load() {
		return lserrors.ErrCancelled
	}
	if len(errs) != 0 {
		return errs[0]
	}

	return lserrors.ParseError(status)
}

// Cancel sets the shared per-session cancellation flag; every in-flight
// upload observes it at its next chunk boundary. It also notifies the
// receiver, best-effort, so partial writes are discarded promptly.
func (fsp *Sender) Cancel() error {
	fsp.abort.Store(true)

	if fsp.session == "" {
		return nil
	}

	// Reuse: Bytes must not also release the agent, or the deferred
	// ReleaseAgent double-puts it into the pool (see info.go)
	agent := fiber.AcquireAgent().Reuse().InsecureSkipVerify()
	defer fiber.ReleaseAgent(agent)

	req := agent.Request()
	fsp.prepareUri(req, constants.CancelPath)
	req.Header.SetMethod(fiber.MethodPost)
	req.URI().QueryArgs().Add("sessionId", fsp.session)
	if err := agent.Parse(); err != nil {
		return err
	}

	status, _, errs := agent.Bytes()
	if len(errs) != 0 {
		return errs[0]
	}

	return lserrors.ParseError(status)
}

// emitProgress is fire-and-forget: a slow consumer drops deltas instead of
// slowing the transfer.
func (fsp *Sender) emitProgress(ev TransferEvent) {
	select {
	case fsp.events <- ev:
	default:
	}
}

// emitTerminal never drops: the channel is sized to hold one terminal event
// per file.
func (fsp *Sender) emitTerminal(ev TransferEvent) {
	fsp.events <- ev
}

// progressReader chunks the byte source so cancellation is observed at
// bounded intervals and progress deltas flow while the upload runs.
type progressReader struct {
	src     io.Reader
	fileId  string
	name    string
	total   int64
	sent    int64
	abort   *atomic.Bool
	aborted atomic.Bool
	emit    func(TransferEvent)
}

func (pr *progressReader) Read(p []byte) (int, error) {
	if pr.abort.Load() {
		pr.aborted.Store(true)
		return 0, lserrors.ErrCancelled
	}

	if len(p) > uploadChunkSize {
		p = p[:uploadChunkSize]
	}

	n, err := pr.src.Read(p)
	if n > 0 {
		pr.sent += int64(n)
		pr.emit(TransferEvent{
			Kind:     EventProgress,
			FileId:   pr.fileId,
			Filename: pr.name,
			Bytes:    pr.sent,
			Total:    pr.total,
		})
	}
	return n, err
}
