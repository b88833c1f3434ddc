package recv

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	lserrors "github.com/zpp0196/localsend-go/internal/localsend/errors"
	"github.com/zpp0196/localsend-go/internal/models"
)

// Decider is the capability that accepts or rejects an incoming manifest.
// It returns the subset of files to receive; an empty subset rejects the
// whole session. Implementations must honor ctx: the negotiation request is
// held open while a decision is pending and times out with it.
type Decider interface {
	Decide(ctx context.Context, sender models.DeviceInfo, files []models.FileMeta) ([]models.FileMeta, error)
}

// DeciderFunc adapts a plain function to the Decider interface.
type DeciderFunc func(ctx context.Context, sender models.DeviceInfo, files []models.FileMeta) ([]models.FileMeta, error)

func (f DeciderFunc) Decide(ctx context.Context, sender models.DeviceInfo, files []models.FileMeta) ([]models.FileMeta, error) {
	return f(ctx, sender, files)
}

// QuickSave auto-accepts every offered file without confirmation, skipping
// files that would duplicate content already on disk (same name, same size)
// and, when configured, files outside the allowed extension list.
type QuickSave struct {
	SaveDir     string
	AllowedExts []string
}

func (q QuickSave) Decide(_ context.Context, _ models.DeviceInfo, files []models.FileMeta) ([]models.FileMeta, error) {
	accepted := make([]models.FileMeta, 0, len(files))
	for _, meta := range files {
		if !q.extAllowed(meta.Filename) {
			continue
		}
		if q.isDuplicate(meta) {
			continue
		}
		accepted = append(accepted, meta)
	}
	return accepted, nil
}

// isDuplicate treats a same-name file already fully received with the same
// size as a duplicate to be skipped, not overwritten.
func (q QuickSave) isDuplicate(meta models.FileMeta) bool {
	fi, err := os.Stat(filepath.Join(q.SaveDir, meta.Filename))
	return err == nil && !fi.IsDir() && fi.Size() == meta.Size
}

func (q QuickSave) extAllowed(filename string) bool {
	if len(q.AllowedExts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, allowed := range q.AllowedExts {
		if ext == allowed {
			return true
		}
	}
	return false
}

// decideWithTimeout holds the decision open for at most the given window;
// an expired window counts as a rejection, per protocol.
func decideWithTimeout(ctx context.Context, d Decider, sender models.DeviceInfo, files []models.FileMeta) ([]models.FileMeta, error) {
	type result struct {
		accepted []models.FileMeta
		err      error
	}

	ch := make(chan result, 1)
	go func() {
		accepted, err := d.Decide(ctx, sender, files)
		ch <- result{accepted, err}
	}()

	select {
	case res := <-ch:
		return res.accepted, res.err
	case <-ctx.Done():
		return nil, lserrors.ErrRejected
	}
}
