package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	lserrors "github.com/zpp0196/localsend-go/internal/localsend/errors"
	"github.com/zpp0196/localsend-go/internal/models"
	"github.com/google/uuid"
)

// copyChunkSize bounds how many bytes are written between cancellation
// checks.
const copyChunkSize = 64 * 1024

type FileState int

const (
	FilePending FileState = iota
	FileWriting
	FileDone
	FileFailed
	FileCancelled
)

func (s FileState) terminal() bool {
	return s == FileDone || s == FileFailed || s == FileCancelled
}

type recvFile struct {
	meta     models.FileMeta
	token    string
	state    FileState
	partPath string
}

// Session tracks one accepted incoming transfer: its issued tokens and the
// completion state of every file. Each token is redeemable at most once and
// each file has at most one active writer.
type Session struct {
	Id     string
	Sender models.DeviceInfo

	saveDir string

	mu           sync.Mutex
	files        map[string]*recvFile
	cancelled    bool
	lastActivity time.Time
}

// NewSession issues a fresh session id and one single-use token per
// accepted file. Filenames are sender-chosen and may carry slash-relative
// directory parts, but must stay inside saveDir.
func NewSession(saveDir string, sender models.DeviceInfo, accepted []models.FileMeta) (*Session, error) {
	for _, meta := range accepted {
		if !filepath.IsLocal(filepath.FromSlash(meta.Filename)) {
			return nil, fmt.Errorf("%w: unsafe file name %q", lserrors.ErrInvalidBody, meta.Filename)
		}
	}

	if err := os.MkdirAll(saveDir, fs.ModePerm); err != nil {
		return nil, err
	}

	sess := &Session{
		Id:           uuid.NewString(),
		Sender:       sender,
		saveDir:      saveDir,
		files:        make(map[string]*recvFile, len(accepted)),
		lastActivity: time.Now(),
	}
	for _, meta := range accepted {
		sess.files[meta.Id] = &recvFile{
			meta:  meta,
			token: uuid.NewString(),
			state: FilePending,
		}
	}
	return sess, nil
}

// Tokens builds the prepare-upload response map (file id -> token).
func (sess *Session) Tokens() models.FileTokens {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	tokens := make(models.FileTokens, len(sess.files))
	for fileId, file := range sess.files {
		tokens[fileId] = file.token
	}
	return tokens
}

// SaveFile validates the token, streams the body to a temporary file and
// atomically renames it into place on completion. The write aborts as soon
// as it would exceed the declared size or the session is cancelled; aborted
// writes leave no renamed output and their temporary file is removed.
func (sess *Session) SaveFile(fileId, token string, body io.Reader) error {
	file, err := sess.claim(fileId, token)
	if err != nil {
		return err
	}

	err = sess.writeFile(file, body)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActivity = time.Now()

	if err != nil {
		if sess.cancelled {
			file.state = FileCancelled
			err = lserrors.ErrCancelled
		} else {
			file.state = FileFailed
		}
		os.Remove(file.partPath)
		return err
	}

	file.state = FileDone
	slog.Info("Recv file", "file", file.meta.Filename, "session", sess.Id)
	return nil
}

// claim atomically moves the file from pending to writing, enforcing
// single-use tokens and at-most-one writer per file.
func (sess *Session) claim(fileId, token string) (*recvFile, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cancelled {
		return nil, lserrors.ErrCancelled
	}

	file, ok := sess.files[fileId]
	if !ok || file.token != token {
		return nil, lserrors.ErrInvalidToken
	}
	if file.state != FilePending {
		// replayed token, a concurrent writer, or an already finished file
		return nil, lserrors.ErrInvalidToken
	}

	file.state = FileWriting
	dest := filepath.Join(sess.saveDir, filepath.FromSlash(file.meta.Filename))
	file.partPath = fmt.Sprintf("%s.%s.part", dest, partSuffix(fileId))
	sess.lastActivity = time.Now()
	return file, nil
}

// partSuffix derives a fixed-width path-safe tag from the sender-chosen
// file id, which can be any string of any length.
func partSuffix(fileId string) string {
	sum := sha256.Sum256([]byte(fileId))
	return hex.EncodeToString(sum[:4])
}

func (sess *Session) writeFile(file *recvFile, body io.Reader) error {
	// slash-relative filenames rebuild their directory tree under saveDir
	if err := os.MkdirAll(filepath.Dir(file.partPath), 0o750); err != nil {
		return lserrors.ErrFileIO
	}

	out, err := os.OpenFile(file.partPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return lserrors.ErrFileIO
	}

	hasher := sha256.New()
	dst := io.MultiWriter(out, hasher)

	var written int64
	buf := make([]byte, copyChunkSize)
	for {
		if sess.isCancelled() {
			out.Close()
			return lserrors.ErrCancelled
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if written+int64(n) > file.meta.Size {
				out.Close()
				return lserrors.ErrSizeMismatch
			}
			if _, werr := dst.Write(buf[:n]); werr != nil {
				out.Close()
				return lserrors.ErrFileIO
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return lserrors.ErrFileIO
		}
	}

	if err := out.Close(); err != nil {
		return lserrors.ErrFileIO
	}

	if written != file.meta.Size {
		return lserrors.ErrSizeMismatch
	}
	if file.meta.Checksum != "" && hex.EncodeToString(hasher.Sum(nil)) != file.meta.Checksum {
		return lserrors.ErrChecksum
	}

	finalPath := availablePath(filepath.Join(sess.saveDir, filepath.FromSlash(file.meta.Filename)))
	if err := os.Rename(file.partPath, finalPath); err != nil {
		return lserrors.ErrFileIO
	}
	return nil
}

// availablePath never clobbers an existing file: "a.txt" becomes
// "a (1).txt" and so on.
func availablePath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}

	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

func (sess *Session) isCancelled() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.cancelled
}

// Cancel invalidates every remaining token and removes partial writes.
// In-flight writers observe the flag between chunks and clean up after
// themselves. Idempotent.
func (sess *Session) Cancel() {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cancelled {
		return
	}
	sess.cancelled = true

	for _, file := range sess.files {
		switch file.state {
		case FilePending:
			file.state = FileCancelled
		case FileWriting:
			// its writer aborts and removes the part file itself
		default:
		}
		if file.partPath != "" && file.state != FileWriting {
			os.Remove(file.partPath)
		}
	}
	slog.Info("Session cancelled", "session", sess.Id)
}

// FileStates snapshots per-file completion, for logging and history.
func (sess *Session) FileStates() map[string]FileState {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	states := make(map[string]FileState, len(sess.files))
	for fileId, file := range sess.files {
		states[fileId] = file.state
	}
	return states
}

// Meta returns the metadata of an accepted file.
func (sess *Session) Meta(fileId string) (models.FileMeta, bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	file, ok := sess.files[fileId]
	if !ok {
		return models.FileMeta{}, false
	}
	return file.meta, true
}

// Finished reports whether every file reached a terminal state.
func (sess *Session) Finished() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.cancelled {
		return true
	}
	for _, file := range sess.files {
		if !file.state.terminal() {
			return false
		}
	}
	return true
}

// IdleSince reports the last moment a token was claimed or a write finished.
func (sess *Session) IdleSince() time.Time {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.lastActivity
}
