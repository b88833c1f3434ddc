package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	lserrors "github.com/zpp0196/localsend-go/internal/localsend/errors"
	"github.com/zpp0196/localsend-go/internal/models"
	"github.com/zpp0196/localsend-go/internal/utils"
)

func newTestSession(t *testing.T, metas ...models.FileMeta) (*Session, string) {
	t.Helper()

	dir := t.TempDir()
	sender := models.NewDeviceInfo("Fast Pear", "peer-fp")
	sess, err := NewSession(dir, sender, metas)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess, dir
}

func textMeta(id, name, content string) models.FileMeta {
	return models.FileMeta{
		Id:       id,
		Filename: name,
		Size:     int64(len(content)),
		FileMIME: "text/plain",
		Checksum: utils.SHA256ofBytes([]byte(content)),
	}
}

func TestSaveFileQuickScenario(t *testing.T) {
	content := "hello world"
	sess, dir := newTestSession(t, textMeta("f1", "a.txt", content))

	tokens := sess.Tokens()
	if len(tokens) != 1 || tokens["f1"] == "" {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}

	if err := sess.SaveFile("f1", tokens["f1"], strings.NewReader(content)); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	saved, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(saved) != content {
		t.Errorf("saved content = %q", saved)
	}

	// second call with the same credentials is an already-completed error
	err = sess.SaveFile("f1", tokens["f1"], strings.NewReader(content))
	if !errors.Is(err, lserrors.ErrInvalidToken) {
		t.Errorf("replay = %v; want ErrInvalidToken", err)
	}

	if !sess.Finished() {
		t.Error("single-file session should be finished")
	}
}

func TestSaveFileAnyIdShape(t *testing.T) {
	// file ids are sender-chosen strings of any length and content; none of
	// them may leak into paths or trip the part-file naming
	for _, id := range []string{"f", "1", strings.Repeat("x", 200), "../../evil", "a/b"} {
		content := "hello"
		meta := textMeta(id, "a.txt", content)
		sess, dir := newTestSession(t, meta)

		if err := sess.SaveFile(id, sess.Tokens()[id], strings.NewReader(content)); err != nil {
			t.Fatalf("SaveFile with id %q: %v", id, err)
		}
		if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
			t.Errorf("id %q: saved file missing: %v", id, err)
		}
	}
}

func TestSaveFileRebuildsDirectoryTree(t *testing.T) {
	content := "nested payload"
	sess, dir := newTestSession(t, textMeta("f1", "album/nested/two.txt", content))

	if err := sess.SaveFile("f1", sess.Tokens()["f1"], strings.NewReader(content)); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	saved, err := os.ReadFile(filepath.Join(dir, "album", "nested", "two.txt"))
	if err != nil {
		t.Fatalf("read nested file: %v", err)
	}
	if string(saved) != content {
		t.Errorf("nested content = %q", saved)
	}
}

func TestNewSessionRejectsEscapingNames(t *testing.T) {
	dir := t.TempDir()
	sender := models.NewDeviceInfo("Fast Pear", "peer-fp")

	for _, name := range []string{"../escape.txt", "a/../../escape.txt", "/etc/passwd", ".."} {
		_, err := NewSession(dir, sender, []models.FileMeta{textMeta("f1", name, "x")})
		if err == nil {
			t.Errorf("name %q accepted; must stay inside the save directory", name)
		}
	}

	// nothing may have landed next to (or above) the save directory
	entries, _ := os.ReadDir(filepath.Dir(dir))
	for _, e := range entries {
		if e.Name() == "escape.txt" {
			t.Fatal("file escaped the save directory")
		}
	}
}

func TestSaveFileRejectsBadToken(t *testing.T) {
	sess, dir := newTestSession(t, textMeta("f1", "a.txt", "hello"))

	err := sess.SaveFile("f1", "forged", strings.NewReader("hello"))
	if !errors.Is(err, lserrors.ErrInvalidToken) {
		t.Errorf("forged token = %v; want ErrInvalidToken", err)
	}
	err = sess.SaveFile("nope", sess.Tokens()["f1"], strings.NewReader("hello"))
	if !errors.Is(err, lserrors.ErrInvalidToken) {
		t.Errorf("unknown file = %v; want ErrInvalidToken", err)
	}

	// a rejected request never touches storage
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("storage touched: %v", entries)
	}
}

func TestSaveFileAtMostOnce(t *testing.T) {
	content := strings.Repeat("x", 256*1024)
	sess, dir := newTestSession(t, textMeta("f1", "big.bin", content))
	token := sess.Tokens()["f1"]

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = sess.SaveFile("f1", token, strings.NewReader(content))
		}(i)
	}
	wg.Wait()

	var oks, rejects int
	for _, err := range results {
		if err == nil {
			oks++
		} else if errors.Is(err, lserrors.ErrInvalidToken) {
			rejects++
		} else {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if oks != 1 || rejects != 1 {
		t.Fatalf("want exactly one winner, got ok=%d reject=%d", oks, rejects)
	}

	saved, err := os.ReadFile(filepath.Join(dir, "big.bin"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(saved, []byte(content)) {
		t.Error("destination corrupted by concurrent writes")
	}
}

func TestSaveFileSizeOverflow(t *testing.T) {
	meta := textMeta("f1", "a.txt", "hello")
	meta.Checksum = ""
	sess, dir := newTestSession(t, meta)

	err := sess.SaveFile("f1", sess.Tokens()["f1"], strings.NewReader("hello plus excess bytes"))
	if !errors.Is(err, lserrors.ErrSizeMismatch) {
		t.Fatalf("overflow = %v; want ErrSizeMismatch", err)
	}

	// aborted write leaves no renamed output and no leftovers
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestSaveFileShortStream(t *testing.T) {
	meta := textMeta("f1", "a.txt", "hello world")
	meta.Checksum = ""
	sess, dir := newTestSession(t, meta)

	err := sess.SaveFile("f1", sess.Tokens()["f1"], strings.NewReader("hi"))
	if !errors.Is(err, lserrors.ErrSizeMismatch) {
		t.Fatalf("short stream = %v; want ErrSizeMismatch", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err == nil {
		t.Error("short stream must not be renamed into place")
	}
}

func TestSaveFileChecksumMismatch(t *testing.T) {
	meta := textMeta("f1", "a.txt", "hello")
	sess, dir := newTestSession(t, meta)

	err := sess.SaveFile("f1", sess.Tokens()["f1"], strings.NewReader("olleh"))
	if !errors.Is(err, lserrors.ErrChecksum) {
		t.Fatalf("checksum = %v; want ErrChecksum", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err == nil {
		t.Error("corrupt stream must not be renamed into place")
	}
}

func TestCancelInvalidatesTokens(t *testing.T) {
	sess, dir := newTestSession(t,
		textMeta("f1", "a.txt", "hello"),
		textMeta("f2", "b.txt", "world"),
	)
	tokens := sess.Tokens()

	if err := sess.SaveFile("f1", tokens["f1"], strings.NewReader("hello")); err != nil {
		t.Fatalf("SaveFile before cancel: %v", err)
	}

	sess.Cancel()
	sess.Cancel() // idempotent

	err := sess.SaveFile("f2", tokens["f2"], strings.NewReader("world"))
	if !errors.Is(err, lserrors.ErrCancelled) {
		t.Errorf("upload after cancel = %v; want ErrCancelled", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.txt")); err == nil {
		t.Error("cancelled file must not appear")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
		t.Error("file completed before cancel must survive")
	}
	if !sess.Finished() {
		t.Error("cancelled session is terminal")
	}
}

func TestCancelAbortsInFlightWrite(t *testing.T) {
	sess, dir := newTestSession(t, textMeta("f1", "a.txt", "hello world"))
	token := sess.Tokens()["f1"]

	// a reader that cancels the session mid-stream
	body := &halfFeed{payload: []byte("hello "), hook: func() { sess.Cancel() }}

	err := sess.SaveFile("f1", token, body)
	if !errors.Is(err, lserrors.ErrCancelled) {
		t.Fatalf("in-flight cancel = %v; want ErrCancelled", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("partial write not cleaned up: %v", entries)
	}
}

func TestAvailablePathNeverClobbers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")

	if got := availablePath(path); got != path {
		t.Errorf("fresh path renamed: %q", got)
	}

	os.WriteFile(path, []byte("x"), 0o640)
	if got := availablePath(path); got != filepath.Join(dir, "a (1).txt") {
		t.Errorf("first collision: %q", got)
	}

	os.WriteFile(filepath.Join(dir, "a (1).txt"), []byte("x"), 0o640)
	if got := availablePath(path); got != filepath.Join(dir, "a (2).txt") {
		t.Errorf("second collision: %q", got)
	}
}

// halfFeed yields its payload once, fires the hook, then keeps the stream
// open so cancellation is observed at the next chunk boundary.
type halfFeed struct {
	payload []byte
	hook    func()
	fired   bool
}

func (hf *halfFeed) Read(p []byte) (int, error) {
	if !hf.fired {
		hf.fired = true
		n := copy(p, hf.payload)
		hf.hook()
		return n, nil
	}
	// stream stalls; the copy loop must notice the cancel flag instead
	return 0, nil
}
