package models

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/zpp0196/localsend-go/internal/utils"
	"github.com/google/uuid"
)

// TextMIME tags a text message modelled as a synthetic file.
const TextMIME = "text/plain"

type FileMeta struct {
	Id       string `json:"id"`
	Filename string `json:"fileName"`
	Size     int64  `json:"size"`
	FileMIME string `json:"fileType"`
	Checksum string `json:"sha256,omitempty"`
	Preview  string `json:"preview,omitempty"`
	FullPath string `json:"-"`
}

// GenFileMeta builds the metadata for an on-disk file, including its
// sha256 so the receiver can verify the stream.
func GenFileMeta(fpath string) (FileMeta, error) {
	fd, err := os.Stat(fpath)
	if err != nil {
		return FileMeta{}, err
	}

	checksum, err := utils.SHA256ofFile(fpath)
	if err != nil {
		return FileMeta{}, err
	}

	fileType := mime.TypeByExtension(filepath.Ext(fpath))
	if fileType == "" {
		fileType = "application/octet-stream"
	}

	return FileMeta{
		Id:       uuid.NewString(),
		Filename: fd.Name(),
		Size:     fd.Size(),
		FileMIME: fileType,
		Checksum: checksum,
		FullPath: fpath,
	}, nil
}

// GenTextMeta models a text message as a single synthetic file. The text
// itself rides in the preview field and is also what gets uploaded.
func GenTextMeta(text string) FileMeta {
	sum := utils.SHA256ofBytes([]byte(text))
	return FileMeta{
		Id:       uuid.NewString(),
		Filename: fmt.Sprintf("%s.txt", sum[:16]),
		Size:     int64(len(text)),
		FileMIME: TextMIME,
		Preview:  text,
	}
}
