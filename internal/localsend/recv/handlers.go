package recv

import (
	"context"
	"log/slog"
	"path/filepath"

	lserrors "github.com/zpp0196/localsend-go/internal/localsend/errors"
	"github.com/zpp0196/localsend-go/internal/models"
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

func (fr *FileReceiver) preUploadHandler(c *fiber.Ctx) error {
	// check pin if it's set
	if fr.expectedPin != "" {
		pin := c.Query("pin")
		if pin != fr.expectedPin {
			return c.SendStatus(lserrors.Status(lserrors.ErrInvalidPIN))
		}
	}

	var metaReq models.PreUploadReq
	if err := c.BodyParser(&metaReq); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if metaReq.Info == nil || len(metaReq.Files) == 0 {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	offered := make([]models.FileMeta, 0, len(metaReq.Files))
	for fileId, meta := range metaReq.Files {
		if fileId != meta.Id || meta.Size <= 0 || meta.Filename == "" {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		// filenames may be slash-relative to rebuild directory trees, but
		// must never reach outside the save directory
		if !filepath.IsLocal(filepath.FromSlash(meta.Filename)) {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		offered = append(offered, meta)
	}

	sender := *metaReq.Info
	sender.IP = fiberutils.CopyString(c.IP()) // strings in fiber are unsafe due to zero allocation

	ctx, cancel := context.WithTimeout(context.Background(), decisionTimeout)
	defer cancel()

	accepted, err := decideWithTimeout(ctx, fr.decider, sender, offered)
	if err != nil {
		slog.Info("Declined transfer", "remote", sender.IP, "alias", sender.Alias)
		return c.SendStatus(lserrors.Status(lserrors.ErrRejected))
	}
	if len(accepted) == 0 {
		// everything offered was skipped; nothing to transfer
		return c.SendStatus(lserrors.Status(lserrors.ErrNothingAccepted))
	}

	// sender carries the remote IP, so the session is complete before it
	// is published and the first upload can race in safely
	sess, err := fr.sessman.Register(fr.saveToDir, sender, accepted)
	if err != nil {
		slog.Error("preupload error", "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	slog.Info("Accepting files", "remote", sender.IP, "session", sess.Id,
		"accepted", len(accepted), "offered", len(offered))

	return c.JSON(&models.PreUploadResp{
		SessionId: sess.Id,
		Tokens:    sess.Tokens(),
	})
}

func (fr *FileReceiver) uploadHandler(c *fiber.Ctx) error {
	sessionId := c.Query("sessionId")
	fileId := c.Query("fileId")
	token := c.Query("token")

	if sessionId == "" || fileId == "" || token == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	sess, err := fr.sessman.Get(sessionId)
	if err != nil {
		return c.SendStatus(lserrors.Status(err))
	}

	err = sess.SaveFile(fileId, token, c.Context().RequestBodyStream())
	if err != nil {
		slog.Error("Upload error", "remote", sess.Sender.IP, "session", sessionId,
			"fileId", fileId, "error", err)
		return c.SendStatus(lserrors.Status(err))
	}

	return c.SendStatus(fiber.StatusOK)
}

func (fr *FileReceiver) cancelHandler(c *fiber.Ctx) error {
	sessionId := c.Query("sessionId")
	if sessionId == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	// cancelling an unknown or already-terminal session is a no-op success
	fr.sessman.Cancel(sessionId)
	return c.SendStatus(fiber.StatusOK)
}

func (fr *FileReceiver) infoHandler(c *fiber.Ctx) error {
	return c.JSON(&fr.devInfo)
}
