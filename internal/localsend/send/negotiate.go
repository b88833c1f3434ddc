package send

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/zpp0196/localsend-go/internal/crypto"
	"github.com/zpp0196/localsend-go/internal/localsend/constants"
	lserrors "github.com/zpp0196/localsend-go/internal/localsend/errors"
	"github.com/zpp0196/localsend-go/internal/models"
	"github.com/zpp0196/localsend-go/internal/utils"
	"github.com/gofiber/fiber/v2"
)

// negotiate POSTs the manifest to the target's prepare-upload endpoint and
// records the session id and the accepted file->token subset. Files omitted
// from the response were rejected by the receiver and are never uploaded.
func (fsp *Sender) negotiate() error {
	if fsp.https {
		// the announced fingerprint must match the certificate the peer
		// actually serves, otherwise the announcement was spoofed
		certs, err := utils.FetchX509Cert(net.JoinHostPort(fsp.remote.IP, strconv.Itoa(fsp.port)))
		if err != nil {
			return fmt.Errorf("%w: %v", lserrors.ErrUnreachable, err)
		}
		if len(certs) == 0 || !crypto.Verify(fsp.remote.Fingerprint, certs[0]) {
			return lserrors.ErrFingerprint
		}
	}

	// Reuse: Bytes must not also release the agent, or the deferred
	// ReleaseAgent double-puts it into the pool (see info.go)
	agent := fiber.AcquireAgent().Reuse()
	defer fiber.ReleaseAgent(agent)

	meta := models.PreUploadReq{
		Info:  fsp.local,
		Files: fsp.files,
	}

	req := agent.Request()
	fsp.prepareUri(req, constants.PreuploadPath)
	req.Header.SetMethod(fiber.MethodPost)
	if fsp.pin != "" {
		req.URI().QueryArgs().Add("pin", fsp.pin)
	}
	if err := agent.Parse(); err != nil {
		return err
	}

	status, b, errs := agent.InsecureSkipVerify().JSON(&meta).Bytes()
	if len(errs) != 0 {
		return fmt.Errorf("%w: %v", lserrors.ErrUnreachable, errs[0])
	}

	if err := lserrors.ParseError(status); err != nil {
		return err
	}

	var respMeta models.PreUploadResp
	if err := json.Unmarshal(b, &respMeta); err != nil {
		return lserrors.ErrInvalidBody
	}
	if len(respMeta.Tokens) == 0 {
		// the receiver kept the session but wants none of the files
		return lserrors.ErrNothingAccepted
	}

	fsp.session = respMeta.SessionId
	fsp.tokens = respMeta.Tokens

	return nil
}
