package localsend

import (
	"encoding/json"
	"net"
	"strconv"

	"github.com/zpp0196/localsend-go/internal/localsend/constants"
	lserrors "github.com/zpp0196/localsend-go/internal/localsend/errors"
	"github.com/zpp0196/localsend-go/internal/models"
	"github.com/gofiber/fiber/v2"
)

// GetDeviceInfo probes a peer's info endpoint directly, for targets picked
// by IP instead of via discovery.
func GetDeviceInfo(ip string, port int, https bool) (models.DeviceInfo, error) {
	remoteAddr := net.JoinHostPort(ip, strconv.Itoa(port))

	// Reuse stops Bytes from also releasing the agent; the deferred
	// ReleaseAgent is then the single release. Without it the agent is put
	// into the pool twice and gets shared by concurrent acquirers.
	agent := fiber.AcquireAgent().Reuse()
	defer fiber.ReleaseAgent(agent)

	scheme := "http"
	if https {
		scheme = "https"
	}

	req := agent.Request()
	req.URI().SetScheme(scheme)
	req.URI().SetHost(remoteAddr)
	req.URI().SetPath(constants.InfoPath)
	req.Header.SetMethod(fiber.MethodGet)
	err := agent.Parse()
	if err != nil {
		return models.DeviceInfo{}, err
	}

	status, b, errs := agent.InsecureSkipVerify().Bytes()
	if len(errs) != 0 {
		return models.DeviceInfo{}, lserrors.ErrUnreachable
	}
	err = lserrors.ParseError(status)
	if err != nil {
		return models.DeviceInfo{}, err
	}

	var res models.DeviceInfo
	err = json.Unmarshal(b, &res)
	if err != nil {
		return models.DeviceInfo{}, err
	}
	res.IP = ip

	return res, nil
}
