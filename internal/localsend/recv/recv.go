package recv

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/zpp0196/localsend-go/internal/crypto"
	"github.com/zpp0196/localsend-go/internal/localsend"
	"github.com/zpp0196/localsend-go/internal/localsend/constants"
	"github.com/zpp0196/localsend-go/internal/localsend/session"
	lsutils "github.com/zpp0196/localsend-go/internal/localsend/utils"
	"github.com/zpp0196/localsend-go/internal/models"
	"github.com/gofiber/fiber/v2"
)

// decisionTimeout bounds how long a prepare-upload request is held open
// waiting for an interactive accept/reject.
const decisionTimeout = 30 * time.Second

// FileReceiver exposes the negotiation, upload and cancel endpoints and
// advertises this device while listening.
type FileReceiver struct {
	identity    *crypto.Identity
	devInfo     models.DeviceInfo
	webServer   *fiber.App
	registry    *localsend.Registry
	discoverier *localsend.Discoverier
	sessman     *session.Manager
	decider     Decider
	saveToDir   string
	expectedPin string
}

// NewFileReceiver wires a receiver around the given identity. The decider
// defaults to quick-save into saveToDir; SetDecider swaps in an interactive
// one.
func NewFileReceiver(devname string, saveToDir string, identity *crypto.Identity) *FileReceiver {
	return &FileReceiver{
		identity:  identity,
		devInfo:   models.NewDeviceInfo(devname, identity.Fingerprint()),
		webServer: lsutils.NewWebServer(),
		registry:  localsend.NewRegistry(),
		sessman:   session.NewManager(),
		decider:   QuickSave{SaveDir: saveToDir},
		saveToDir: saveToDir,
	}
}

func (fr *FileReceiver) SetPIN(pin string) {
	fr.expectedPin = pin
}

func (fr *FileReceiver) SetDecider(d Decider) {
	fr.decider = d
}

// OnSessionFinished registers an observer for terminal sessions, e.g. the
// transfer history store.
func (fr *FileReceiver) OnSessionFinished(fn func(*session.Session)) {
	fr.sessman.OnFinished = fn
}

// Registry exposes the peers discovered while receiving.
func (fr *FileReceiver) Registry() *localsend.Registry {
	return fr.registry
}

func (fr *FileReceiver) Init() error {
	var err error

	fr.discoverier, err = localsend.NewDiscoverier(fr.devInfo, fr.registry, fr.identity.HTTPS())
	return err
}

func (fr *FileReceiver) registerRoutes() {
	server := fr.webServer
	server.Post(constants.PreuploadPath, fr.preUploadHandler)
	server.Post(constants.UploadPath, fr.uploadHandler)
	server.Post(constants.CancelPath, fr.cancelHandler)
	server.Get(constants.InfoPath, fr.infoHandler)
}

// Start serves on the protocol port until Stop; it also runs discovery and
// session vacuuming.
func (fr *FileReceiver) Start() error {
	fr.registerRoutes()
	fr.sessman.Start()
	go fr.advertise() // let others know we are here

	addr := fmt.Sprintf("0.0.0.0:%d", constants.DefaultPort)
	if fr.identity.HTTPS() {
		cert, err := fr.identity.Certificate()
		if err != nil {
			return err
		}
		return fr.webServer.ListenTLSWithCertificate(addr, cert)
	}

	slog.Warn("Serving plain HTTP; peer identity cannot be verified")
	return fr.webServer.Listen(addr)
}

// Serve accepts transfers on a caller-provided listener, without
// advertising. Useful for embedding and non-standard ports.
func (fr *FileReceiver) Serve(ln net.Listener) error {
	fr.registerRoutes()
	fr.sessman.Start()
	return fr.webServer.Listener(ln)
}

func (fr *FileReceiver) advertise() {
	if err := fr.discoverier.Listen(); err != nil {
		slog.Error("Discovery stopped", "error", err)
	}
}

func (fr *FileReceiver) Stop() error {
	slog.Info("Stop receiving")

	if fr.discoverier != nil {
		fr.discoverier.Shutdown()
	}
	fr.sessman.Stop()
	return fr.webServer.Shutdown()
}
