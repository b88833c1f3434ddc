package localsend

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/zpp0196/localsend-go/internal/localsend/constants"
	"github.com/zpp0196/localsend-go/internal/models"
	"golang.org/x/net/ipv4"
)

var multicastDiscoveryAddr = &net.UDPAddr{
	IP:   net.ParseIP(constants.MulticastGroup),
	Port: constants.DefaultPort,
}

// Discoverier periodically broadcasts this device's announcement over the
// multicast group and keeps the registry fed with everyone else's. Discovery
// is best-effort: malformed packets are dropped, send errors are retried on
// the next tick and never fatal.
type Discoverier struct {
	mcastConn *net.UDPConn
	selfAnno  *models.Announcement
	registry  *Registry
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewDiscoverier binds the multicast socket and joins the group on every
// running multicast-capable interface.
func NewDiscoverier(devInfo models.DeviceInfo, registry *Registry, supportHttps bool) (*Discoverier, error) {
	conn, err := net.ListenMulticastUDP("udp4", nil, multicastDiscoveryAddr)
	if err != nil {
		return nil, err
	}
	conn.SetReadBuffer(2048)

	joinAllInterfaces(conn)

	protocol := "http"
	if supportHttps {
		protocol = "https"
	}

	return &Discoverier{
		mcastConn: conn,
		selfAnno: &models.Announcement{
			DeviceInfo: devInfo,
			Port:       constants.DefaultPort,
			Protocol:   protocol,
			Announce:   true,
		},
		registry: registry,
		stop:     make(chan struct{}),
	}, nil
}

// joinAllInterfaces joins the discovery group on each eligible interface so
// announcements reach hosts regardless of the default multicast route.
func joinAllInterfaces(conn *net.UDPConn) {
	pc := ipv4.NewPacketConn(conn)
	group := &net.UDPAddr{IP: multicastDiscoveryAddr.IP}

	intfs, err := net.Interfaces()
	if err != nil {
		slog.Warn("Fail to enumerate interfaces", "error", err)
		return
	}

	for i := range intfs {
		intf := &intfs[i]
		if intf.Flags&net.FlagRunning == 0 || intf.Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := pc.JoinGroup(intf, group); err != nil {
			slog.Debug("Fail to join multicast group", "interface", intf.Name, "error", err)
		}
	}
	pc.SetMulticastTTL(4)
}

// Listen runs the announce ticker and the receive loop until Shutdown.
func (ma *Discoverier) Listen() error {
	ma.wg.Add(1)
	go ma.recvLoop()

	ticker := time.NewTicker(constants.AdvertiseInterval)
	defer ticker.Stop()

	ma.advertise()

	for {
		select {
		case <-ma.stop:
			ma.wg.Wait()
			return nil
		case <-ticker.C:
			err := ma.advertise()
			if err != nil {
				slog.Warn("Fail to send announcement", "error", err)
			}
		}
	}
}

func (ma *Discoverier) advertise() error {
	b, err := json.Marshal(ma.selfAnno)
	if err != nil {
		return err
	}

	_, err = ma.mcastConn.WriteToUDP(b, multicastDiscoveryAddr)
	return err
}

// reply unicasts a one-shot announcement (announce=false) straight back to
// a peer that just broadcast, so late joiners converge within one cycle.
func (ma *Discoverier) reply(to *net.UDPAddr) {
	anno := *ma.selfAnno
	anno.Announce = false

	b, err := json.Marshal(&anno)
	if err != nil {
		return
	}

	if _, err := ma.mcastConn.WriteToUDP(b, to); err != nil {
		slog.Debug("Fail to send discovery reply", "to", to.String(), "error", err)
	}
}

func (ma *Discoverier) recvLoop() {
	defer ma.wg.Done()

	buf := make([]byte, 2048)
	for {
		select {
		case <-ma.stop:
			return
		default:
		}

		ma.mcastConn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, remoteAddr, err := ma.mcastConn.ReadFromUDP(buf)
		if err != nil {
			continue
		}

		ma.handlePacket(buf[:n], remoteAddr)
	}
}

func (ma *Discoverier) handlePacket(pkt []byte, from *net.UDPAddr) {
	var anno models.Announcement
	if err := json.Unmarshal(pkt, &anno); err != nil {
		return // best-effort protocol, drop it
	}
	if anno.Fingerprint == "" || anno.Fingerprint == ma.selfAnno.Fingerprint {
		return // self announcement or garbage
	}

	fresh := ma.registry.Stale(anno.Fingerprint)
	ma.registry.Put(from.IP.To4().String(), anno)
	if fresh {
		slog.Debug("Discovered peer", "alias", anno.Alias, "ip", from.IP, "fingerprint", anno.Fingerprint)
	}

	if anno.Announce {
		ma.reply(from)
	}
}

func (ma *Discoverier) Shutdown() error {
	close(ma.stop)
	// closing unblocks any pending read so the loops can drain
	return ma.mcastConn.Close()
}
