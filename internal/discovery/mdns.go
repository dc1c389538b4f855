//////////////////////////////////////////////////////////////////////////////
//
// MDNSWatcher browses the local network for _eye-spy._tcp.local. service
// announcements. Grounded on the teacher's internal/ice/mdns/client.go:
// same multicast-listen-and-parse shape (golang.org/x/net/ipv4 for
// loopback-enabled multicast, golang.org/x/net/dns/dnsmessage for message
// parsing), adapted from resolving a single ephemeral hostname to browsing
// an entire service type and emitting one ServiceInfo per PTR+SRV+A/AAAA
// set resolved.
//
//////////////////////////////////////////////////////////////////////////////

package discovery

import (
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/dns/dnsmessage"
	"golang.org/x/net/ipv4"
)

var mdnsGroupAddr = &net.UDPAddr{IP: net.ParseIP("224.0.0.251"), Port: 5353}

// MDNSWatcher implements Watcher by listening for mDNS traffic and
// correlating PTR/SRV/A records into ServiceInfo values.
type MDNSWatcher struct {
	conn *net.UDPConn
	out  chan ServiceInfo

	mu      sync.Mutex
	pending map[string]*partialService
	seen    map[string]bool

	closeOnce sync.Once
}

type partialService struct {
	hostname string
	port     uint16
	addrs    []net.IP
}

// NewMDNSWatcher joins the mDNS multicast group and sends one browse query
// for ServiceName. Discovered peers arrive on Services() as they resolve.
func NewMDNSWatcher() (*MDNSWatcher, error) {
	conn, err := net.ListenMulticastUDP("udp4", nil, mdnsGroupAddr)
	if err != nil {
		return nil, err
	}

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.SetMulticastLoopback(true); err != nil {
		conn.Close()
		return nil, err
	}

	w := &MDNSWatcher{
		conn:    conn,
		out:     make(chan ServiceInfo, 8),
		pending: make(map[string]*partialService),
		seen:    make(map[string]bool),
	}

	go w.readLoop()
	if err := w.sendQuery(); err != nil {
		log.Warn("mdns: initial query failed: %v", err)
	}

	return w, nil
}

// Services returns the channel of discovered peers.
func (w *MDNSWatcher) Services() <-chan ServiceInfo {
	return w.out
}

// Close stops browsing and releases the multicast socket.
func (w *MDNSWatcher) Close() error {
	w.closeOnce.Do(func() {
		w.conn.Close()
		close(w.out)
	})
	return nil
}

func (w *MDNSWatcher) sendQuery() error {
	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{ID: 0})
	b.EnableCompression()
	b.StartQuestions()
	name, err := dnsmessage.NewName(ServiceName)
	if err != nil {
		return err
	}
	if err := b.Question(dnsmessage.Question{
		Name:  name,
		Type:  dnsmessage.TypePTR,
		Class: dnsmessage.ClassINET,
	}); err != nil {
		return err
	}
	msg, err := b.Finish()
	if err != nil {
		return err
	}
	_, err = w.conn.WriteTo(msg, mdnsGroupAddr)
	return err
}

func (w *MDNSWatcher) readLoop() {
	buf := make([]byte, 1500)
	for {
		n, _, err := w.conn.ReadFromUDP(buf)
		if n > 0 {
			w.handleMessage(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (w *MDNSWatcher) handleMessage(msg []byte) {
	var p dnsmessage.Parser
	if _, err := p.Start(msg); err != nil {
		return
	}
	p.SkipAllQuestions()

	for {
		a, err := p.Answer()
		if err == dnsmessage.ErrSectionDone {
			break
		}
		if err != nil {
			return
		}
		w.handleAnswer(a)
	}
}

func (w *MDNSWatcher) handleAnswer(a dnsmessage.Resource) {
	name := strings.TrimSuffix(a.Header.Name.String(), ".")

	w.mu.Lock()
	defer w.mu.Unlock()

	switch body := a.Body.(type) {
	case *dnsmessage.PTRResource:
		instance := strings.TrimSuffix(body.PTR.String(), ".")
		if _, ok := w.pending[instance]; !ok {
			w.pending[instance] = &partialService{}
		}
	case *dnsmessage.SRVResource:
		svc := w.pending[name]
		if svc == nil {
			svc = &partialService{}
			w.pending[name] = svc
		}
		svc.hostname = strings.TrimSuffix(body.Target.String(), ".")
		svc.port = body.Port
	case *dnsmessage.AResource:
		w.attachAddr(name, net.IP(body.A[:]))
	case *dnsmessage.AAAAResource:
		w.attachAddr(name, net.IP(body.AAAA[:]))
	}
}

// attachAddr records ip against every pending service whose hostname
// matches the record's owner name, and emits a ServiceInfo once a service
// has both a port and at least one address.
func (w *MDNSWatcher) attachAddr(host string, ip net.IP) {
	for instance, svc := range w.pending {
		if svc.hostname != host {
			continue
		}
		svc.addrs = append(svc.addrs, ip)
		if svc.port == 0 || w.seen[instance] {
			continue
		}
		w.seen[instance] = true

		info := ServiceInfo{Hostname: svc.hostname, Addrs: svc.addrs, Port: svc.port}
		select {
		case w.out <- info:
		case <-time.After(time.Second):
			log.Warn("mdns: dropped service info for %s, receiver too slow", instance)
		}
	}
}
