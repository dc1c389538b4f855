//////////////////////////////////////////////////////////////////////////////
//
// discovery exposes the peer-discovery collaborator spec.md §6 names as
// external: a Watcher streams ServiceInfo records for other eyespy hosts
// advertising the "_eye-spy._tcp.local." mDNS service. The core protocol
// never performs discovery itself; cmd/eyespyd wires a concrete Watcher.
//
//////////////////////////////////////////////////////////////////////////////

package discovery

import (
	"net"

	"github.com/kaimana/eyespy/internal/logging"
)

var log = logging.DefaultLogger.WithTag("discovery")

// ServiceName is the mDNS service type eyespy hosts advertise themselves
// under, grounded on original_source's mdns.rs SERVICE_NAME constant.
const ServiceName = "_eye-spy._tcp.local."

// ServiceInfo describes one discovered peer, resolved enough to dial its
// SCP port directly.
type ServiceInfo struct {
	Hostname string
	Addrs    []net.IP
	Port     uint16
}

// Watcher streams ServiceInfo records for peers as they're discovered.
// Implementations close the channel when Close is called.
type Watcher interface {
	Services() <-chan ServiceInfo
	Close() error
}
