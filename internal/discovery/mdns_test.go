package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/dns/dnsmessage"
)

func newTestWatcher() *MDNSWatcher {
	return &MDNSWatcher{
		out:     make(chan ServiceInfo, 4),
		pending: make(map[string]*partialService),
		seen:    make(map[string]bool),
	}
}

func buildAnswerMessage(t *testing.T, instance, host string, port uint16, ip net.IP) []byte {
	t.Helper()

	serviceName, err := dnsmessage.NewName(ServiceName)
	require.NoError(t, err)
	instanceName, err := dnsmessage.NewName(instance + ".")
	require.NoError(t, err)
	hostName, err := dnsmessage.NewName(host + ".")
	require.NoError(t, err)

	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{Response: true})
	b.EnableCompression()
	require.NoError(t, b.StartAnswers())

	require.NoError(t, b.PTRResource(
		dnsmessage.ResourceHeader{Name: serviceName, Class: dnsmessage.ClassINET, TTL: 120},
		dnsmessage.PTRResource{PTR: instanceName},
	))
	require.NoError(t, b.SRVResource(
		dnsmessage.ResourceHeader{Name: instanceName, Class: dnsmessage.ClassINET, TTL: 120},
		dnsmessage.SRVResource{Target: hostName, Port: port},
	))

	var a4 [4]byte
	copy(a4[:], ip.To4())
	require.NoError(t, b.AResource(
		dnsmessage.ResourceHeader{Name: hostName, Class: dnsmessage.ClassINET, TTL: 120},
		dnsmessage.AResource{A: a4},
	))

	msg, err := b.Finish()
	require.NoError(t, err)
	return msg
}

func TestMDNSWatcherResolvesServiceFromAnswers(t *testing.T) {
	w := newTestWatcher()

	msg := buildAnswerMessage(t, "peer-1._eye-spy._tcp.local", "peer-1.local", 60102, net.ParseIP("10.0.0.5"))
	w.handleMessage(msg)

	select {
	case info := <-w.out:
		assert.Equal(t, "peer-1.local", info.Hostname)
		assert.Equal(t, uint16(60102), info.Port)
		require.Len(t, info.Addrs, 1)
		assert.True(t, info.Addrs[0].Equal(net.ParseIP("10.0.0.5")))
	case <-time.After(time.Second):
		t.Fatal("expected a ServiceInfo to be emitted")
	}
}

func TestMDNSWatcherEmitsOncePerService(t *testing.T) {
	w := newTestWatcher()

	msg := buildAnswerMessage(t, "peer-1._eye-spy._tcp.local", "peer-1.local", 60102, net.ParseIP("10.0.0.5"))
	w.handleMessage(msg)
	<-w.out

	// A second identical A record (e.g. a duplicate multicast reply) must
	// not emit again.
	w.handleMessage(msg)
	select {
	case info := <-w.out:
		t.Fatalf("unexpected duplicate emission: %+v", info)
	case <-time.After(50 * time.Millisecond):
	}
}
