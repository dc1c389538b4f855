package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticWatcherReplaysPeers(t *testing.T) {
	peers := []ServiceInfo{
		{Hostname: "a.local", Addrs: []net.IP{net.ParseIP("10.0.0.1")}, Port: 60102},
		{Hostname: "b.local", Addrs: []net.IP{net.ParseIP("10.0.0.2")}, Port: 60103},
	}

	w := NewStaticWatcher(peers, time.Millisecond)
	defer w.Close()

	var got []ServiceInfo
	for info := range w.Services() {
		got = append(got, info)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "a.local", got[0].Hostname)
	assert.Equal(t, "b.local", got[1].Hostname)
}

func TestStaticWatcherCloseStopsEarly(t *testing.T) {
	peers := []ServiceInfo{
		{Hostname: "a.local", Port: 1},
		{Hostname: "b.local", Port: 2},
		{Hostname: "c.local", Port: 3},
	}

	w := NewStaticWatcher(peers, time.Hour)
	<-w.Services()
	require.NoError(t, w.Close())

	_, ok := <-w.Services()
	assert.False(t, ok, "channel should be drained and closed after Close")
}
