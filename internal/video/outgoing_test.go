package video

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopbackUDP struct {
	local      *net.UDPConn
	remote     *net.UDPConn
	remoteAddr *net.UDPAddr
}

func newLoopbackUDP(t *testing.T) *loopbackUDP {
	t.Helper()

	local, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	remote, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})

	return &loopbackUDP{
		local:      local,
		remote:     remote,
		remoteAddr: remote.LocalAddr().(*net.UDPAddr),
	}
}

func (l *loopbackUDP) recv(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 2048)
	l.remote.SetReadDeadline(time.Now().Add(time.Second))
	n, err := l.remote.Read(buf)
	require.NoError(t, err)
	return append([]byte(nil), buf[:n]...)
}

func TestSendFragmentedSplitsAtPacketDataSize(t *testing.T) {
	unit := make([]byte, PacketDataSize+10)
	for i := range unit {
		unit[i] = byte(i)
	}

	conn := newLoopbackUDP(t)

	sendFragmented(conn.local, conn.remoteAddr, unit)

	first := conn.recv(t)
	assert.Equal(t, PacketDataSize+4, len(first))
	assert.Equal(t, uint32(1), le32(first[len(first)-4:]))

	second := conn.recv(t)
	assert.Equal(t, 10+4, len(second))
	assert.Equal(t, uint32(2), le32(second[len(second)-4:]))

	terminator := conn.recv(t)
	assert.Equal(t, FrameEnd, terminator)
}

func TestSendFragmentedEmptyUnitSendsOnlyTerminator(t *testing.T) {
	conn := newLoopbackUDP(t)

	sendFragmented(conn.local, conn.remoteAddr, nil)

	terminator := conn.recv(t)
	assert.Equal(t, FrameEnd, terminator)
}

func TestSplitNALUnitsStripsStartCodes(t *testing.T) {
	buf := []byte{0, 0, 0, 1, 0x67, 0xAA, 0, 0, 1, 0x68, 0xBB, 0xCC}
	units := splitNALUnits(buf)
	require.Len(t, units, 2)
	assert.Equal(t, []byte{0x67, 0xAA}, units[0])
	assert.Equal(t, []byte{0x68, 0xBB, 0xCC}, units[1])
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// fakeCapturer stands in for a real Capture so outgoing worker behavior
// can be tested without camera/encoder hardware.
type fakeCapturer struct {
	mu          sync.Mutex
	keyframed   bool
	unitAfterKF []byte
	closed      bool
}

func (f *fakeCapturer) ForceKeyFrame() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyframed = true
}

func (f *fakeCapturer) NextEncoded() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.keyframed {
		// An encoder that hasn't been force-keyframed yet would emit a
		// non-IDR unit; the worker calls ForceKeyFrame while processing
		// CONNECT, in the same tick before its first NextEncoded.
		return []byte{0, 0, 0, 1, 0x01}, nil
	}
	return f.unitAfterKF, nil
}

func (f *fakeCapturer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// newTestOutgoingWorker builds a worker bound to a loopback socket with
// openCapture stubbed to fake, so Run can be driven without v4l2/OpenH264.
func newTestOutgoingWorker(t *testing.T, fake *fakeCapturer) *OutgoingWorker {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &OutgoingWorker{
		conn:        conn,
		stopped:     make(chan struct{}),
		connLog:     outLog,
		openCapture: func(string) (capturer, error) { return fake, nil },
	}
}

// Keyframe on connect (spec.md §8 property 10): the first NAL unit the
// outgoing worker emits after connect is an IDR. The worker forces the
// keyframe while processing CONNECT, before that tick's NextEncoded; this
// test checks that processing CONNECT calls ForceKeyFrame on the capturer.
func TestOutgoingWorkerForcesKeyFrameOnConnect(t *testing.T) {
	fake := &fakeCapturer{unitAfterKF: []byte{0, 0, 0, 1, 0x65}}
	w := newTestOutgoingWorker(t, fake)
	go w.Run()
	t.Cleanup(w.Terminate)

	dest := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}
	w.Connect(dest)

	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.keyframed
	}, time.Second, time.Millisecond, "ForceKeyFrame must run once the CONNECT signal is processed")
}

// Teardown races (spec.md §8 property 11): terminating the outgoing
// worker while it owns an open capturer must close it and return
// promptly, never leaking the tick-loop goroutine.
func TestOutgoingWorkerTerminateClosesCaptureQuickly(t *testing.T) {
	fake := &fakeCapturer{unitAfterKF: []byte{0, 0, 0, 1, 0x65}}
	w := newTestOutgoingWorker(t, fake)
	go w.Run()

	w.Connect(&net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1})
	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.keyframed
	}, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Terminate()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Terminate took too long to return (spec.md §8 property 11 calls for 200ms)")
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.True(t, fake.closed, "Terminate must close the capturer")
}
