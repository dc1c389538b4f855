//////////////////////////////////////////////////////////////////////////////
//
// IncomingWorker drives the incoming H.264 pipeline: a UDP socket with a
// 100ms read timeout feeds datagrams to a Reassembler; each completed NAL
// unit is decoded into the shared RGBA frame slot.
//
// Grounded on original_source's h264_stream.rs incoming module
// (H264IncomingStreamControls, the CONNECT/DISCONNECT/TERMINATE signal
// handling, the 100ms recv timeout and 5s liveness threshold) and on
// Reassembler (internal/video/reassembler.go) for NAL reconstruction.
//
// See spec.md §4.5.
//
//////////////////////////////////////////////////////////////////////////////

package video

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kaimana/eyespy/internal/h264codec"
	"github.com/kaimana/eyespy/internal/logging"
)

var inLog = log.WithTag("video-in")

const (
	socketReadTimeout  = 100 * time.Millisecond
	connectionDeadline = 5 * time.Second
)

// IncomingStreamControls is the control surface spec.md §4.5 defines.
type IncomingStreamControls interface {
	Accept(addr *net.UDPAddr)
	Refuse()
	IsReceiving() bool
	GetFrame() []byte
}

// IncomingWorker owns the receive socket, the NAL reassembler, the decoder,
// and the shared RGBA frame slot.
type IncomingWorker struct {
	conn    *net.UDPConn
	decoder *h264codec.Decoder
	reasm   *Reassembler

	sig    atomic.Uint32
	destMu sync.Mutex
	dest   *net.UDPAddr

	connected atomic.Bool
	peer      atomic.Pointer[net.UDPAddr]

	frameMu sync.Mutex
	frame   []byte

	stopped chan struct{}

	// connLog is inLog with a "peer" field attached once a sender is
	// accepted, so decode warnings and liveness timeouts are attributable
	// to the connection that produced them.
	connLog *logging.Logger

	// livenessTimeout overrides connectionDeadline when non-zero, so tests
	// can exercise the no-packets teardown path (spec.md §8 property 9)
	// without waiting out the real 5s threshold.
	livenessTimeout time.Duration
}

// NewIncomingWorker binds the local UDP video port and returns a worker
// ready to Run.
func NewIncomingWorker(localAddr *net.UDPAddr) (*IncomingWorker, error) {
	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, err
	}

	dec, err := h264codec.NewDecoder(FrameWidth, FrameHeight)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &IncomingWorker{
		conn:    conn,
		decoder: dec,
		reasm:   NewReassembler(),
		frame:   make([]byte, FrameWidth*FrameHeight*4),
		stopped: make(chan struct{}),
		connLog: inLog,
	}, nil
}

// LocalAddr returns the actually-bound local UDP address.
func (w *IncomingWorker) LocalAddr() *net.UDPAddr {
	return w.conn.LocalAddr().(*net.UDPAddr)
}

// Accept publishes CONNECT with addr as the expected sender.
func (w *IncomingWorker) Accept(addr *net.UDPAddr) {
	w.destMu.Lock()
	w.dest = addr
	w.destMu.Unlock()
	w.sig.Store(signalConnect)
}

// Refuse publishes DISCONNECT.
func (w *IncomingWorker) Refuse() {
	w.sig.Store(signalDisconnect)
}

// IsReceiving reports whether a live connection is currently established.
func (w *IncomingWorker) IsReceiving() bool {
	return w.connected.Load()
}

// GetFrame returns a copy of the most recently decoded RGBA frame.
func (w *IncomingWorker) GetFrame() []byte {
	w.frameMu.Lock()
	defer w.frameMu.Unlock()
	return append([]byte(nil), w.frame...)
}

// Terminate publishes TERMINATE and blocks until the worker loop exits.
func (w *IncomingWorker) Terminate() {
	w.sig.Store(signalTerminate)
	<-w.stopped
}

// Run executes the receive loop until TERMINATE is consumed.
func (w *IncomingWorker) Run() {
	defer close(w.stopped)
	defer w.conn.Close()
	defer func() {
		if w.decoder != nil {
			w.decoder.Close()
		}
	}()

	lastPacketAt := time.Now()
	deadline := w.livenessTimeout
	if deadline == 0 {
		deadline = connectionDeadline
	}

	for {
		switch w.sig.Load() {
		case signalConnect:
			w.destMu.Lock()
			dest := w.dest
			w.destMu.Unlock()
			w.peer.Store(dest)
			w.connLog = inLog.WithField("peer", dest)
			w.reasm.reset()
			w.connected.Store(true)
			lastPacketAt = time.Now()
			w.sig.Store(signalNone)
		case signalDisconnect:
			w.connected.Store(false)
			w.connLog = inLog
			w.sig.Store(signalNone)
		case signalTerminate:
			return
		}

		if !w.connected.Load() {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		w.conn.SetReadDeadline(time.Now().Add(socketReadTimeout))
		buf := make([]byte, 2048)
		n, from, err := w.conn.ReadFromUDP(buf)
		if err != nil {
			if time.Since(lastPacketAt) > deadline {
				w.connLog.Warn("no packets in %s, dropping connection", deadline)
				w.connected.Store(false)
			}
			continue
		}

		if peer := w.peer.Load(); peer != nil && !peer.IP.Equal(from.IP) {
			continue
		}

		lastPacketAt = time.Now()
		w.reasm.AddData(buf[:n])

		unit, ok := w.reasm.TakeUnit()
		if !ok {
			continue
		}

		w.frameMu.Lock()
		if err := w.decoder.DecodeToRGBA(unit, w.frame); err != nil {
			w.connLog.Debug("decode dropped unit: %v", err)
		}
		w.frameMu.Unlock()
	}
}
