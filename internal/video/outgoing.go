//////////////////////////////////////////////////////////////////////////////
//
// OutgoingWorker drives the outgoing H.264 pipeline: load a signal, dispatch
// it, and if streaming and bound to a destination, pull one encoded
// bitstream from Capture, split it into NAL units, fragment each into
// bounded UDP datagrams, and send.
//
// Grounded on original_source's h264_stream.rs outgoing module
// (OutgoingH264StreamContext, ssignal constants, the 30ms signal+send tick
// loop) and on the signal-slot/destination-slot design spec.md §5 and §9
// call for (sync/atomic byte, mutex-guarded address). Worker start/stop
// follows the teacher's internal/media/loop.go singletonLoop shape, adapted
// to the single-owner case (see SPEC_FULL.md §5).
//
// See spec.md §4.4.
//
//////////////////////////////////////////////////////////////////////////////

package video

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kaimana/eyespy/internal/logging"
)

var outLog = log.WithTag("video-out")

type signal = uint32

const (
	signalNone signal = iota
	signalDisconnect
	signalPause
	signalResume
	signalConnect
	signalTerminate
)

// PacketDataSize is the maximum number of payload bytes per UDP fragment,
// excluding the trailing 4-byte LE identifier (spec.md §4.4).
const PacketDataSize = 504

// StreamControls is the non-blocking control surface spec.md §4.4 defines
// for the outgoing worker. *OutgoingWorker implements it directly.
type StreamControls interface {
	Connect(dest *net.UDPAddr)
	Disconnect()
	Pause()
	Unpause()
}

// capturer is the subset of *Capture the outgoing worker drives each tick.
// Factored out so tests can substitute a fake and exercise keyframe-on-
// connect and teardown without real camera/encoder hardware.
type capturer interface {
	ForceKeyFrame()
	NextEncoded() ([]byte, error)
	Close() error
}

// OutgoingWorker owns a UDP socket, a lazily-created capturer, and the
// signal/destination slots StreamControls publishes into.
type OutgoingWorker struct {
	conn *net.UDPConn

	devicePath  string
	capture     capturer
	openCapture func(devicePath string) (capturer, error)

	sig       atomic.Uint32
	destMu    sync.Mutex
	dest      *net.UDPAddr
	boundDest *net.UDPAddr
	bound     bool
	stream    bool
	stopped   chan struct{}

	// connLog is outLog with a "peer" field attached once bound, so
	// warnings logged mid-call are attributable to the connection that
	// produced them rather than the worker in general.
	connLog *logging.Logger
}

// NewOutgoingWorker binds a UDP socket at localAddr (port 0 meaning
// OS-chosen) and returns a worker ready to Run. The worker itself
// implements StreamControls.
func NewOutgoingWorker(localAddr *net.UDPAddr, devicePath string) (*OutgoingWorker, error) {
	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return nil, err
	}
	return &OutgoingWorker{
		conn:        conn,
		devicePath:  devicePath,
		stopped:     make(chan struct{}),
		connLog:     outLog,
		openCapture: openRealCapture,
	}, nil
}

// openRealCapture adapts OpenCapture to the capturer-returning shape
// OutgoingWorker.openCapture expects.
func openRealCapture(devicePath string) (capturer, error) {
	return OpenCapture(devicePath)
}

// LocalAddr returns the actually-bound local UDP address.
func (w *OutgoingWorker) LocalAddr() *net.UDPAddr {
	return w.conn.LocalAddr().(*net.UDPAddr)
}

// Connect publishes the CONNECT signal with dest as the destination
// (spec.md §4.4 StreamControls.connect). Non-blocking.
func (w *OutgoingWorker) Connect(dest *net.UDPAddr) {
	w.destMu.Lock()
	w.dest = dest
	w.destMu.Unlock()
	w.sig.Store(signalConnect)
}

// Disconnect publishes DISCONNECT. Non-blocking.
func (w *OutgoingWorker) Disconnect() {
	w.sig.Store(signalDisconnect)
}

// Pause publishes PAUSE. Non-blocking.
func (w *OutgoingWorker) Pause() {
	w.sig.Store(signalPause)
}

// Unpause publishes RESUME. Non-blocking.
func (w *OutgoingWorker) Unpause() {
	w.sig.Store(signalResume)
}

// Terminate publishes TERMINATE and blocks until the worker loop exits.
func (w *OutgoingWorker) Terminate() {
	w.sig.Store(signalTerminate)
	<-w.stopped
}

// Run executes the tick loop until TERMINATE is consumed. Meant to be
// called in its own goroutine.
func (w *OutgoingWorker) Run() {
	defer close(w.stopped)
	defer w.conn.Close()

	for {
		start := time.Now()

		if w.processSignal() {
			w.dropCapture()
			return
		}

		if w.stream && w.bound {
			w.sendOneTick()
		}

		if elapsed := time.Since(start); elapsed < tickPeriod {
			time.Sleep(tickPeriod - elapsed)
		}
	}
}

const tickPeriod = 30 * time.Millisecond

// processSignal consumes and dispatches the current signal. It returns true
// when the worker should terminate.
func (w *OutgoingWorker) processSignal() bool {
	s := w.sig.Load()
	handled := true

	switch s {
	case signalPause:
		w.stream = false
	case signalDisconnect, signalTerminate:
		w.dropCapture()
		w.bound = false
		w.stream = false
		w.connLog = outLog
		if s == signalTerminate {
			w.sig.Store(signalNone)
			return true
		}
	case signalConnect:
		w.destMu.Lock()
		dest := w.dest
		w.destMu.Unlock()
		if dest == nil {
			handled = false
			break
		}
		w.connLog = outLog.WithField("peer", dest)
		if w.capture == nil {
			cap, err := w.openCapture(w.devicePath)
			if err != nil {
				w.connLog.Warn("cannot open capture device: %v", err)
				return false
			}
			w.capture = cap
		}
		w.capture.ForceKeyFrame()
		w.boundDest = dest
		w.bound = true
		w.stream = true
	case signalResume:
		w.stream = true
	default:
		handled = false
	}

	if handled {
		w.sig.Store(signalNone)
	}
	return false
}

func (w *OutgoingWorker) dropCapture() {
	if w.capture != nil {
		w.capture.Close()
		w.capture = nil
	}
}

func (w *OutgoingWorker) sendOneTick() {
	encoded, err := w.capture.NextEncoded()
	if err != nil {
		w.connLog.Warn("capture/encode: %v", err)
		return
	}
	if len(encoded) == 0 {
		return
	}

	for _, unit := range splitNALUnits(encoded) {
		sendFragmented(w.conn, w.boundDest, unit)
	}
}

// sendFragmented splits unit into PacketDataSize chunks, each tagged with a
// 1-based LE-u32 index, followed by the FrameEnd terminator (spec.md §4.2,
// §4.4). Send errors are tolerated: UDP delivery is best-effort.
func sendFragmented(conn *net.UDPConn, dest *net.UDPAddr, unit []byte) {
	sent := 0
	for start := 0; start < len(unit); start += PacketDataSize {
		end := start + PacketDataSize
		if end > len(unit) {
			end = len(unit)
		}

		frame := make([]byte, end-start+4)
		copy(frame, unit[start:end])
		putLE32(frame[end-start:], uint32(sent+1))
		conn.WriteToUDP(frame, dest)
		sent++
	}
	conn.WriteToUDP(FrameEnd, dest)
}

func putLE32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}
