//////////////////////////////////////////////////////////////////////////////
//
// Listener is the single worker that owns the SCP TCP listener and drives
// the negotiation state machine described in spec.md §4.6. It is both
// server (accepting a peer's Start) and client (dialing out on
// AttemptConnection) over the lifetime of one connection attempt.
//
// Grounded on the original Rust ScpListener
// (original_source/src/scp-client/src/scp_listener.rs) for state
// transitions, and on the teacher's internal/media/loop.go singletonLoop
// for the "run until quit channel closes" worker lifecycle shape.
//
//////////////////////////////////////////////////////////////////////////////

package scp

import (
	"io"
	"net"
	"strconv"
	"time"

	"github.com/kaimana/eyespy/internal/logging"
)

var log = logging.DefaultLogger.WithTag("scp")

const (
	tcpDialTimeout = 1 * time.Second
	tickMinPeriod  = 30 * time.Millisecond
	acceptDeadline = 20 * time.Millisecond
)

// Listener owns the TCP listener and the negotiation state machine.
type Listener struct {
	actions *actionSlot
	events  *eventSlot

	listener  *net.TCPListener
	localPort uint16

	preferences Preferences

	state             ConnectionState
	communicatingWith *net.TCPAddr
	gotPreferences    *Preferences
}

// NewListener binds the TCP listener at preferences.PortSCP (0 meaning
// OS-chosen) and returns a Listener ready to Run. Binding failure is
// fatal (spec.md §7): the caller is expected to let this panic surface,
// matching the teacher's "inability to bind is a fatal condition"
// contract.
func NewListener(preferences Preferences) *Listener {
	addr := &net.TCPAddr{Port: int(preferences.PortSCP)}
	tcpListener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		panic("scp: cannot bind SCP listener on port " + strconv.Itoa(int(preferences.PortSCP)) + ": " + err.Error())
	}

	// The OS may have picked a different port when PortSCP was 0.
	preferences.PortSCP = uint16(tcpListener.Addr().(*net.TCPAddr).Port)

	l := &Listener{
		actions:     newActionSlot(),
		events:      newEventSlot(),
		listener:    tcpListener,
		localPort:   preferences.PortSCP,
		preferences: preferences,
		state:       Free,
	}
	return l
}

// LocalPort returns the actually-bound local SCP port.
func (l *Listener) LocalPort() uint16 {
	return l.localPort
}

// Dispatch publishes an action for the next tick to consume, overwriting
// any action that hasn't been picked up yet.
func (l *Listener) Dispatch(a Action) {
	l.actions.publish(a)
}

// WaitEvent blocks for up to timeout for the next event, or returns
// ok == false on timeout or after the worker has terminated.
func (l *Listener) WaitEvent(timeout time.Duration) (Event, bool) {
	return l.events.waitTimeout(timeout)
}

// PeekEvent reports the pending event, if any, without consuming it.
func (l *Listener) PeekEvent() (Event, bool) {
	return l.events.peek()
}

// Terminated reports whether the worker has shut down.
func (l *Listener) Terminated() bool {
	return l.events.isClosed()
}

// Run executes the event loop until a Terminate action is consumed. It is
// meant to be called in its own goroutine.
func (l *Listener) Run() {
	for {
		start := time.Now()

		if done := l.handleAction(); done {
			l.events.close()
			return
		}

		l.handleInboundConnection()

		if elapsed := time.Since(start); elapsed < tickMinPeriod {
			time.Sleep(tickMinPeriod - elapsed)
		}
	}
}

// handleAction consumes at most one pending action. It returns true when
// the worker should terminate.
func (l *Listener) handleAction() bool {
	action, ok := l.actions.take()
	if !ok {
		return false
	}

	switch action.Kind {
	case AttemptConnection:
		l.onAttemptConnection(action.Settings)
	case RefuseConnection:
		l.endConnection()
	case AcceptConnection:
		l.onAcceptConnection()
	case SetPassword, UnsetPassword:
		// Reserved: key exchange is not implemented (spec.md §9).
	case EndConnection:
		l.endConnection()
	case Terminate:
		l.endConnection()
		return true
	}
	return false
}

func (l *Listener) onAttemptConnection(settings ConnectionSettings) {
	if l.state == Connected {
		l.events.publish(Event{Kind: ConnectionFailed, Err: ErrAlreadyConnected})
		return
	}

	conn, err := net.DialTimeout("tcp", settings.Destination.String(), tcpDialTimeout)
	if err != nil {
		log.Warn("dial %s failed: %v", settings.Destination, err)
		l.events.publish(Event{Kind: ConnectionFailed, Err: ErrNotResponding})
		return
	}
	defer conn.Close()

	var portBody [2]byte
	le16(portBody[:], l.preferences.PortSCP)
	if err := writeMessage(conn, Start, portBody[:]); err != nil {
		log.Warn("send Start to %s failed: %v", settings.Destination, err)
		l.events.publish(Event{Kind: ConnectionFailed, Err: ErrNotResponding})
		return
	}

	l.communicatingWith = settings.Destination
	l.state = Handshake
}

// onAcceptConnection re-sends our Preferences and attempts to finalize.
// It is only meaningful when communicatingWith is already set from an
// inbound Start; since Start already triggers an automatic shareConfig
// (spec.md §4.6), this mostly serves callers that want an explicit,
// observable confirmation point, and covers the case where the peer's
// PreferencesShare arrived before the local Accept did.
func (l *Listener) onAcceptConnection() {
	if l.communicatingWith == nil {
		return
	}
	l.shareConfig()
	l.finalizeConnection()
}

// handleInboundConnection accepts at most one inbound TCP connection per
// tick. A non-peer IP while busy gets an immediate End and is dropped
// (spec.md §3 invariant, §8 property 7).
func (l *Listener) handleInboundConnection() {
	l.listener.SetDeadline(time.Now().Add(acceptDeadline))
	conn, err := l.listener.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	remote := conn.RemoteAddr().(*net.TCPAddr)

	if l.rejectsInbound(remote.IP) {
		writeMessage(conn, End, nil)
		return
	}

	raw, err := io.ReadAll(conn)
	if err != nil || len(raw) == 0 {
		return
	}

	msg, err := Parse(raw)
	if err != nil {
		// Parse errors are dropped silently; the connection is not torn
		// down (spec.md §4.6, §7).
		log.Debug("dropping unparseable SCP message from %s: %v", remote, err)
		return
	}

	l.handleMessage(msg, remote)
}

// rejectsInbound reports whether an inbound connection from remoteIP
// should be dropped because this listener is busy negotiating with a
// different peer (spec.md §8 property 7).
func (l *Listener) rejectsInbound(remoteIP net.IP) bool {
	return l.state != Free && l.communicatingWith != nil && !l.communicatingWith.IP.Equal(remoteIP)
}

func (l *Listener) handleMessage(msg Message, remote *net.TCPAddr) {
	switch msg.Command {
	case Start:
		l.onStart(msg, remote)
	case PreferencesShare:
		l.onPreferencesShare(msg)
	case Ready:
		l.finalizeConnection()
	case End:
		l.notifyConnectionEnd()
	case OwnKeyRequired, ReqGenerateKey, AckGenerateKey, KeyShare, SimpleMessage:
		// Defined on the wire but not implemented (spec.md §9): parsed,
		// then ignored.
	}
}

// onStart records the caller as our counterparty, immediately shares our
// own Preferences in response, and surfaces a ConnectionIncoming event
// for the host to observe (spec.md §4.6's Free→ConfigShared transition).
func (l *Listener) onStart(msg Message, remote *net.TCPAddr) {
	if l.state != Free {
		l.endConnection()
	}

	if len(msg.Body) < 2 {
		return
	}
	port := le16ToPort(msg.Body)
	peer := &net.TCPAddr{IP: remote.IP, Port: int(port)}

	l.communicatingWith = peer
	l.events.publish(Event{Kind: ConnectionIncoming, PeerIP: peer.IP})
	l.shareConfig()
}

// onPreferencesShare stores the peer's Preferences and advances the
// handshake (spec.md §4.6 state transitions):
//   - Handshake (we dialed, haven't shared ours yet): share ours, move on.
//   - ConfigShared (we already shared ours): send Ready, move to Awaiting.
//   - Awaiting (peer re-sent while we wait): finalize directly.
func (l *Listener) onPreferencesShare(msg Message) {
	prefs, err := UnmarshalPreferences(msg.Body)
	if err != nil {
		l.endConnection()
		return
	}
	l.gotPreferences = &prefs

	switch l.state {
	case Handshake:
		l.shareConfig()
	case ConfigShared:
		if l.communicatingWith != nil {
			l.dialAndSend(l.communicatingWith, Ready, nil)
		}
		l.state = Awaiting
	case Awaiting:
		l.finalizeConnection()
	}
}

// shareConfig sends our Preferences to the current peer and advances to
// ConfigShared.
func (l *Listener) shareConfig() {
	if l.communicatingWith == nil {
		return
	}
	l.dialAndSend(l.communicatingWith, PreferencesShare, l.preferences.Marshal())
	l.state = ConfigShared
}

// finalizeConnection publishes ConnectionEstablished and transitions to
// Connected. It is a no-op if already Connected, so a duplicate Ready
// delivery can't emit a second event.
func (l *Listener) finalizeConnection() {
	if l.state == Connected || l.communicatingWith == nil || l.gotPreferences == nil {
		return
	}
	l.events.publish(Event{
		Kind: ConnectionEstablished,
		Session: SessionConfig{
			PeerIP:       l.communicatingWith.IP,
			StreamConfig: *l.gotPreferences,
		},
	})
	l.state = Connected
}

// endConnection sends an End to the current peer, if any, and returns to
// Free without waiting for acknowledgement (best-effort).
func (l *Listener) endConnection() {
	if l.communicatingWith != nil {
		l.dialAndSend(l.communicatingWith, End, nil)
	}
	l.notifyConnectionEnd()
}

func (l *Listener) notifyConnectionEnd() {
	l.events.publish(Event{Kind: ConnectionEnd})
	l.communicatingWith = nil
	l.gotPreferences = nil
	l.state = Free
}

// dialAndSend opens a short-lived TCP connection to addr and writes one
// SCP message, matching the "single message per connection" wire contract
// (spec.md §6). Errors are logged and otherwise ignored: SCP delivery is
// best-effort at this layer, matching the original's own tolerance of
// dial failures when tearing down.
func (l *Listener) dialAndSend(addr *net.TCPAddr, command Command, body []byte) {
	conn, err := net.DialTimeout("tcp", addr.String(), tcpDialTimeout)
	if err != nil {
		log.Warn("dial %s failed: %v", addr, err)
		return
	}
	defer conn.Close()

	if err := writeMessage(conn, command, body); err != nil {
		log.Warn("send %s to %s failed: %v", command, addr, err)
	}
}

func writeMessage(w io.Writer, command Command, body []byte) error {
	wire, err := Serialize(command, body)
	if err != nil {
		return err
	}
	_, err = w.Write(wire)
	return err
}

func le16(dst []byte, v uint16) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
}

func le16ToPort(body []byte) uint16 {
	return uint16(body[0]) | uint16(body[1])<<8
}
