//////////////////////////////////////////////////////////////////////////////
//
// Package eyespy wires the SCP control channel (internal/scp) to the two
// H.264 UDP stream workers (internal/video) behind a single Session type.
// This is the "glue" spec.md §9 leaves to "the hosting application": the
// distilled spec stops at the SCP Client Facade and the two stream worker
// contracts in isolation, but a complete call runs both at once, started
// and stopped in lockstep with ConnectionEstablished/ConnectionEnd events.
//
// Grounded on the teacher's top-level alohartc.go: a package-root type
// (PeerConnection there, Session here) that owns a control-plane handle
// and the media pipeline(s) it drives, exposing a small blocking/callback
// surface instead of leaking the control protocol's own Action/Event
// vocabulary to callers.
//
//////////////////////////////////////////////////////////////////////////////

package eyespy

import (
	"net"

	"github.com/pkg/errors"

	"github.com/kaimana/eyespy/internal/logging"
	"github.com/kaimana/eyespy/internal/scp"
	"github.com/kaimana/eyespy/internal/video"
)

var log = logging.DefaultLogger.WithTag("session")

// Config parameterizes a Session: which camera device to capture from and
// which SCP preferences (ports, codec) to negotiate with.
type Config struct {
	DevicePath  string
	Preferences scp.Preferences
}

// DefaultConfig returns a Config using the default camera device and
// spec.md §3's default Preferences.
func DefaultConfig() Config {
	return Config{
		DevicePath:  "",
		Preferences: scp.DefaultPreferences(),
	}
}

// Session owns one SCP Client and the outgoing/incoming video workers it
// drives. Exactly one peer connection is active at a time, matching SCP's
// own single-connection state machine (spec.md §3).
type Session struct {
	cfg Config

	scp *scp.Client
	out *video.OutgoingWorker
	in  *video.IncomingWorker

	events chan Event
	done   chan struct{}
}

// EventKind mirrors scp.EventKind for callers that don't want to import
// internal/scp directly.
type EventKind = scp.EventKind

const (
	PeerConnected    = scp.ConnectionEstablished
	PeerFailed       = scp.ConnectionFailed
	PeerIncoming     = scp.ConnectionIncoming
	PeerDisconnected = scp.ConnectionEnd
)

// Event is re-exported from internal/scp so callers only need this
// package's import.
type Event = scp.Event

// Open starts the SCP listener and the two video workers (bound but
// idle) and returns a running Session.
func Open(cfg Config) (*Session, error) {
	// The outgoing worker sends from an OS-chosen ephemeral port; only the
	// incoming worker's port is fixed and negotiated (spec.md §3's
	// PortInVideo), matching original_source's own split between an
	// arbitrary outbound socket and a well-known inbound one.
	out, err := video.NewOutgoingWorker(&net.UDPAddr{}, cfg.DevicePath)
	if err != nil {
		return nil, errors.Wrap(err, "eyespy: open outgoing video socket")
	}
	go out.Run()

	in, err := video.NewIncomingWorker(&net.UDPAddr{Port: int(cfg.Preferences.PortInVideo)})
	if err != nil {
		out.Terminate()
		return nil, errors.Wrap(err, "eyespy: open incoming video socket")
	}
	go in.Run()

	s := &Session{
		cfg:    cfg,
		scp:    scp.NewClient(cfg.Preferences),
		out:    out,
		in:     in,
		events: make(chan Event, 8),
		done:   make(chan struct{}),
	}

	go s.pump()

	return s, nil
}

// LocalPort returns the bound SCP control port.
func (s *Session) LocalPort() uint16 {
	return s.scp.LocalPort()
}

// Call attempts to connect to a peer's SCP port, and on success starts
// streaming video in both directions.
func (s *Session) Call(dest *net.TCPAddr) (scp.SessionConfig, error) {
	session, err := s.scp.RequestChat(dest)
	if err != nil {
		return scp.SessionConfig{}, err
	}
	s.startStreaming(session)
	return session, nil
}

// Accept accepts a pending incoming SCP connection and starts streaming.
func (s *Session) Accept() (scp.SessionConfig, error) {
	session, err := s.scp.AcceptIncomingConnection()
	if err != nil {
		return scp.SessionConfig{}, err
	}
	s.startStreaming(session)
	return session, nil
}

// Refuse declines a pending incoming SCP connection.
func (s *Session) Refuse() {
	s.scp.RefuseIncomingConnection()
}

// PendingPeer reports the IP of a peer currently attempting to connect,
// without committing to accept or refuse.
func (s *Session) PendingPeer() (net.IP, bool) {
	return s.scp.PendingPeer()
}

// Hangup ends the current call, stopping both stream workers.
func (s *Session) Hangup() {
	s.scp.EndConnection()
	s.stopStreaming()
}

// Frame returns a copy of the most recently decoded remote video frame
// (packed RGBA, video.FrameWidth x video.FrameHeight).
func (s *Session) Frame() []byte {
	return s.in.GetFrame()
}

// Receiving reports whether video is currently being received from a peer.
func (s *Session) Receiving() bool {
	return s.in.IsReceiving()
}

// Events returns a channel of SCP events (connection established/failed/
// incoming/end), re-exported so a caller can drive a UI loop without
// reaching into internal/scp.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Close tears down the SCP client and both video workers.
func (s *Session) Close() error {
	close(s.done)
	s.scp.Close()
	s.out.Terminate()
	s.in.Terminate()
	return nil
}

func (s *Session) startStreaming(session scp.SessionConfig) {
	videoAddr := &net.UDPAddr{
		IP:   session.PeerIP,
		Port: int(session.StreamConfig.PortInVideo),
	}
	s.out.Connect(videoAddr)
	s.in.Accept(videoAddr)
}

func (s *Session) stopStreaming() {
	s.out.Disconnect()
	s.in.Refuse()
}

// pump relays SCP events out to callers, additionally reacting to
// ConnectionEnd by stopping the stream workers (a peer-initiated hangup
// doesn't otherwise notify the video pipeline).
func (s *Session) pump() {
	scpEvents := s.scp.Events()
	for {
		select {
		case <-s.done:
			close(s.events)
			return
		case event, ok := <-scpEvents:
			if !ok {
				close(s.events)
				return
			}
			if event.Kind == scp.ConnectionEnd || event.Kind == scp.ConnectionFailed {
				s.stopStreaming()
			}
			select {
			case s.events <- event:
			default:
				log.Warn("event receiver too slow, dropping %v", event.Kind)
			}
		}
	}
}
