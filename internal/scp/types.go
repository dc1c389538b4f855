//////////////////////////////////////////////////////////////////////////////
//
// Actions, events, and session types shared between the SCP Listener and
// the Client Facade. See spec.md §3 (SessionConfig, Connection state) and
// §4.6–4.7 (Actions/Events).
//
//////////////////////////////////////////////////////////////////////////////

package scp

import (
	"fmt"
	"net"
)

// ConnectionState is the single enum every SCP worker advances through.
type ConnectionState int

const (
	Free ConnectionState = iota
	Handshake
	ConfigShared
	Awaiting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Free:
		return "Free"
	case Handshake:
		return "Handshake"
	case ConfigShared:
		return "ConfigShared"
	case Awaiting:
		return "Awaiting"
	case Connected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// SessionConfig is the negotiated outcome handed to the host after a
// successful session setup (spec.md §3).
type SessionConfig struct {
	PeerIP        net.IP
	EncryptionKey *string
	StreamConfig  Preferences
}

// Error is the session error taxonomy surfaced to Client Facade callers
// (spec.md §4.7).
type Error int

const (
	ErrNotResponding Error = iota
	ErrBusy
	ErrRefused
	ErrPasswordRequired
	ErrAlreadyConnected
)

func (e Error) Error() string {
	switch e {
	case ErrNotResponding:
		return "scp: peer not responding"
	case ErrBusy:
		return "scp: peer busy"
	case ErrRefused:
		return "scp: connection refused"
	case ErrPasswordRequired:
		return "scp: password required"
	case ErrAlreadyConnected:
		return "scp: already connected"
	default:
		return fmt.Sprintf("scp: unknown error (%d)", int(e))
	}
}

// EventKind discriminates the union carried by Event.
type EventKind int

const (
	ConnectionEstablished EventKind = iota
	ConnectionFailed
	ConnectionIncoming
	ConnectionEnd
)

// Event is emitted by the Listener to the Client Facade. Exactly one of
// the fields below is meaningful, selected by Kind.
type Event struct {
	Kind EventKind

	Session SessionConfig // ConnectionEstablished
	Err     Error         // ConnectionFailed
	PeerIP  net.IP        // ConnectionIncoming
}

// ActionKind discriminates the union carried by Action.
type ActionKind int

const (
	AttemptConnection ActionKind = iota
	RefuseConnection
	AcceptConnection
	SetPassword
	UnsetPassword
	EndConnection
	Terminate
)

// ConnectionSettings parameterizes an AttemptConnection action.
type ConnectionSettings struct {
	Destination *net.TCPAddr
	Password    string
}

// Action is published by the Client Facade and consumed by the Listener.
type Action struct {
	Kind ActionKind

	Settings ConnectionSettings // AttemptConnection
	Password string             // SetPassword
}
