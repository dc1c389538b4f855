//////////////////////////////////////////////////////////////////////////////
//
// Client is the Client Facade described in spec.md §4.7: a thin,
// synchronous-looking wrapper around the Listener's action/event slots,
// in the teacher's style of wrapping an internal worker loop with a small
// blocking API (see internal/media's *Track wrappers around Flow).
//
//////////////////////////////////////////////////////////////////////////////

package scp

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

const (
	requestChatTimeout = 5 * time.Second
	acceptTimeout      = 3 * time.Second
	eventPollTimeout   = 1 * time.Second
)

// Client is the caller-facing handle to a running Listener worker.
type Client struct {
	listener *Listener
}

// NewClient starts a Listener bound per preferences and returns a Client
// wrapping it. The worker runs until Close is called.
func NewClient(preferences Preferences) *Client {
	l := NewListener(preferences)
	go l.Run()
	return &Client{listener: l}
}

// LocalPort returns the SCP port actually bound.
func (c *Client) LocalPort() uint16 {
	return c.listener.LocalPort()
}

// RequestChat attempts to connect to dest and blocks (up to 5s) for the
// outcome, matching spec.md §4.7's RequestChat contract.
func (c *Client) RequestChat(dest *net.TCPAddr) (SessionConfig, error) {
	c.listener.Dispatch(Action{
		Kind:     AttemptConnection,
		Settings: ConnectionSettings{Destination: dest},
	})
	return c.awaitSession(requestChatTimeout)
}

// AcceptIncomingConnection accepts the currently pending incoming
// connection and blocks (up to 3s) for the session to finalize.
func (c *Client) AcceptIncomingConnection() (SessionConfig, error) {
	c.listener.Dispatch(Action{Kind: AcceptConnection})
	return c.awaitSession(acceptTimeout)
}

// RefuseIncomingConnection declines the currently pending incoming
// connection. It does not block for an outcome.
func (c *Client) RefuseIncomingConnection() {
	c.listener.Dispatch(Action{Kind: RefuseConnection})
}

// EndConnection tears down the current session, if any. Non-blocking.
func (c *Client) EndConnection() {
	c.listener.Dispatch(Action{Kind: EndConnection})
}

// PendingPeer reports the IP of a peer currently attempting to connect,
// without consuming the underlying event or blocking. This supplements
// spec.md §4.7 with a non-blocking peek so a caller can decide whether to
// prompt the user before committing to AcceptIncomingConnection's blocking
// wait (grounded on original_source's own non-blocking event check inside
// its UI polling loop).
func (c *Client) PendingPeer() (net.IP, bool) {
	event, ok := c.listener.PeekEvent()
	if !ok || event.Kind != ConnectionIncoming {
		return nil, false
	}
	return event.PeerIP, true
}

// Events returns a channel delivering Events as the worker produces them,
// one item per receive, for the lifetime of the Client. The underlying slot
// holds only the most recent unread event, so events published in quick
// succession can be coalesced, and an event taken by a concurrent
// RequestChat or AcceptIncomingConnection wait is not delivered here. The
// channel is closed when the underlying worker terminates.
func (c *Client) Events() <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			event, ok := c.listener.WaitEvent(eventPollTimeout)
			if !ok {
				if c.listener.Terminated() {
					return
				}
				continue
			}
			out <- event
		}
	}()
	return out
}

// Close terminates the worker. It does not block for the worker to fully
// exit.
func (c *Client) Close() error {
	c.listener.Dispatch(Action{Kind: Terminate})
	return nil
}

func (c *Client) awaitSession(timeout time.Duration) (SessionConfig, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return SessionConfig{}, errors.WithStack(ErrNotResponding)
		}
		event, ok := c.listener.WaitEvent(remaining)
		if !ok {
			return SessionConfig{}, errors.WithStack(ErrNotResponding)
		}
		switch event.Kind {
		case ConnectionEstablished:
			return event.Session, nil
		case ConnectionFailed:
			return SessionConfig{}, errors.WithStack(event.Err)
		case ConnectionEnd:
			return SessionConfig{}, errors.WithStack(ErrRefused)
		default:
			// ConnectionIncoming while we're waiting on our own outcome:
			// irrelevant to this call, keep waiting.
			continue
		}
	}
}
