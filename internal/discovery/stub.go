package discovery

import "time"

// StaticWatcher implements Watcher by replaying a fixed peer list once,
// spaced out slightly to resemble real discovery latency. Useful for tests
// and for local two-host runs where mDNS multicast isn't reachable (e.g.
// across a NAT or in CI), per spec.md §1's treatment of discovery as an
// optional external collaborator.
type StaticWatcher struct {
	out  chan ServiceInfo
	done chan struct{}
}

// NewStaticWatcher starts emitting peers immediately, one every interval.
func NewStaticWatcher(peers []ServiceInfo, interval time.Duration) *StaticWatcher {
	w := &StaticWatcher{
		out:  make(chan ServiceInfo, len(peers)),
		done: make(chan struct{}),
	}

	go func() {
		defer close(w.out)
		for _, p := range peers {
			select {
			case w.out <- p:
			case <-w.done:
				return
			}
			select {
			case <-time.After(interval):
			case <-w.done:
				return
			}
		}
	}()

	return w
}

func (w *StaticWatcher) Services() <-chan ServiceInfo {
	return w.out
}

func (w *StaticWatcher) Close() error {
	close(w.done)
	return nil
}
