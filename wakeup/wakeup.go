// Package wakeup is the one-bit channel between the driver and the
// interferer: a wake notification addressed to a process id, a mailbox the
// notification handler flips, and cooperative sleep-poll loops over it.
package wakeup

import (
	"RC/utils"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Waker delivers a wake notification to a running peer.
type Waker interface {
	Wake(pid int) error
}

// SignalWaker wakes a peer process with SIGUSR1.
type SignalWaker struct{}

// Wake a vanished peer is reported as utils.ErrPeerLost; both peers are
// expected to stay alive for the whole run.
func (SignalWaker) Wake(pid int) error {
	err := unix.Kill(pid, unix.SIGUSR1)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("%w: pid %d", utils.ErrPeerLost, pid)
	}
	return fmt.Errorf("waking pid %d: %w", pid, err)
}

// Alive checks pid with signal 0.
func (SignalWaker) Alive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

// LocalWaker routes wake notifications to mailboxes of the same process,
// keyed by the identity each role was given.
type LocalWaker struct {
	mu    sync.Mutex
	boxes map[int]*Mailbox
}

func NewLocalWaker() *LocalWaker {
	return &LocalWaker{boxes: make(map[int]*Mailbox)}
}

func (w *LocalWaker) Register(pid int, mb *Mailbox) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.boxes[pid] = mb
}

func (w *LocalWaker) Wake(pid int) error {
	w.mu.Lock()
	mb, ok := w.boxes[pid]
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: pid %d", utils.ErrPeerLost, pid)
	}
	mb.Deliver()
	return nil
}

// Mailbox is the state the notification handler mutates. The driver arms it
// and waits for IsWaiting to turn false; the interferer counts deliveries
// as units of work.
type Mailbox struct {
	waiting   atomic.Bool
	pending   atomic.Int64
	delivered atomic.Int64
	notify    chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

func (m *Mailbox) Arm() {
	m.waiting.Store(true)
}

func (m *Mailbox) IsWaiting() bool {
	return m.waiting.Load()
}

// Deliver is the whole notification handler: it clears the waiting flag and
// queues one unit of work.
func (m *Mailbox) Deliver() {
	m.pending.Add(1)
	m.delivered.Add(1)
	m.waiting.Store(false)
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Notified fires after a delivery so suspend loops need not wait out their
// poll interval.
func (m *Mailbox) Notified() <-chan struct{} {
	return m.notify
}

// TakeWork consumes one pending unit, if any.
func (m *Mailbox) TakeWork() bool {
	for {
		n := m.pending.Load()
		if n == 0 {
			return false
		}
		if m.pending.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// Delivered counts every notification received so far.
func (m *Mailbox) Delivered() int64 {
	return m.delivered.Load()
}
