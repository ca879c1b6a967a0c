// Package toast is a single-slot notification surface. A new message
// replaces the current one; there is no queue.
package toast

import (
	"strings"
	"sync"
	"time"
)

type State struct {
	Message string
	Visible bool
}

// Lead is the message without its last word, which the toast shows
// emphasised (the username in "You are now following bob").
func (s State) Lead() string {
	i := strings.LastIndexByte(s.Message, ' ')
	if i < 0 {
		return ""
	}
	return s.Message[:i]
}

// Subject is the last word of the message.
func (s State) Subject() string {
	return s.Message[strings.LastIndexByte(s.Message, ' ')+1:]
}

type Notifier struct {
	mu          sync.Mutex
	state       State
	gen         uint64
	timer       *time.Timer
	autoDismiss time.Duration

	subs    map[int]func(State)
	nextSub int
}

// NewNotifier returns a notifier that hides each message after autoDismiss.
// Zero keeps messages visible until Dismiss.
func NewNotifier(autoDismiss time.Duration) *Notifier {
	return &Notifier{
		autoDismiss: autoDismiss,
		subs:        make(map[int]func(State)),
	}
}

// Notify shows message, replacing whatever was shown.
func (n *Notifier) Notify(message string) {
	n.mu.Lock()
	n.gen++
	gen := n.gen
	n.state = State{Message: message, Visible: true}
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.autoDismiss > 0 {
		n.timer = time.AfterFunc(n.autoDismiss, func() {
			n.dismiss(gen)
		})
	}
	state := n.state
	n.mu.Unlock()

	n.publish(state)
}

// Dismiss hides the current message. The text is kept.
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	gen := n.gen
	n.mu.Unlock()

	n.dismiss(gen)
}

// dismiss hides the message shown at gen. A timer for an older message
// that fires after a newer Notify does nothing.
func (n *Notifier) dismiss(gen uint64) {
	n.mu.Lock()
	if gen != n.gen || !n.state.Visible {
		n.mu.Unlock()
		return
	}
	n.state.Visible = false
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	state := n.state
	n.mu.Unlock()

	n.publish(state)
}

func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Subscribe calls fn after every change. The returned function cancels the
// subscription.
func (n *Notifier) Subscribe(fn func(State)) func() {
	n.mu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *Notifier) publish(s State) {
	n.mu.Lock()
	fns := make([]func(State), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
