package bus

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Kind tags which recv() variant an Envelope carries (§4.1).
type Kind int

const (
	KindDefined Kind = iota
	KindSpecial
	KindPlain
	KindCustom
	KindAny
	KindTimeout
	KindEmpty
	KindErr
)

// Command is a control-plane instruction delivered out of band from
// ordinary packages, e.g. Terminate.
type Command byte

const (
	CommandNone Command = iota
	CommandTerminate
)

// Envelope is the result of one Recv call.
type Envelope struct {
	Kind    Kind
	Signal  SignalID
	Package Package
	Command Command
	Err     error
}

// Receiver is owned by exactly one thread; it exposes a blocking recv
// that returns one of the variants enumerated in §4.1.
type Receiver struct {
	nc      *nats.Conn
	ch      chan *nats.Msg
	ctlCh   chan *nats.Msg
	subs    map[SignalID]*nats.Subscription
	ctlSub  *nats.Subscription
	ctlSub2 *nats.Subscription
	closed  bool
}

// NewReceiver opens a fresh connection and control-subject
// subscription for one thread.
func (b *Bus) NewReceiver() (*Receiver, error) {
	nc, err := b.connect()
	if err != nil {
		return nil, err
	}
	r := &Receiver{
		nc:    nc,
		ch:    make(chan *nats.Msg, 256),
		ctlCh: make(chan *nats.Msg, 16),
		subs:  make(map[SignalID]*nats.Subscription),
	}
	ctlSub, err := nc.ChanSubscribe(controlBroadcastSubject, r.ctlCh)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe control subject: %w", err)
	}
	r.ctlSub = ctlSub
	return r, nil
}

// ControlSubject returns the per-receiver subject a Publisher can use
// to target Special commands only at this receiver, in addition to
// the shared broadcast control subject every receiver listens on.
func (r *Receiver) ControlSubject() string {
	return fmt.Sprintf("drift.control.%p", r)
}

// subscribeOwnControl lazily subscribes the per-receiver control
// subject once a caller asks for it.
func (r *Receiver) subscribeOwnControl() error {
	if r.ctlSub2 != nil {
		return nil
	}
	sub, err := r.nc.ChanSubscribe(r.ControlSubject(), r.ctlCh)
	if err != nil {
		return fmt.Errorf("subscribe own control subject: %w", err)
	}
	r.ctlSub2 = sub
	return nil
}

// Subscribe adds signal id to the set this receiver listens for.
// Idempotent.
func (r *Receiver) Subscribe(id SignalID) error {
	if _, ok := r.subs[id]; ok {
		return nil
	}
	if err := r.subscribeOwnControl(); err != nil {
		return err
	}
	sub, err := r.nc.ChanSubscribe(subjectFor(id), r.ch)
	if err != nil {
		return fmt.Errorf("subscribe signal %d: %w", id, err)
	}
	r.subs[id] = sub
	return nil
}

// Close tears down every subscription and the underlying connection.
func (r *Receiver) Close() {
	if r.closed {
		return
	}
	r.closed = true
	for _, s := range r.subs {
		_ = s.Unsubscribe()
	}
	if r.ctlSub != nil {
		_ = r.ctlSub.Unsubscribe()
	}
	if r.ctlSub2 != nil {
		_ = r.ctlSub2.Unsubscribe()
	}
	r.nc.Close()
}

func decode(data []byte) (Package, error) {
	var pkg Package
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&pkg); err != nil {
		return nil, fmt.Errorf("decode package: %w", err)
	}
	return pkg, nil
}

// Recv blocks until a package or control command arrives, or timeout
// elapses. A zero timeout blocks indefinitely for packages/commands
// only (never returns KindTimeout) — event loops should pass a
// positive timeout so they can treat Timeout as a cooperative
// check-in point (§9 open question: Timeout is non-fatal).
func (r *Receiver) Recv(timeout time.Duration) Envelope {
	if r.closed {
		return Envelope{Kind: KindErr, Err: fmt.Errorf("receiver closed")}
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timeoutCh = time.After(timeout)
	}

	select {
	case msg, ok := <-r.ctlCh:
		if !ok {
			return Envelope{Kind: KindEmpty}
		}
		if len(msg.Data) == 0 {
			return Envelope{Kind: KindEmpty}
		}
		return Envelope{Kind: KindSpecial, Command: Command(msg.Data[0])}
	case msg, ok := <-r.ch:
		if !ok {
			return Envelope{Kind: KindEmpty}
		}
		pkg, err := decode(msg.Data)
		if err != nil {
			return Envelope{Kind: KindErr, Err: err}
		}
		return Envelope{Kind: KindDefined, Signal: pkg.Signal(), Package: pkg}
	case <-timeoutCh:
		return Envelope{Kind: KindTimeout}
	}
}
