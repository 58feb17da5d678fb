package bus

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func init() {
	gob.Register(DeviceEvent{})
	gob.Register(OutputFound{})
	gob.Register(PageFlip{})
	gob.Register(SurfaceReady{})
	gob.Register(SurfaceDestroyed{})
	gob.Register(PointerMotion{})
	gob.Register(PointerPosition{})
	gob.Register(PointerButton{})
	gob.Register(PointerReset{})
	gob.Register(KeyboardInput{})
	gob.Register(KeyboardFocusChanged{})
	gob.Register(PointerFocusChanged{})
	gob.Register(SurfaceFrame{})
	gob.Register(SurfaceReconfigured{})
	gob.Register(Notify{})
}

// Bus is the process-wide broadcast of typed packages described in
// §4.1. It is backed by an embedded, in-process NATS server: every
// Package is published on a subject derived from its signal id, and
// every Receiver is a set of channel-backed subscriptions. Producers
// and receivers never open a real network socket — nats.InProcessServer
// dials the embedded server directly.
type Bus struct {
	srv *server.Server

	mu      sync.Mutex
	closed  bool
	ctlSeq  uint64
}

// New starts the embedded NATS server. DontListen keeps it off the
// network entirely; only in-process connections are possible.
func New() (*Bus, error) {
	srv, err := server.NewServer(&server.Options{
		DontListen: true,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded signal bus: %w", err)
	}
	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded signal bus did not become ready")
	}
	return &Bus{srv: srv}, nil
}

// Close shuts the embedded server down. Outstanding Receivers are not
// closed by it: they receive no further packages, and Recv returns Err
// only once the Receiver itself is closed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.srv.Shutdown()
	b.srv.WaitForShutdown()
}

func (b *Bus) connect() (*nats.Conn, error) {
	nc, err := nats.Connect("", nats.InProcessServer(b.srv), nats.Name("drift-signal-bus"))
	if err != nil {
		return nil, fmt.Errorf("connect to embedded signal bus: %w", err)
	}
	return nc, nil
}

func subjectFor(id SignalID) string {
	return fmt.Sprintf("drift.signal.%d", id)
}

// Publisher lets any thread post packages and special commands onto
// the bus without owning a Receiver.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher opens a connection usable only for Publish/PostSpecial.
func (b *Bus) NewPublisher() (*Publisher, error) {
	nc, err := b.connect()
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc}, nil
}

// Close releases the publisher's connection.
func (p *Publisher) Close() { p.nc.Close() }

// Publish broadcasts pkg to every Receiver subscribed to its signal id.
func (p *Publisher) Publish(pkg Package) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&pkg); err != nil {
		return fmt.Errorf("encode package: %w", err)
	}
	if err := p.nc.Publish(subjectFor(pkg.Signal()), buf.Bytes()); err != nil {
		return fmt.Errorf("publish signal %d: %w", pkg.Signal(), err)
	}
	return nil
}

// PostSpecial posts a Command (e.g. Terminate) to a specific
// Receiver's control subject.
func (p *Publisher) PostSpecial(controlSubject string, cmd Command) error {
	if err := p.nc.Publish(controlSubject, []byte{byte(cmd)}); err != nil {
		return fmt.Errorf("post special command: %w", err)
	}
	return nil
}

// Broadcast posts a Command to every receiver's control subject by
// using the shared wildcard control subject every Receiver also
// subscribes to.
func (p *Publisher) Broadcast(cmd Command) error {
	if err := p.nc.Publish(controlBroadcastSubject, []byte{byte(cmd)}); err != nil {
		return fmt.Errorf("broadcast special command: %w", err)
	}
	return nil
}

const controlBroadcastSubject = "drift.control.broadcast"
