// Package serialtest provides a scripted in-memory serial port for tests.
package serialtest

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// ErrPortClosed is returned by reads and writes on a closed FakePort.
var ErrPortClosed = errors.New("serialtest: port closed")

// FakePort is an in-memory serial port. Reads drain the bytes queued with Feed or
// produced by responders; an empty queue reads as (0, io.EOF), which is how a real port
// reports a read timeout. Each Read returns at most one line.
type FakePort struct {
	mu         sync.Mutex
	in         bytes.Buffer
	written    bytes.Buffer
	pending    []byte
	responders []responder
	closed     bool
	readErr    error
	writeErr   error

	Device      string
	BaudRate    int
	ReadTimeout time.Duration
}

type responder struct {
	request string
	reply   func() string
}

// New returns a FakePort with data already queued for reading.
func New(data ...string) *FakePort {
	p := &FakePort{}
	p.Feed(data...)

	return p
}

// Open satisfies the serial Opener signature and records the open parameters.
func (p *FakePort) Open(device string, baudRate int, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Device = device
	p.BaudRate = baudRate
	p.ReadTimeout = readTimeout

	return p, nil
}

// Feed queues data for reading.
func (p *FakePort) Feed(data ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, d := range data {
		p.in.WriteString(d)
	}
}

// Respond queues reply every time request is written as a complete line. request is
// matched without its newline.
func (p *FakePort) Respond(request string, reply string) {
	p.RespondFunc(request, func() string { return reply })
}

// RespondFunc is Respond with a computed reply.
func (p *FakePort) RespondFunc(request string, reply func() string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.responders = append(p.responders, responder{request: request, reply: reply})
}

// FailReads makes every following read fail with err. A nil err clears the failure.
func (p *FakePort) FailReads(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.readErr = err
}

// FailWrites makes every following write fail with err. A nil err clears the failure.
func (p *FakePort) FailWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.writeErr = err
}

func (p *FakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	if p.readErr != nil {
		return 0, p.readErr
	}
	if p.in.Len() == 0 {
		return 0, io.EOF
	}

	data := p.in.Bytes()
	if i := bytes.IndexByte(data, '\n'); i >= 0 && i+1 < len(b) {
		b = b[:i+1]
	}

	return p.in.Read(b)
}

func (p *FakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}

	p.written.Write(b)
	p.pending = append(p.pending, b...)
	for {
		i := bytes.IndexByte(p.pending, '\n')
		if i < 0 {
			break
		}
		line := string(p.pending[:i])
		p.pending = p.pending[i+1:]
		for _, r := range p.responders {
			if r.request == line {
				p.in.WriteString(r.reply())
				break
			}
		}
	}

	return len(b), nil
}

func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true

	return nil
}

// Closed reports whether Close was called.
func (p *FakePort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

// Written returns every byte written so far.
func (p *FakePort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return bytes.Clone(p.written.Bytes())
}

// Lines returns the complete lines written so far, without newlines.
func (p *FakePort) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.written.String()
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	} else {
		return nil
	}

	return strings.Split(s, "\n")
}

// Unread returns the number of queued bytes not read yet.
func (p *FakePort) Unread() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.in.Len()
}
