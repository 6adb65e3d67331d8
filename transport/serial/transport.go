package serial

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/logger"
	"github.com/arloliu/go-robohal/transport"
)

// ErrClosed is returned by operations on a closed Transport.
var ErrClosed = errors.New("serial: transport closed")

const opRead = "serial: read"

// Transport owns one open serial port.
type Transport struct {
	device string
	cfg    *Config
	port   io.ReadWriteCloser

	mu      sync.Mutex
	conn    *Conn
	closed  bool
	metrics transport.Metrics
}

// Conn is the unlocked view of a Transport handed to Exchange callbacks. It must not be
// used after the callback returns.
type Conn struct {
	t *Transport
	r *bufio.Reader
}

// Open opens device with the given options. Open failures are errcode.Communication errors.
func Open(device string, opts ...Option) (*Transport, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, "serial: open", err, "invalid configuration for %s", device)
	}

	port, err := cfg.opener(device, cfg.baudRate, cfg.readTimeout)
	if err != nil {
		return nil, errcode.Wrap(errcode.Communication, "serial: open", err, "serial error opening %s: %v", device, err)
	}

	t := &Transport{
		device: device,
		cfg:    cfg,
		port:   port,
	}
	t.conn = &Conn{t: t, r: bufio.NewReader(port)}
	cfg.logger.Debug("serial: port opened", "device", device, "baud", cfg.baudRate, "timeout", cfg.readTimeout)

	return t, nil
}

// Device returns the device path the transport was opened on.
func (t *Transport) Device() string { return t.device }

// Logger returns the logger of the transport.
func (t *Transport) Logger() logger.Logger { return t.cfg.logger }

// Metrics returns the live counters of the transport.
func (t *Transport) Metrics() *transport.Metrics { return &t.metrics }

// Exchange runs fn with the transport locked. A nil return from fn counts as one
// completed exchange.
func (t *Transport) Exchange(fn func(c *Conn) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errcode.Wrap(errcode.Communication, "serial", ErrClosed, "%s is closed", t.device)
	}

	if err := fn(t.conn); err != nil {
		return err
	}
	t.metrics.IncExchange()

	return nil
}

// ReadLine is Conn.ReadLine under the transport lock.
func (t *Transport) ReadLine(allowEmpty bool) (line string, err error) {
	err = t.Exchange(func(c *Conn) error {
		line, err = c.ReadLine(allowEmpty)
		return err
	})

	return line, err
}

// ReadExact is Conn.ReadExact under the transport lock.
func (t *Transport) ReadExact(n int, allowEmpty bool) (data string, err error) {
	err = t.Exchange(func(c *Conn) error {
		data, err = c.ReadExact(n, allowEmpty)
		return err
	})

	return data, err
}

// Write is Conn.Write under the transport lock.
func (t *Transport) Write(b []byte) error {
	return t.Exchange(func(c *Conn) error { return c.Write(b) })
}

// WriteLine is Conn.WriteLine under the transport lock.
func (t *Transport) WriteLine(s string) error {
	return t.Exchange(func(c *Conn) error { return c.WriteLine(s) })
}

// Close closes the port. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	t.cfg.logger.Debug("serial: port closed", "device", t.device)

	return t.port.Close()
}

// ReadLine reads up to and including the next newline and returns the line without
// trailing whitespace.
//
// When nothing arrives before the read timeout, ReadLine returns "" if allowEmpty is
// set and a errcode.Communication error otherwise. A line cut off by the timeout is a
// errcode.Timeout error. Bytes that are not valid UTF-8 are a errcode.Protocol error,
// or are logged and dropped when allowEmpty is set.
func (c *Conn) ReadLine(allowEmpty bool) (string, error) {
	raw, err := c.r.ReadString('\n')
	c.t.metrics.AddBytesRead(len(raw))
	if err != nil {
		if !errors.Is(err, io.EOF) {
			c.t.metrics.IncError()
			return "", errcode.Wrap(errcode.Communication, opRead, err, "serial error: %v", err)
		}
		if raw == "" {
			return c.noResponse(allowEmpty)
		}
		c.t.metrics.IncTimeout()

		return "", errcode.New(errcode.Timeout, opRead, "timed out after a partial line %q", raw)
	}

	return c.decode(raw, allowEmpty)
}

// ReadExact reads exactly n bytes. Nothing at all is handled like ReadLine; fewer than
// n bytes is a errcode.Timeout error. Trailing whitespace is removed.
func (c *Conn) ReadExact(n int, allowEmpty bool) (string, error) {
	if n <= 0 {
		return "", errcode.New(errcode.InvalidParams, opRead, "cannot read %d bytes", n)
	}

	buf := make([]byte, n)
	got, err := c.readFull(buf)
	c.t.metrics.AddBytesRead(got)
	if err != nil {
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			c.t.metrics.IncError()
			return "", errcode.Wrap(errcode.Communication, opRead, err, "serial error: %v", err)
		}
		if got == 0 {
			return c.noResponse(allowEmpty)
		}
		c.t.metrics.IncTimeout()

		return "", errcode.New(errcode.Timeout, opRead, "expected to receive %d chars, got %d instead", n, got)
	}

	return c.decode(string(buf), allowEmpty)
}

// readFull is io.ReadFull that treats a read of zero bytes as the end of the timeout.
func (c *Conn) readFull(buf []byte) (int, error) {
	got := 0
	for got < len(buf) {
		n, err := c.r.Read(buf[got:])
		got += n
		if err != nil {
			if errors.Is(err, io.EOF) && got > 0 {
				return got, io.ErrUnexpectedEOF
			}
			return got, err
		}
		if n == 0 {
			if got == 0 {
				return 0, io.EOF
			}
			return got, io.ErrUnexpectedEOF
		}
	}

	return got, nil
}

func (c *Conn) noResponse(allowEmpty bool) (string, error) {
	if allowEmpty {
		return "", nil
	}
	c.t.metrics.IncTimeout()

	return "", errcode.New(errcode.Communication, opRead, "no response from board, is it correctly powered?")
}

func (c *Conn) decode(raw string, allowEmpty bool) (string, error) {
	if !utf8.ValidString(raw) {
		if allowEmpty {
			c.t.cfg.logger.Error("serial: dropping undecodable data", "device", c.t.device, "data", []byte(raw))
			return "", nil
		}
		c.t.metrics.IncError()

		return "", errcode.New(errcode.Protocol, opRead, "board returned invalid UTF-8: %q", raw)
	}

	return strings.TrimRightFunc(raw, isSpace), nil
}

// Write writes b to the port.
func (c *Conn) Write(b []byte) error {
	n, err := c.t.port.Write(b)
	c.t.metrics.AddBytesWritten(n)
	if err != nil {
		c.t.metrics.IncError()
		return errcode.Wrap(errcode.Communication, "serial: write", err, "serial error: %v", err)
	}
	if n != len(b) {
		c.t.metrics.IncError()
		return errcode.New(errcode.Communication, "serial: write", "short write, %d of %d bytes", n, len(b))
	}

	return nil
}

// WriteLine writes s followed by a newline.
func (c *Conn) WriteLine(s string) error {
	return c.Write([]byte(s + "\n"))
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n', '\v', '\f', 0:
		return true
	default:
		return false
	}
}
