package srv4

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/logger"
	"github.com/arloliu/go-robohal/transport/serial"
)

const (
	DefaultBanner      = "# Booted"
	DefaultBootRetries = serial.DefaultBannerRetries
)

// ErrFaulted is wrapped by every request on a faulted protocol.
var ErrFaulted = errors.New("srv4: protocol faulted")

// ResponseKind tells an acknowledgement from a data reply.
type ResponseKind int

const (
	Ack ResponseKind = iota
	Data
)

// Response is a successful reply. Data is empty for Ack.
type Response struct {
	Kind ResponseKind
	Data string
}

// IsAck reports whether the board acknowledged without data.
func (r Response) IsAck() bool { return r.Kind == Ack }

func (r Response) String() string {
	if r.Kind == Ack {
		return "ACK"
	}

	return r.Data
}

// Identity is the reply to *IDN?.
type Identity struct {
	Vendor          string
	Board           string
	AssetTag        string
	SoftwareVersion string
}

// Protocol speaks the line protocol over one serial transport.
type Protocol struct {
	t      *serial.Transport
	cfg    *config
	state  AtomicState
	logger logger.Logger

	version    Version
	versionRaw string

	faultMu sync.Mutex
	fault   error
}

type config struct {
	banner          string
	bootRetries     int
	requirement     Requirement
	identityVersion bool
	logger          logger.Logger
}

// Option is a functional option for configuring a Protocol.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithRequirement sets the firmware requirement checked during boot.
func WithRequirement(r Requirement) Option {
	return optFunc(func(cfg *config) error {
		if r.Hardware < 0 || r.MinMajor < 0 || r.MinMinor < 0 {
			return fmt.Errorf("srv4: invalid requirement %+v", r)
		}
		cfg.requirement = r

		return nil
	})
}

// WithBanner sets the line a booting board prints first. The default is DefaultBanner.
func WithBanner(banner string) Option {
	return optFunc(func(cfg *config) error {
		if banner == "" {
			return errors.New("srv4: banner must not be empty")
		}
		cfg.banner = banner

		return nil
	})
}

// WithBootRetries sets how many empty lines may precede the banner. The default is
// DefaultBootRetries.
func WithBootRetries(n int) Option {
	return optFunc(func(cfg *config) error {
		if n < 0 {
			return errors.New("srv4: boot retries must be >= 0")
		}
		cfg.bootRetries = n

		return nil
	})
}

// WithIdentityVersion skips the banner and takes the version from the software version
// field of *IDN?. Boards that do not print a banner when the port opens need it.
func WithIdentityVersion() Option {
	return optFunc(func(cfg *config) error {
		cfg.identityVersion = true
		return nil
	})
}

// WithLogger sets the logger of the protocol. The default is the transport's logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("srv4: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// New boots the protocol on t: handshake, then version check. A failed boot leaves the
// returned error as the cause; the transport stays open and belongs to the caller.
func New(t *serial.Transport, opts ...Option) (*Protocol, error) {
	if t == nil {
		return nil, errcode.New(errcode.InvalidParams, "srv4", "transport is nil")
	}

	cfg := &config{
		banner:      DefaultBanner,
		bootRetries: DefaultBootRetries,
		logger:      t.Logger(),
	}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, errcode.Wrap(errcode.InvalidParams, "srv4", err, "%v", err)
		}
	}

	p := &Protocol{
		t:      t,
		cfg:    cfg,
		logger: cfg.logger.With("device", t.Device()),
	}
	if err := p.boot(); err != nil {
		p.faulted(err)
		return nil, err
	}

	return p, nil
}

func (p *Protocol) boot() error {
	if cfg := p.cfg; cfg.identityVersion {
		p.state.ToAwaitingVersion()
		id, err := p.identity()
		if err != nil {
			return err
		}
		p.versionRaw = id.SoftwareVersion
	} else {
		err := p.t.Exchange(func(c *serial.Conn) error {
			line, err := serial.AwaitBanner(c, cfg.banner, cfg.bootRetries)
			if err != nil {
				return err
			}
			p.state.ToAwaitingVersion()
			p.versionRaw = line

			return nil
		})
		if err != nil {
			return err
		}
	}

	v, err := ParseVersion(p.versionRaw)
	if err != nil {
		return err
	}
	if err := p.cfg.requirement.Check(v); err != nil {
		return err
	}
	p.version = v
	p.state.ToReady()
	p.logger.Debug("srv4: board ready", "version", p.versionRaw)

	return nil
}

// State returns the lifecycle state.
func (p *Protocol) State() State { return p.state.Get() }

// Version returns the version the board reported during boot.
func (p *Protocol) Version() Version { return p.version }

// VersionString returns the version line exactly as the board reported it.
func (p *Protocol) VersionString() string { return p.versionRaw }

// Transport returns the underlying transport.
func (p *Protocol) Transport() *serial.Transport { return p.t }

// Err returns the failure that faulted the protocol, or nil.
func (p *Protocol) Err() error {
	p.faultMu.Lock()
	defer p.faultMu.Unlock()

	return p.fault
}

// Request sends cmd and returns the reply. Commands ending in '?' are queries and
// must be answered with data; every other command must be answered with ACK.
func (p *Protocol) Request(cmd string) (Response, error) {
	if err := validateCommand(cmd); err != nil {
		return Response{}, err
	}
	if !p.state.IsReady() {
		return Response{}, p.notReady(cmd)
	}

	return p.request(cmd)
}

// RequestWithResponse sends the query cmd and returns its data.
func (p *Protocol) RequestWithResponse(cmd string) (string, error) {
	if !isQuery(cmd) {
		return "", errcode.New(errcode.InvalidParams, "srv4: request", "%q is not a query", cmd)
	}

	resp, err := p.Request(cmd)
	if err != nil {
		return "", err
	}

	return resp.Data, nil
}

// QueryFloat sends the query cmd and parses the reply as a float.
func (p *Protocol) QueryFloat(cmd string) (float64, error) {
	data, err := p.RequestWithResponse(cmd)
	if err != nil {
		return 0, err
	}

	f, err := strconv.ParseFloat(data, 64)
	if err != nil {
		return 0, errcode.Wrap(errcode.Protocol, "srv4: request", err, "board returned %q to %s, but expected a float", data, cmd)
	}

	return f, nil
}

// Identity asks the board who it is.
func (p *Protocol) Identity() (Identity, error) {
	if !p.state.IsReady() {
		return Identity{}, p.notReady("*IDN?")
	}

	return p.identity()
}

// Reset turns off every output of the board.
func (p *Protocol) Reset() error {
	_, err := p.Request("*RESET")
	return err
}

func (p *Protocol) identity() (Identity, error) {
	resp, err := p.request("*IDN?")
	if err != nil {
		return Identity{}, err
	}

	parts := strings.Split(resp.Data, ":")
	if len(parts) != 4 {
		return Identity{}, errcode.New(errcode.Protocol, "srv4: identity",
			"identify response did not match format: %q", resp.Data)
	}

	return Identity{
		Vendor:          parts[0],
		Board:           parts[1],
		AssetTag:        parts[2],
		SoftwareVersion: parts[3],
	}, nil
}

func (p *Protocol) request(cmd string) (Response, error) {
	const op = "srv4: request"

	var reply string
	err := p.t.Exchange(func(c *serial.Conn) error {
		if err := c.WriteLine(cmd); err != nil {
			return err
		}
		var err error
		reply, err = c.ReadLine(false)

		return err
	})
	if err != nil {
		p.faulted(err)
		return Response{}, err
	}

	if strings.HasPrefix(reply, "NACK") {
		_, msg, _ := strings.Cut(reply, ":")
		p.logger.Debug("srv4: command rejected", "command", cmd, "message", msg)

		return Response{}, errcode.New(errcode.Nack, op, "board returned an error to %s: %s", cmd, msg)
	}

	if isQuery(cmd) {
		if reply == "" || reply == "ACK" {
			return Response{}, errcode.New(errcode.Protocol, op, "board responded to %s with ACK but expected data", cmd)
		}

		return Response{Kind: Data, Data: reply}, nil
	}

	if reply != "ACK" {
		return Response{}, errcode.New(errcode.Protocol, op, "expected ACK to %s, but got %q", cmd, reply)
	}

	return Response{Kind: Ack}, nil
}

func (p *Protocol) faulted(err error) {
	if !p.state.ToFaulted() {
		return
	}

	p.faultMu.Lock()
	p.fault = err
	p.faultMu.Unlock()

	p.logger.Error("srv4: protocol faulted", "error", err)
}

func (p *Protocol) notReady(cmd string) error {
	if p.state.IsFaulted() {
		return errcode.Wrap(errcode.Communication, "srv4: request", ErrFaulted,
			"cannot send %s, an earlier failure faulted the protocol: %v", cmd, p.Err())
	}

	return errcode.New(errcode.Communication, "srv4: request", "cannot send %s while %s", cmd, p.state.String())
}

func validateCommand(cmd string) error {
	if cmd == "" {
		return errcode.New(errcode.InvalidParams, "srv4: request", "command is empty")
	}
	for i := 0; i < len(cmd); i++ {
		if c := cmd[i]; c < 0x20 || c > 0x7e {
			return errcode.New(errcode.InvalidParams, "srv4: request",
				"command %q contains byte 0x%02x, only printable ASCII is allowed", cmd, c)
		}
	}

	return nil
}

func isQuery(cmd string) bool {
	return strings.HasSuffix(cmd, "?")
}
