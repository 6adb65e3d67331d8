package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-robohal/logger"
	tarm "github.com/tarm/serial"
)

const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 250 * time.Millisecond
)

// Baud rate and read timeout limits.
const (
	MinBaudRate = 300
	MaxBaudRate = 4_000_000

	MinReadTimeout = 10 * time.Millisecond
	MaxReadTimeout = 30 * time.Second
)

// Opener opens a port. A read on the returned port must return (0, io.EOF) when no
// byte arrives within readTimeout, as github.com/tarm/serial ports do.
type Opener func(device string, baudRate int, readTimeout time.Duration) (io.ReadWriteCloser, error)

// TarmOpener opens a real port through github.com/tarm/serial. It is the default Opener.
func TarmOpener(device string, baudRate int, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	return tarm.OpenPort(&tarm.Config{
		Name:        device,
		Baud:        baudRate,
		ReadTimeout: readTimeout,
	})
}

// Config holds the settings of one serial connection.
type Config struct {
	baudRate    int
	readTimeout time.Duration
	opener      Opener
	logger      logger.Logger
}

// NewConfig returns the default configuration with opts applied in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		baudRate:    DefaultBaudRate,
		readTimeout: DefaultReadTimeout,
		opener:      TarmOpener,
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *Config) BaudRate() int              { return cfg.baudRate }
func (cfg *Config) ReadTimeout() time.Duration { return cfg.readTimeout }
func (cfg *Config) Logger() logger.Logger      { return cfg.logger }

// Option is a functional option for configuring a serial connection.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate sets the baud rate. Must be in [MinBaudRate, MaxBaudRate].
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud < MinBaudRate || baud > MaxBaudRate {
			return fmt.Errorf("serial: baud rate %d out of range [%d, %d]", baud, MinBaudRate, MaxBaudRate)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithReadTimeout sets how long a single read waits for data.
// Must be in [MinReadTimeout, MaxReadTimeout].
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinReadTimeout || d > MaxReadTimeout {
			return fmt.Errorf("serial: read timeout %v out of range [%v, %v]", d, MinReadTimeout, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithOpener replaces the function used to open the port.
func WithOpener(o Opener) Option {
	return optFunc(func(cfg *Config) error {
		if o == nil {
			return errors.New("serial: opener must not be nil")
		}
		cfg.opener = o

		return nil
	})
}

// WithLogger sets the logger for the connection.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("serial: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
