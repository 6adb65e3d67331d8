// Package rawusb talks to boards through USB vendor control transfers.
//
// A read is a control-in transfer carrying the command code in wIndex; a write is a
// control-out transfer carrying the command code in wIndex and a value in wValue,
// optionally followed by a data stage. Devices are enumerated through gousb.
package rawusb

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/logger"
	"github.com/arloliu/go-robohal/transport"
)

// Control transfer parameters shared by every board.
const (
	RequestTypeRead  uint8 = 0x80
	RequestTypeWrite uint8 = 0x00
	Request          uint8 = 64
)

// ControlDevice is an open USB device. *gousb.Device satisfies it.
type ControlDevice interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
	SerialNumber() (string, error)
	Close() error
}

// ReadCommand is a control-in command and the number of bytes it returns.
type ReadCommand struct {
	Code   uint16
	Length int
}

// WriteCommand is a control-out command.
type WriteCommand struct {
	Code uint16
}

// Error is a failure reported by the USB stack. Its message is the message of the
// underlying error, and it matches errcode.Communication.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is errcode.Communication.
func (e *Error) Is(target error) bool {
	c, ok := target.(errcode.Code)
	return ok && c == errcode.Communication
}

// Code returns errcode.Communication.
func (e *Error) Code() errcode.Code { return errcode.Communication }

// Device serializes control transfers to one USB device.
type Device struct {
	dev    ControlDevice
	logger logger.Logger

	mu      sync.Mutex
	closed  bool
	metrics transport.Metrics
}

// Option is a functional option for configuring a Device.
type Option interface {
	apply(*Device) error
}

type optFunc func(*Device) error

func (f optFunc) apply(d *Device) error { return f(d) }

// WithLogger sets the logger of the device.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(d *Device) error {
		if l == nil {
			return errors.New("rawusb: logger must not be nil")
		}
		d.logger = l

		return nil
	})
}

// New wraps an open USB device.
func New(dev ControlDevice, opts ...Option) (*Device, error) {
	if dev == nil {
		return nil, errcode.New(errcode.InvalidParams, "rawusb", "device is nil")
	}

	d := &Device{dev: dev, logger: logger.GetLogger()}
	for _, opt := range opts {
		if err := opt.apply(d); err != nil {
			return nil, errcode.Wrap(errcode.InvalidParams, "rawusb", err, "%v", err)
		}
	}

	return d, nil
}

// Metrics returns the live counters of the device.
func (d *Device) Metrics() *transport.Metrics { return &d.metrics }

// Read performs cmd and returns exactly cmd.Length bytes. A short reply is a
// errcode.Protocol error.
func (d *Device) Read(cmd ReadCommand) ([]byte, error) {
	const op = "rawusb: read"

	if cmd.Length <= 0 {
		return nil, errcode.New(errcode.InvalidParams, op, "command %d has invalid length %d", cmd.Code, cmd.Length)
	}

	buf := make([]byte, cmd.Length)
	n, err := d.control(op, RequestTypeRead, 0, cmd.Code, buf)
	if err != nil {
		return nil, err
	}
	if n != cmd.Length {
		d.metrics.IncError()
		return nil, errcode.New(errcode.Protocol, op,
			"command %d returned %d bytes, expected %d", cmd.Code, n, cmd.Length)
	}

	return buf, nil
}

// ReadUint32s performs cmd and decodes the reply as little-endian uint32 values.
func (d *Device) ReadUint32s(cmd ReadCommand) ([]uint32, error) {
	if cmd.Length%4 != 0 {
		return nil, errcode.New(errcode.InvalidParams, "rawusb: read",
			"command %d length %d is not a multiple of 4", cmd.Code, cmd.Length)
	}

	buf, err := d.Read(cmd)
	if err != nil {
		return nil, err
	}

	values := make([]uint32, len(buf)/4)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}

	return values, nil
}

// ReadUint32 performs cmd and decodes the first four bytes as a little-endian uint32.
func (d *Device) ReadUint32(cmd ReadCommand) (uint32, error) {
	values, err := d.ReadUint32s(cmd)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, errcode.New(errcode.Protocol, "rawusb: read", "command %d returned no value", cmd.Code)
	}

	return values[0], nil
}

// WriteValue performs cmd with value in wValue and no data stage.
func (d *Device) WriteValue(cmd WriteCommand, value uint16) error {
	_, err := d.control("rawusb: write", RequestTypeWrite, value, cmd.Code, nil)
	return err
}

// WriteData performs cmd with data as the data stage.
func (d *Device) WriteData(cmd WriteCommand, data []byte) error {
	_, err := d.control("rawusb: write", RequestTypeWrite, 0, cmd.Code, data)
	return err
}

// SerialNumber returns the USB serial number string. A device without one is a
// errcode.DeviceMissingIdentifier error.
func (d *Device) SerialNumber() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	serial, err := d.dev.SerialNumber()
	if err != nil {
		return "", errcode.Wrap(errcode.DeviceMissingIdentifier, "rawusb", &Error{Op: "serial number", Err: err},
			"cannot read serial number: %v", err)
	}
	if serial == "" {
		return "", errcode.New(errcode.DeviceMissingIdentifier, "rawusb", "device has no serial number")
	}

	return serial, nil
}

// Close releases the device. Closing twice is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if err := d.dev.Close(); err != nil {
		return &Error{Op: "close", Err: err}
	}

	return nil
}

func (d *Device) control(op string, rType uint8, value uint16, code uint16, data []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, errcode.New(errcode.Communication, op, "device is closed")
	}

	n, err := d.dev.Control(rType, Request, value, code, data)
	if err != nil {
		d.metrics.IncError()
		d.logger.Debug("rawusb: control transfer failed", "op", op, "code", code, "error", err)

		return n, &Error{Op: op, Err: err}
	}

	if rType == RequestTypeRead {
		d.metrics.AddBytesRead(n)
	} else {
		d.metrics.AddBytesWritten(len(data))
	}
	d.metrics.IncExchange()

	return n, nil
}
