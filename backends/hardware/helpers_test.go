package hardware

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/arloliu/go-robohal/logger"
	"github.com/arloliu/go-robohal/transport/rawusb"
	"github.com/arloliu/go-robohal/transport/serial"
	"github.com/arloliu/go-robohal/transport/serial/serialtest"
	"github.com/stretchr/testify/require"
)

func newTransport(t *testing.T, port *serialtest.FakePort) *serial.Transport {
	t.Helper()

	tr, err := serial.Open("/dev/ttyACM0",
		serial.WithOpener(port.Open),
		serial.WithLogger(logger.NewMockLogger().Permissive()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	return tr
}

// fakeSystem replaces the discovery inputs of the package for one test.
type fakeSystem struct {
	ports      []serial.PortInfo
	serials    map[string]*serialtest.FakePort
	usb        []rawusb.ControlDevice
	openedWith map[string][]serial.Option
}

func installFakeSystem(t *testing.T, sys *fakeSystem) {
	t.Helper()

	origList, origSerial, origUSB := listPorts, openSerial, openUSB
	t.Cleanup(func() { listPorts, openSerial, openUSB = origList, origSerial, origUSB })

	sys.openedWith = map[string][]serial.Option{}
	listPorts = func() ([]serial.PortInfo, error) { return sys.ports, nil }
	openSerial = func(device string, opts ...serial.Option) (*serial.Transport, error) {
		port, ok := sys.serials[device]
		require.True(t, ok, "unexpected open of %s", device)
		sys.openedWith[device] = opts

		return serial.Open(device, append(opts,
			serial.WithOpener(port.Open),
			serial.WithLogger(logger.NewMockLogger().Permissive()),
		)...)
	}
	openUSB = func(context.Context, rawusb.Matcher) ([]rawusb.ControlDevice, error) { return sys.usb, nil }
}

type usbWrite struct {
	code  uint16
	value uint16
	data  []byte
}

// fakeUSB answers control reads from a table and records control writes.
type fakeUSB struct {
	mu       sync.Mutex
	serial   string
	reads    map[uint16][]byte
	writes   []usbWrite
	writeErr error
	closed   bool
}

func newFakeUSB(serialNumber string) *fakeUSB {
	return &fakeUSB{serial: serialNumber, reads: map[uint16][]byte{}}
}

func (f *fakeUSB) Control(rType, _ uint8, val, idx uint16, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if rType == rawusb.RequestTypeRead {
		return copy(data, f.reads[idx]), nil
	}
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.writes = append(f.writes, usbWrite{code: idx, value: val, data: append([]byte(nil), data...)})

	return len(data), nil
}

func (f *fakeUSB) SerialNumber() (string, error) { return f.serial, nil }

func (f *fakeUSB) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

func (f *fakeUSB) written() []usbWrite {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]usbWrite(nil), f.writes...)
}

func le32(values ...uint32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}

	return buf
}

func newRawDevice(t *testing.T, f *fakeUSB) *rawusb.Device {
	t.Helper()

	d, err := rawusb.New(f, rawusb.WithLogger(logger.NewMockLogger().Permissive()))
	require.NoError(t, err)

	return d
}
