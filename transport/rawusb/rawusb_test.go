package rawusb

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/logger"
	"github.com/google/gousb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type controlCall struct {
	rType   uint8
	request uint8
	value   uint16
	index   uint16
	data    []byte
}

// fakeDevice answers control-in transfers from replies keyed by command code.
type fakeDevice struct {
	mu      sync.Mutex
	replies map[uint16][]byte
	calls   []controlCall
	err     error
	serial  string
	serErr  error
	closed  int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{replies: map[uint16][]byte{}, serial: "SR0ABC"}
}

func (f *fakeDevice) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, controlCall{rType: rType, request: request, value: val, index: idx, data: append([]byte(nil), data...)})
	if f.err != nil {
		return 0, f.err
	}
	if rType == RequestTypeRead {
		return copy(data, f.replies[idx]), nil
	}

	return len(data), nil
}

func (f *fakeDevice) SerialNumber() (string, error) { return f.serial, f.serErr }

func (f *fakeDevice) Close() error {
	f.closed++
	return nil
}

func newTestDevice(t *testing.T, f *fakeDevice) *Device {
	t.Helper()

	d, err := New(f, WithLogger(logger.NewMockLogger().Permissive()))
	require.NoError(t, err)

	return d
}

func le32(values ...uint32) []byte {
	b := make([]byte, 0, 4*len(values))
	for _, v := range values {
		b = binary.LittleEndian.AppendUint32(b, v)
	}

	return b
}

func TestDevice_Read(t *testing.T) {
	f := newFakeDevice()
	f.replies[9] = le32(3)
	d := newTestDevice(t, f)

	v, err := d.ReadUint32(ReadCommand{Code: 9, Length: 4})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), v)

	require.Len(t, f.calls, 1)
	assert.Equal(t, controlCall{rType: 0x80, request: 64, value: 0, index: 9, data: make([]byte, 4)}, f.calls[0])
}

func TestDevice_ReadUint32s(t *testing.T) {
	f := newFakeDevice()
	f.replies[7] = le32(1500, 11800)
	d := newTestDevice(t, f)

	values, err := d.ReadUint32s(ReadCommand{Code: 7, Length: 8})
	require.NoError(t, err)
	assert.Equal(t, []uint32{1500, 11800}, values)

	_, err = d.ReadUint32s(ReadCommand{Code: 7, Length: 6})
	assert.ErrorIs(t, err, errcode.InvalidParams)
}

func TestDevice_ShortRead(t *testing.T) {
	f := newFakeDevice()
	f.replies[8] = []byte{1, 0}
	d := newTestDevice(t, f)

	_, err := d.Read(ReadCommand{Code: 8, Length: 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.Protocol)
	assert.ErrorIs(t, err, errcode.Communication)
	assert.Equal(t, uint64(1), d.Metrics().ErrorCount.Load())
}

func TestDevice_Write(t *testing.T) {
	f := newFakeDevice()
	d := newTestDevice(t, f)

	require.NoError(t, d.WriteValue(WriteCommand{Code: 2}, 1))
	require.NoError(t, d.WriteData(WriteCommand{Code: 8}, []byte{0xe8, 0x03, 0xf4, 0x01}))

	require.Len(t, f.calls, 2)
	assert.Equal(t, controlCall{rType: 0x00, request: 64, value: 1, index: 2, data: nil}, f.calls[0])
	assert.Equal(t, controlCall{rType: 0x00, request: 64, value: 0, index: 8, data: []byte{0xe8, 0x03, 0xf4, 0x01}}, f.calls[1])
	assert.Equal(t, uint64(2), d.Metrics().ExchangeCount.Load())
}

func TestDevice_USBError(t *testing.T) {
	f := newFakeDevice()
	f.err = gousb.ErrorNoDevice
	d := newTestDevice(t, f)

	err := d.WriteValue(WriteCommand{Code: 0}, 1)
	require.Error(t, err)

	var usbErr *Error
	require.ErrorAs(t, err, &usbErr)
	assert.Equal(t, gousb.ErrorNoDevice.Error(), err.Error())
	assert.ErrorIs(t, err, errcode.Communication)
	assert.ErrorIs(t, err, gousb.ErrorNoDevice)
	assert.Equal(t, errcode.Communication, errcode.Of(err))
	assert.NotErrorIs(t, err, errcode.Timeout)
}

func TestDevice_SerialNumber(t *testing.T) {
	f := newFakeDevice()
	d := newTestDevice(t, f)

	serial, err := d.SerialNumber()
	require.NoError(t, err)
	assert.Equal(t, "SR0ABC", serial)

	f.serial = ""
	_, err = d.SerialNumber()
	assert.ErrorIs(t, err, errcode.DeviceMissingIdentifier)

	f.serErr = errors.New("LIBUSB_ERROR_PIPE")
	_, err = d.SerialNumber()
	assert.ErrorIs(t, err, errcode.DeviceMissingIdentifier)
}

func TestDevice_Close(t *testing.T) {
	f := newFakeDevice()
	d := newTestDevice(t, f)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, f.closed)

	_, err := d.Read(ReadCommand{Code: 9, Length: 4})
	assert.ErrorIs(t, err, errcode.Communication)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, errcode.InvalidParams)

	_, err = New(newFakeDevice(), WithLogger(nil))
	assert.ErrorIs(t, err, errcode.InvalidParams)
}

func TestMatchers(t *testing.T) {
	desc := &gousb.DeviceDesc{
		Vendor:  0x1bda,
		Product: 0x0010,
		Configs: map[int]gousb.ConfigDesc{
			1: {Interfaces: []gousb.InterfaceDesc{{Number: 0}}},
		},
	}

	assert.True(t, MatchID(0x1bda, 0x0010)(desc))
	assert.False(t, MatchID(0x1bda, 0x0011)(desc))
	assert.Equal(t, 1, InterfaceCount(desc))
	assert.Equal(t, 0, InterfaceCount(&gousb.DeviceDesc{}))

	single := func(d *gousb.DeviceDesc) bool { return InterfaceCount(d) == 1 }
	assert.True(t, All(MatchID(0x1bda, 0x0010), single)(desc))

	desc.Configs[1] = gousb.ConfigDesc{Interfaces: make([]gousb.InterfaceDesc, 2)}
	assert.False(t, All(MatchID(0x1bda, 0x0010), single)(desc))
}

func TestInterfaceCount_LowestConfiguration(t *testing.T) {
	desc := &gousb.DeviceDesc{
		Configs: map[int]gousb.ConfigDesc{
			3: {Interfaces: make([]gousb.InterfaceDesc, 3)},
			1: {Interfaces: make([]gousb.InterfaceDesc, 1)},
			2: {Interfaces: make([]gousb.InterfaceDesc, 2)},
		},
	}

	for range 20 {
		require.Equal(t, 1, InterfaceCount(desc))
	}
}

func TestInitContext(t *testing.T) {
	c, err := initContext(func() *gousb.Context { panic("libusb: not available") })
	require.Error(t, err)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, errcode.Communication)
	assert.Contains(t, err.Error(), "libusb: not available")

	c, err = initContext(func() *gousb.Context { return nil })
	require.NoError(t, err)
	assert.Nil(t, c)
}
