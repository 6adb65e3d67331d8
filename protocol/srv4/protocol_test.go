package srv4

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/logger"
	"github.com/arloliu/go-robohal/transport/serial"
	"github.com/arloliu/go-robohal/transport/serial/serialtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransport(t *testing.T, data ...string) (*serial.Transport, *serialtest.FakePort) {
	t.Helper()

	port := serialtest.New(data...)
	tr, err := serial.Open("/dev/ttyACM0",
		serial.WithOpener(port.Open),
		serial.WithLogger(logger.NewMockLogger().Permissive()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	return tr, port
}

func newReadyProtocol(t *testing.T) (*Protocol, *serialtest.FakePort) {
	t.Helper()

	tr, port := newTransport(t, "# Booted\n4.4\n")
	p, err := New(tr, WithRequirement(Requirement{Hardware: 4, MinMajor: 4}))
	require.NoError(t, err)
	require.Equal(t, ReadyState, p.State())

	return p, port
}

func TestNew_Handshake(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantErr  bool
		wantVer  Version
		wantCode errcode.Code
	}{
		{"banner then version", "# Booted\n4.4\n", false, Version{4, 4, 0}, ""},
		{"three part version", "# Booted\n4.5.2\n", false, Version{4, 5, 2}, ""},
		{"25 empty lines", strings.Repeat("\n", 25) + "# Booted\n4.4\n", false, Version{4, 4, 0}, ""},
		{"26 empty lines", strings.Repeat("\n", 26) + "# Booted\n4.4\n", true, Version{}, errcode.FirmwareMismatch},
		{"firmware too old", "# Booted\n3.9\n", true, Version{}, errcode.FirmwareMismatch},
		{"wrong hardware", "# Booted\n5.4\n", true, Version{}, errcode.FirmwareMismatch},
		{"malformed version", "# Booted\nv4\n", true, Version{}, errcode.FirmwareMismatch},
		{"no version line", "# Booted\n", true, Version{}, errcode.Communication},
		{"silent board", "", true, Version{}, errcode.FirmwareMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := newTransport(t, tt.data)

			p, err := New(tr, WithRequirement(Requirement{Hardware: 4, MinMajor: 4}))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errcode.Of(err))
				assert.ErrorIs(t, err, errcode.Communication)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVer, p.Version())
			assert.Equal(t, ReadyState, p.State())
		})
	}
}

func TestNew_IdentityVersion(t *testing.T) {
	tr, port := newTransport(t)
	port.Respond("*IDN?", "Student Robotics:PBv4B:SR0PJ1W:4.4.1\n")

	p, err := New(tr, WithIdentityVersion(), WithRequirement(Requirement{Hardware: 4, MinMajor: 4}))
	require.NoError(t, err)
	assert.Equal(t, Version{4, 4, 1}, p.Version())
	assert.Equal(t, "4.4.1", p.VersionString())
	assert.Equal(t, []string{"*IDN?"}, port.Lines())
}

func TestNew_InvalidOptions(t *testing.T) {
	tr, _ := newTransport(t)

	for _, opt := range []Option{WithBanner(""), WithBootRetries(-1), WithLogger(nil), WithRequirement(Requirement{MinMajor: -1})} {
		_, err := New(tr, opt)
		assert.ErrorIs(t, err, errcode.InvalidParams)
	}

	_, err := New(nil)
	assert.ErrorIs(t, err, errcode.InvalidParams)
}

func TestRequest(t *testing.T) {
	p, port := newReadyProtocol(t)
	port.Respond("OUT:0:SET:1", "ACK\n")
	port.Respond("OUT:0:GET?", "1\n")
	port.Respond("OUT:7:SET:1", "NACK:Invalid output\n")
	port.Respond("LED:RUN:SET:1", "1\n")
	port.Respond("BATT:V?", "ACK\n")

	resp, err := p.Request("OUT:0:SET:1")
	require.NoError(t, err)
	assert.True(t, resp.IsAck())
	assert.Equal(t, "ACK", resp.String())

	resp, err = p.Request("OUT:0:GET?")
	require.NoError(t, err)
	assert.Equal(t, Response{Kind: Data, Data: "1"}, resp)

	_, err = p.Request("OUT:7:SET:1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.Nack)
	assert.ErrorIs(t, err, errcode.Communication)
	assert.Contains(t, err.Error(), "Invalid output")

	_, err = p.Request("LED:RUN:SET:1")
	assert.Equal(t, errcode.Protocol, errcode.Of(err))

	_, err = p.Request("BATT:V?")
	assert.Equal(t, errcode.Protocol, errcode.Of(err))

	// none of these fault the protocol
	assert.Equal(t, ReadyState, p.State())
	assert.NoError(t, p.Err())
}

func TestRequest_ValidatesBeforeIO(t *testing.T) {
	p, port := newReadyProtocol(t)
	before := len(port.Written())

	for _, cmd := range []string{"", "OUT:0:SET:1\nOUT:1:SET:1", "BUZZ\t", "NOTE:é"} {
		_, err := p.Request(cmd)
		assert.ErrorIs(t, err, errcode.InvalidParams, "command %q", cmd)
	}

	_, err := p.RequestWithResponse("OUT:0:SET:1")
	assert.ErrorIs(t, err, errcode.InvalidParams)

	assert.Len(t, port.Written(), before)
}

func TestRequest_TransportFailureFaults(t *testing.T) {
	p, port := newReadyProtocol(t)

	_, err := p.Request("BTN:START:GET?")
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.Communication)
	assert.Equal(t, FaultedState, p.State())
	assert.Equal(t, err, p.Err())

	// recovered wire, still faulted
	port.Respond("BTN:START:GET?", "0:0\n")
	written := len(port.Written())
	_, err = p.Request("BTN:START:GET?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFaulted)
	assert.ErrorIs(t, err, errcode.Communication)
	assert.Len(t, port.Written(), written)

	_, err = p.Identity()
	assert.ErrorIs(t, err, ErrFaulted)
}

func TestRequest_WriteFailureFaults(t *testing.T) {
	p, port := newReadyProtocol(t)
	errUnplugged := errors.New("input/output error")
	port.FailWrites(errUnplugged)

	err := p.Reset()
	assert.ErrorIs(t, err, errUnplugged)
	assert.True(t, p.state.IsFaulted())
}

func TestRequestWithResponse(t *testing.T) {
	p, port := newReadyProtocol(t)
	port.Respond("BATT:V?", "11800\n")
	port.Respond("BATT:I?", "lots\n")

	data, err := p.RequestWithResponse("BATT:V?")
	require.NoError(t, err)
	assert.Equal(t, "11800", data)

	v, err := p.QueryFloat("BATT:V?")
	require.NoError(t, err)
	assert.InDelta(t, 11800.0, v, 1e-9)

	_, err = p.QueryFloat("BATT:I?")
	assert.Equal(t, errcode.Protocol, errcode.Of(err))
}

func TestIdentity(t *testing.T) {
	p, port := newReadyProtocol(t)
	port.Respond("*IDN?", "Student Robotics:PBv4B:SR0PJ1W:4.4\n")

	id, err := p.Identity()
	require.NoError(t, err)
	assert.Equal(t, Identity{
		Vendor:          "Student Robotics",
		Board:           "PBv4B",
		AssetTag:        "SR0PJ1W",
		SoftwareVersion: "4.4",
	}, id)
}

func TestIdentity_BadFormat(t *testing.T) {
	for _, reply := range []string{"Student Robotics:PBv4B:4.4", "a:b:c:d:e"} {
		p, port := newReadyProtocol(t)
		port.Respond("*IDN?", reply+"\n")

		_, err := p.Identity()
		assert.Equal(t, errcode.Protocol, errcode.Of(err), "reply %q", reply)
	}
}

func TestReset(t *testing.T) {
	p, port := newReadyProtocol(t)
	port.Respond("*RESET", "ACK\n")

	require.NoError(t, p.Reset())
	assert.Equal(t, []string{"*RESET"}, port.Lines())
}

func TestRequest_Concurrent(t *testing.T) {
	p, port := newReadyProtocol(t)
	port.Respond("OUT:0:I?", "1250\n")
	port.Respond("OUT:1:I?", "300\n")

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cmd, want := "OUT:0:I?", "1250"
			if i%2 == 1 {
				cmd, want = "OUT:1:I?", "300"
			}
			got, err := p.RequestWithResponse(cmd)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}
