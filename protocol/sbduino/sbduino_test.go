package sbduino

import (
	"strings"
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

	tr, port := newTransport(t, "# Booted\n# SBDuino GPIO v2019.6.0\n")
	p, err := New(tr)
	require.NoError(t, err)

	return p, port
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		version string
		wantErr bool
	}{
		{"minimum", "# Booted\n# SBDuino GPIO v2019.6.0\n", "2019.6.0", false},
		{"newer", "\n\n# Booted\n# SBDuino GPIO v2020.1.2\n", "2020.1.2", false},
		{"older", "# Booted\n# SBDuino GPIO v2019.5.9\n", "", true},
		{"two parts", "# Booted\n# SBDuino GPIO v2019.6\n", "", true},
		{"no version", "# Booted\n# SBDuino GPIO\n", "", true},
		{"not a number", "# Booted\n# SBDuino GPIO v2019.x.0\n", "", true},
		{"boot error", "Hello\n", "", true},
		{"silent", strings.Repeat("\n", 30), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := newTransport(t, tt.data)

			p, err := New(tr)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errcode.FirmwareMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.version, p.FirmwareVersion())
		})
	}
}

func TestCommand(t *testing.T) {
	p, port := newReadyProtocol(t)
	port.Respond("A", "> a0 512\n# busy\n> a1 1023\n> a2 0\n> a3 12\n+\n")
	port.Respond("W 13 H", "+\n")

	results, err := p.Command("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"a0 512", "a1 1023", "a2 0", "a3 12"}, results)

	results, err = p.Command("W", "13", "H")
	require.NoError(t, err)
	assert.Empty(t, results)

	assert.Equal(t, []string{"A", "W 13 H"}, port.Lines())
}

func TestCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		wantCode errcode.Code
	}{
		{"firmware error", "- invalid pin\n", errcode.Communication},
		{"unknown code", "? what\n", errcode.Protocol},
		{"no terminator", "> H\n", errcode.Communication},
		{"partial", "> H", errcode.Timeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, port := newReadyProtocol(t)
			port.Respond("R 2", tt.reply)

			_, err := p.Command("R", "2")
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errcode.Of(err))
			assert.ErrorIs(t, err, errcode.Communication)
		})
	}
}

func TestCommand_FirmwareErrorMessage(t *testing.T) {
	p, port := newReadyProtocol(t)
	port.Respond("R 99", "- invalid pin\n")

	_, err := p.Command("R", "99")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommand)
	assert.Contains(t, err.Error(), "arduino error: invalid pin")
}

func TestCommand_InvalidCommand(t *testing.T) {
	p, port := newReadyProtocol(t)
	written := len(port.Written())

	_, err := p.Command("W", "13\nH")
	assert.ErrorIs(t, err, errcode.InvalidParams)
	_, err = p.Command("")
	assert.ErrorIs(t, err, errcode.InvalidParams)
	assert.Len(t, port.Written(), written)
}

func TestCommandSingle(t *testing.T) {
	p, port := newReadyProtocol(t)
	port.Respond("R 2", "> H\n+\n")
	port.Respond("R 3", "> H\n> L\n+\n")

	got, err := p.CommandSingle("R", "2")
	require.NoError(t, err)
	assert.Equal(t, "H", got)

	_, err = p.CommandSingle("R", "3")
	assert.Equal(t, errcode.Protocol, errcode.Of(err))
}
