package serial

import (
	"testing"

	"github.com/arloliu/go-robohal/logger"
	"github.com/arloliu/go-robohal/transport/serial/serialtest"
	"github.com/stretchr/testify/require"
)

func openFake(t *testing.T, data ...string) (*Transport, *serialtest.FakePort) {
	t.Helper()

	port := serialtest.New(data...)
	tr, err := Open("/dev/ttyFAKE0",
		WithOpener(port.Open),
		WithLogger(logger.NewMockLogger().Permissive()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	return tr, port
}
