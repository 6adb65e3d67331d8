package hal

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/arloliu/go-robohal/component"
)

var (
	testLEDBoardKind    = NewBoardKind("TestLEDBoard", "Test LED Board", component.KindLED)
	testButtonBoardKind = NewBoardKind("TestButtonBoard", "Test Button Board", component.KindButton, component.KindLED)
)

type testLEDBackend struct {
	mu     sync.Mutex
	states map[int]bool
}

func newTestLEDBackend() *testLEDBackend {
	return &testLEDBackend{states: map[int]bool{}}
}

func (b *testLEDBackend) FirmwareVersion() (string, error) { return "1.0", nil }

func (b *testLEDBackend) GetLEDState(identifier int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.states[identifier], nil
}

func (b *testLEDBackend) SetLEDState(identifier int, state bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.states[identifier] = state

	return nil
}

// testLEDBoard is a minimal board with one LED.
type testLEDBoard struct {
	kind      *BoardKind
	serial    string
	backend   *testLEDBackend
	led       *component.LED
	safeCalls atomic.Int32
	failSafe  error
	panicSafe bool
}

func newTestLEDBoard(r *SafetyRegistry, serial string) *testLEDBoard {
	backend := newTestLEDBackend()
	b := &testLEDBoard{
		kind:    testLEDBoardKind,
		serial:  serial,
		backend: backend,
		led:     component.NewLED(0, backend),
	}
	if r != nil {
		Register(r, b)
	}

	return b
}

func (b *testLEDBoard) Kind() *BoardKind                 { return b.kind }
func (b *testLEDBoard) SerialNumber() string             { return b.serial }
func (b *testLEDBoard) FirmwareVersion() (string, error) { return b.backend.FirmwareVersion() }

func (b *testLEDBoard) MakeSafe() error {
	b.safeCalls.Add(1)
	if b.panicSafe {
		panic("led driver exploded")
	}
	if b.failSafe != nil {
		return b.failSafe
	}

	return b.led.SetState(false)
}

// testDiscovery is a scripted discover function.
type testDiscovery struct {
	mu      sync.Mutex
	serials []string
	err     error
	calls   int
}

func (d *testDiscovery) set(serials ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.serials = serials
}

func (d *testDiscovery) discover(context.Context) ([]Board, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.err != nil {
		return nil, d.err
	}

	boards := make([]Board, 0, len(d.serials))
	for _, s := range d.serials {
		boards = append(boards, newTestLEDBoard(nil, s))
	}

	return boards, nil
}

// newTestBackendKind defines the LED test backend in a fresh environment.
func newTestBackendKind(t *testing.T, serials ...string) (*BackendKind, *testDiscovery) {
	t.Helper()

	d := &testDiscovery{serials: serials}
	bk, err := DefineBackend(BackendSpec{
		Name:            "TestLEDBackend",
		Board:           testLEDBoardKind,
		Environment:     NewEnvironment("TestEnvironment"),
		Implementations: []reflect.Type{TypeOf[*testLEDBackend]()},
		Discover:        d.discover,
	})
	if err != nil {
		t.Fatalf("newTestBackendKind: %v", err)
	}

	return bk, d
}

var errDiscovery = errors.New("usb bus unavailable")
