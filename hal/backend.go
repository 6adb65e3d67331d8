package hal

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/arloliu/go-robohal/errcode"
)

var backendInterface = reflect.TypeFor[Backend]()

// DiscoverFunc enumerates the boards reachable through a backend kind. Backends that
// cannot enumerate boards return an errcode.Unsupported error.
type DiscoverFunc func(ctx context.Context) ([]Board, error)

// BackendSpec declares a backend kind.
type BackendSpec struct {
	// Name identifies the backend kind in logs and errors.
	Name string
	// Board is the single board kind the backend drives.
	Board *BoardKind
	// Environment is the single environment the backend is registered in.
	Environment *Environment
	// Implementations are the driver types constructed by Discover, as they are used
	// (usually pointer types). Every type must implement the interface of every
	// component kind of Board plus Backend.
	Implementations []reflect.Type
	Discover        DiscoverFunc
}

// BackendKind is a checked and registered backend declaration.
type BackendKind struct {
	name     string
	board    *BoardKind
	env      *Environment
	impls    []reflect.Type
	discover DiscoverFunc
}

// TypeOf is shorthand for reflect.TypeFor, used to list backend implementations.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// DefineBackend checks spec against the capability contract of its board kind and
// registers it into its environment.
//
// A driver type that lacks any method required by the board's components fails with an
// errcode.ContractViolation error naming the missing capability and methods. A second
// backend for the same board kind in the same environment fails with
// errcode.DuplicateRegistration.
func DefineBackend(spec BackendSpec) (*BackendKind, error) {
	if err := checkContract(spec); err != nil {
		return nil, err
	}

	bk := &BackendKind{
		name:     spec.Name,
		board:    spec.Board,
		env:      spec.Environment,
		impls:    spec.Implementations,
		discover: spec.Discover,
	}
	if err := spec.Environment.RegisterBackend(bk); err != nil {
		return nil, err
	}

	return bk, nil
}

// MustDefineBackend is like DefineBackend but panics on error. It is meant for
// package-level backend kinds, so that a broken backend fails at program start.
func MustDefineBackend(spec BackendSpec) *BackendKind {
	bk, err := DefineBackend(spec)
	if err != nil {
		panic(err)
	}

	return bk
}

func checkContract(spec BackendSpec) error {
	const op = "hal: define backend"

	switch {
	case spec.Name == "":
		return errcode.New(errcode.ContractViolation, op, "backend name is empty")
	case spec.Board == nil:
		return errcode.New(errcode.ContractViolation, op, "backend %s does not declare a board kind", spec.Name)
	case spec.Environment == nil:
		return errcode.New(errcode.ContractViolation, op, "backend %s does not declare an environment", spec.Name)
	case spec.Discover == nil:
		return errcode.New(errcode.ContractViolation, op, "backend %s has no discover function", spec.Name)
	case len(spec.Implementations) == 0:
		return errcode.New(errcode.ContractViolation, op, "backend %s declares no implementation types", spec.Name)
	}

	var violations []error
	for _, impl := range spec.Implementations {
		if impl == nil {
			violations = append(violations, errcode.New(errcode.ContractViolation, op,
				"backend %s declares a nil implementation type", spec.Name))
			continue
		}
		if !impl.Implements(backendInterface) {
			violations = append(violations, errcode.New(errcode.ContractViolation, op,
				"backend %s (%s) does not implement Backend: missing FirmwareVersion", spec.Name, impl))
		}
		for _, kind := range spec.Board.SupportedComponents() {
			missing := kind.MissingMethods(impl)
			if len(missing) == 0 {
				continue
			}
			violations = append(violations, errcode.New(errcode.ContractViolation, op,
				"backend %s (%s) cannot drive %s of board %s: missing %s",
				spec.Name, impl, kind, spec.Board.Name(), strings.Join(missing, ", ")))
		}
	}

	return errors.Join(violations...)
}

// Name returns the backend kind name.
func (b *BackendKind) Name() string { return b.name }

// Board returns the board kind the backend drives.
func (b *BackendKind) Board() *BoardKind { return b.board }

// Environment returns the environment the backend was defined for.
func (b *BackendKind) Environment() *Environment { return b.env }

// Implementations returns the driver types checked at definition time.
func (b *BackendKind) Implementations() []reflect.Type {
	return append([]reflect.Type(nil), b.impls...)
}

func (b *BackendKind) String() string {
	return fmt.Sprintf("%s(%s/%s)", b.name, b.env.Name(), b.board.Name())
}

// Discover runs the backend's discovery. Every returned board must be of the backend's
// board kind.
func (b *BackendKind) Discover(ctx context.Context) ([]Board, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	boards, err := b.discover(ctx)
	if err != nil {
		return nil, err
	}

	for _, board := range boards {
		if board == nil {
			return nil, errcode.New(errcode.ContractViolation, "hal: discover", "backend %s returned a nil board", b.name)
		}
		if board.Kind() != b.board {
			return nil, errcode.New(errcode.ContractViolation, "hal: discover",
				"backend %s returned a %s board, want %s", b.name, board.Kind().Name(), b.board.Name())
		}
	}

	return boards, nil
}
