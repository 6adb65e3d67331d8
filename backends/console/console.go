// Package console holds backends driven by a person at a terminal: every output is
// printed and every input is asked for.
//
// Backends read and print through an IO, which defaults to the process's standard
// streams and can be replaced with SetDefaultIO.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
	"github.com/mattn/go-isatty"
)

// Environment binds every catalogue board that a person can stand in for.
var Environment = hal.NewEnvironment("ConsoleEnvironment")

// ErrInputClosed is wrapped when the input stream ends while a value is expected.
var ErrInputClosed = errors.New("console: input closed")

// DefaultSerial is the serial number of every board discovered on the console.
const DefaultSerial = "SERIAL"

// IO is a pair of streams shared by every console of a process.
type IO struct {
	mu          sync.Mutex
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewIO returns an IO over in and out. Input is interactive unless in is a file that
// is not a terminal.
func NewIO(in io.Reader, out io.Writer) *IO {
	interactive := true
	if f, ok := in.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return &IO{in: bufio.NewReader(in), out: out, interactive: interactive}
}

var (
	defaultIOMu sync.RWMutex
	defaultIO   = NewIO(os.Stdin, os.Stdout)
)

// DefaultIO returns the IO used by discovered boards.
func DefaultIO() *IO {
	defaultIOMu.RLock()
	defer defaultIOMu.RUnlock()

	return defaultIO
}

// SetDefaultIO replaces the IO used by boards discovered afterwards.
func SetDefaultIO(s *IO) {
	defaultIOMu.Lock()
	defer defaultIOMu.Unlock()

	defaultIO = s
}

// Console prints and prompts on behalf of one board.
type Console struct {
	descriptor string
	io         *IO
}

// New returns a console whose lines are prefixed with descriptor. A nil s selects
// DefaultIO.
func New(descriptor string, s *IO) *Console {
	if s == nil {
		s = DefaultIO()
	}

	return &Console{descriptor: descriptor, io: s}
}

// Info prints a message.
func (c *Console) Info(format string, args ...any) {
	c.io.mu.Lock()
	defer c.io.mu.Unlock()

	c.info(fmt.Sprintf(format, args...))
}

func (c *Console) info(msg string) {
	fmt.Fprintf(c.io.out, "%s: %s\n", c.descriptor, msg)
}

// prompt prints the prompt and reads one answer. c.io.mu is held.
func (c *Console) prompt(p string) (string, error) {
	fmt.Fprintf(c.io.out, "%s: %s: ", c.descriptor, p)

	line, err := c.io.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		if errors.Is(err, io.EOF) {
			return "", errcode.Wrap(errcode.Communication, "console", ErrInputClosed, "no answer to %q", p)
		}
		return "", errcode.Wrap(errcode.Communication, "console", err, "cannot read answer to %q: %v", p, err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// ReadString asks for a line of text.
func (c *Console) ReadString(p string) (string, error) {
	c.io.mu.Lock()
	defer c.io.mu.Unlock()

	return c.prompt(p)
}

// WaitForEnter asks the user to press return.
func (c *Console) WaitForEnter(p string) error {
	_, err := c.ReadString(p)
	return err
}

// ReadFloat asks for a number until the answer parses.
func (c *Console) ReadFloat(p string) (float64, error) {
	return read(c, p, "float", func(s string) (float64, error) {
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	})
}

// ReadBool asks for true/yes or false/no until the answer parses. Without an
// interactive input the answer is false.
func (c *Console) ReadBool(p string) (bool, error) {
	if !c.io.interactive {
		return false, nil
	}

	return read(c, p, "bool", parseBool)
}

func read[T any](c *Console, p string, typeName string, parse func(string) (T, error)) (T, error) {
	c.io.mu.Lock()
	defer c.io.mu.Unlock()

	for {
		answer, err := c.prompt(p)
		if err != nil {
			var zero T
			return zero, err
		}

		v, err := parse(answer)
		if err == nil {
			return v, nil
		}
		c.info(fmt.Sprintf("Unable to construct a %s from %q", typeName, answer))
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true, nil
	case "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("console: %q is not a bool", s)
	}
}

func checkIdentifier(op string, id int, count int) error {
	if id < 0 || id >= count {
		return errcode.New(errcode.InvalidParams, op, "invalid identifier %d, valid identifiers are 0 to %d", id, count-1)
	}

	return nil
}

func cannotDiscover(board *hal.BoardKind) hal.DiscoverFunc {
	return func(_ context.Context) ([]hal.Board, error) {
		return nil, errcode.New(errcode.Unsupported, "console: discover", "the console backend cannot discover %s boards", board.Name())
	}
}
