// Package sbduino implements the line protocol of the SourceBots Arduino firmware.
//
// A command is one line of space separated words. The firmware answers with any number
// of lines, each starting with a code:
//
//	+          the command finished
//	- <error>  the command failed
//	> <data>   one result of the command
//	# <text>   a comment, ignored
package sbduino

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/logger"
	"github.com/arloliu/go-robohal/transport/serial"
)

const (
	Banner = "# Booted"

	// DefaultBootRetries is the number of empty lines tolerated before the banner.
	DefaultBootRetries = serial.DefaultBannerRetries
)

// MinFirmware is the oldest supported firmware version.
var MinFirmware = [3]int{2019, 6, 0}

// Protocol speaks to one board over a serial transport.
type Protocol struct {
	t       *serial.Transport
	version string
	logger  logger.Logger
}

// New waits for the board to boot and checks its firmware version. The version line
// printed after the banner looks like "SBDuino GPIO v2019.6.0".
func New(t *serial.Transport) (*Protocol, error) {
	if t == nil {
		return nil, errcode.New(errcode.InvalidParams, "sbduino", "transport is nil")
	}

	var line string
	err := t.Exchange(func(c *serial.Conn) error {
		var err error
		line, err = serial.AwaitBanner(c, Banner, DefaultBootRetries)
		return err
	})
	if err != nil {
		return nil, err
	}

	version, err := parseVersionLine(line)
	if err != nil {
		return nil, err
	}

	p := &Protocol{t: t, version: version, logger: t.Logger().With("device", t.Device())}
	p.logger.Debug("sbduino: board ready", "version", version)

	return p, nil
}

func parseVersionLine(line string) (string, error) {
	const op = "sbduino: version"

	parts := strings.Split(line, "v")
	if len(parts) < 2 {
		return "", errcode.New(errcode.FirmwareMismatch, op, "version line %q has no version", line)
	}
	version := parts[1]

	fields := strings.Split(version, ".")
	if len(fields) != 3 {
		return "", errcode.New(errcode.FirmwareMismatch, op,
			"unexpected firmware version: %s, expected at least: %q", version, formatVersion(MinFirmware))
	}

	var got [3]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return "", errcode.Wrap(errcode.FirmwareMismatch, op, err, "unexpected firmware version: %s", version)
		}
		got[i] = n
	}
	if compareVersion(got, MinFirmware) < 0 {
		return "", errcode.New(errcode.FirmwareMismatch, op,
			"unexpected firmware version: %s, expected at least: %q", version, formatVersion(MinFirmware))
	}

	return version, nil
}

func compareVersion(a, b [3]int) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}

	return 0
}

func formatVersion(v [3]int) string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// FirmwareVersion returns the version reported during boot, e.g. "2019.6.0".
func (p *Protocol) FirmwareVersion() string { return p.version }

// Transport returns the underlying transport.
func (p *Protocol) Transport() *serial.Transport { return p.t }

// ErrCommand is wrapped by errors the firmware reports with a '-' line.
var ErrCommand = errors.New("sbduino: command failed")

// Command sends cmd with params and returns the '>' results in order.
func (p *Protocol) Command(cmd string, params ...string) ([]string, error) {
	const op = "sbduino: command"

	msg := strings.Join(append([]string{cmd}, params...), " ")
	if msg == "" || strings.ContainsAny(msg, "\r\n") {
		return nil, errcode.New(errcode.InvalidParams, op, "invalid command %q", msg)
	}

	var results []string
	err := p.t.Exchange(func(c *serial.Conn) error {
		if err := c.WriteLine(msg); err != nil {
			return err
		}

		for {
			line, err := c.ReadLine(false)
			if err != nil {
				return err
			}

			code, param, _ := strings.Cut(line, " ")
			switch code {
			case "+":
				return nil
			case "-":
				return errcode.Wrap(errcode.Communication, op, ErrCommand, "arduino error: %s", param)
			case ">":
				results = append(results, param)
			case "#":
			default:
				return errcode.New(errcode.Protocol, op, "arduino returned unrecognised response line: %q", line)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// CommandSingle is Command for commands that produce exactly one result.
func (p *Protocol) CommandSingle(cmd string, params ...string) (string, error) {
	results, err := p.Command(cmd, params...)
	if err != nil {
		return "", err
	}
	if len(results) != 1 {
		return "", errcode.New(errcode.Protocol, "sbduino: command", "invalid response from arduino: %q", results)
	}

	return results[0], nil
}
