/*
Package serial owns USB serial connections to boards.

A Transport wraps one open port. Every read and write goes through a buffered reader
with a per-read timeout, and every failure is translated into an errcode error:

  - no bytes before the timeout is a errcode.Communication error, or "" when the
    caller allows empty reads
  - a partial line or a short fixed-size read is a errcode.Timeout error
  - undecodable bytes are a errcode.Protocol error

Exchange holds the transport lock for a whole request/response exchange, so protocols
built on top never interleave on the wire:

	t, err := serial.Open("/dev/ttyACM0", serial.WithBaudRate(115200))
	if err != nil {
		return err
	}
	defer t.Close()

	var version string
	err = t.Exchange(func(c *serial.Conn) error {
		if err := c.WriteLine("*IDN?"); err != nil {
			return err
		}
		version, err = c.ReadLine(false)
		return err
	})

Port discovery uses the operating system enumerator, see ListPorts and FindPorts.
*/
package serial
