package serial

import "github.com/arloliu/go-robohal/errcode"

// DefaultBannerRetries is the number of re-reads AwaitBanner allows after the first read.
const DefaultBannerRetries = 25

// AwaitBanner waits for a board to finish booting. It reads one line, then re-reads up
// to retries times while the lines are empty. The first non-empty line must equal
// banner; AwaitBanner then reads and returns the line that follows it, which is
// usually a version line.
//
// A board that stays silent, or whose first line is not the banner, is a
// errcode.FirmwareMismatch error.
func AwaitBanner(c *Conn, banner string, retries int) (string, error) {
	const op = "serial: boot handshake"

	line, err := c.ReadLine(true)
	for n := 0; err == nil && line == "" && n < retries; n++ {
		line, err = c.ReadLine(true)
	}
	if err != nil {
		return "", err
	}

	switch line {
	case banner:
	case "":
		return "", errcode.New(errcode.FirmwareMismatch, op,
			"board did not boot, no %q line after %d reads", banner, retries+1)
	default:
		return "", errcode.New(errcode.FirmwareMismatch, op, "expected %q, got %q", banner, line)
	}

	return c.ReadLine(false)
}
