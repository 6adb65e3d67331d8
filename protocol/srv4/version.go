package srv4

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/arloliu/go-robohal/errcode"
)

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)(?:\.(\d+))?$`)

// Version is a parsed version line. The first field is the hardware version; a missing
// third field is a firmware minor version of 0.
type Version struct {
	Hardware      int
	FirmwareMajor int
	FirmwareMinor int
}

// ParseVersion parses "<hardware>.<major>[.<minor>]".
func ParseVersion(s string) (Version, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return Version{}, errcode.New(errcode.FirmwareMismatch, "srv4: version", "unable to parse version number %q", s)
	}

	var v Version
	fields := []*int{&v.Hardware, &v.FirmwareMajor, &v.FirmwareMinor}
	for i, f := range fields {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Version{}, errcode.Wrap(errcode.FirmwareMismatch, "srv4: version", err, "unable to parse version number %q", s)
		}
		*f = n
	}

	return v, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Hardware, v.FirmwareMajor, v.FirmwareMinor)
}

// Requirement is the oldest firmware a driver supports on one hardware version.
// A zero Hardware accepts any hardware version.
type Requirement struct {
	Hardware int
	MinMajor int
	MinMinor int
}

// Check returns a errcode.FirmwareMismatch error when v does not satisfy r.
func (r Requirement) Check(v Version) error {
	const op = "srv4: version"

	if r.Hardware != 0 && v.Hardware != r.Hardware {
		return errcode.New(errcode.FirmwareMismatch, op,
			"expected hardware version number to be %d, got %d", r.Hardware, v.Hardware)
	}
	if v.FirmwareMajor < r.MinMajor || (v.FirmwareMajor == r.MinMajor && v.FirmwareMinor < r.MinMinor) {
		return errcode.New(errcode.FirmwareMismatch, op,
			"firmware %d.%d is too old, at least %d.%d is required, please update the board",
			v.FirmwareMajor, v.FirmwareMinor, r.MinMajor, r.MinMinor)
	}

	return nil
}
