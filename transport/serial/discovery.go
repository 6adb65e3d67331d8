package serial

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-robohal/errcode"
	"go.bug.st/serial/enumerator"
)

// USBID is a USB vendor and product ID pair.
type USBID struct {
	VID uint16
	PID uint16
}

func (id USBID) String() string {
	return fmt.Sprintf("%04x:%04x", id.VID, id.PID)
}

// PortInfo describes one serial port found on the system.
type PortInfo struct {
	Device       string
	IsUSB        bool
	USBID        USBID
	SerialNumber string
	Product      string
}

// PortLister lists the serial ports on the system.
type PortLister func() ([]PortInfo, error)

// ListPorts lists every serial port known to the operating system enumerator.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errcode.Wrap(errcode.Communication, "serial: list ports", err, "cannot enumerate serial ports: %v", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		p := PortInfo{
			Device:       d.Name,
			IsUSB:        d.IsUSB,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
		if d.IsUSB {
			p.USBID = USBID{VID: parseHexID(d.VID), PID: parseHexID(d.PID)}
		}
		ports = append(ports, p)
	}

	return ports, nil
}

// FindPorts returns the USB ports from list whose vendor and product ID are one of ids.
// A nil list selects ListPorts.
func FindPorts(list PortLister, ids ...USBID) ([]PortInfo, error) {
	if list == nil {
		list = ListPorts
	}

	ports, err := list()
	if err != nil {
		return nil, err
	}

	var found []PortInfo
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		for _, id := range ids {
			if p.USBID == id {
				found = append(found, p)
				break
			}
		}
	}

	return found, nil
}

func parseHexID(s string) uint16 {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0
	}

	return uint16(v)
}
