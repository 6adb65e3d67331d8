// Package component defines the component kinds a board can expose, the interface a
// backend must implement to drive each kind, and the value objects robot programs use.
//
// Interface operations always take a component identifier and never the owning board;
// a backend has no reference to the board it serves.
package component

import (
	"reflect"
	"slices"
	"strings"
)

// Kind identifies a category of hardware facet, e.g. an LED or a GPIO pin.
type Kind string

const (
	KindLED           Kind = "led"
	KindGPIOPin       Kind = "gpio_pin"
	KindMotor         Kind = "motor"
	KindServo         Kind = "servo"
	KindPowerOutput   Kind = "power_output"
	KindPiezo         Kind = "piezo"
	KindButton        Kind = "button"
	KindBatterySensor Kind = "battery_sensor"
	KindUltrasound    Kind = "ultrasound"
)

var interfaces = map[Kind]reflect.Type{
	KindLED:           reflect.TypeFor[LEDInterface](),
	KindGPIOPin:       reflect.TypeFor[GPIOPinInterface](),
	KindMotor:         reflect.TypeFor[MotorInterface](),
	KindServo:         reflect.TypeFor[ServoInterface](),
	KindPowerOutput:   reflect.TypeFor[PowerOutputInterface](),
	KindPiezo:         reflect.TypeFor[PiezoInterface](),
	KindButton:        reflect.TypeFor[ButtonInterface](),
	KindBatterySensor: reflect.TypeFor[BatterySensorInterface](),
	KindUltrasound:    reflect.TypeFor[UltrasoundInterface](),
}

// Kinds returns every known component kind in name order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(interfaces))
	for k := range interfaces {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)

	return kinds
}

func (k Kind) String() string { return string(k) }

// Valid reports whether k is a known component kind.
func (k Kind) Valid() bool {
	_, ok := interfaces[k]
	return ok
}

// Interface returns the Go interface type a backend must implement to drive k,
// or nil for an unknown kind.
func (k Kind) Interface() reflect.Type {
	return interfaces[k]
}

// MissingMethods returns the methods of k's interface that t does not provide with a
// compatible signature. An empty result means t can drive k.
//
// t is the type as it will be used, typically a pointer to a driver struct.
func (k Kind) MissingMethods(t reflect.Type) []string {
	iface := k.Interface()
	if iface == nil {
		return []string{"<unknown component kind " + string(k) + ">"}
	}
	if t == nil {
		return methodNames(iface)
	}
	if t.Implements(iface) {
		return nil
	}

	var missing []string
	for i := range iface.NumMethod() {
		want := iface.Method(i)
		got, ok := t.MethodByName(want.Name)
		if !ok {
			missing = append(missing, want.Name)
			continue
		}
		if !sameSignature(want.Type, got.Type, t.Kind() != reflect.Interface) {
			missing = append(missing, want.Name+" (signature "+signature(got.Type, t.Kind() != reflect.Interface)+
				", want "+signature(want.Type, false)+")")
		}
	}

	return missing
}

func methodNames(iface reflect.Type) []string {
	names := make([]string, 0, iface.NumMethod())
	for i := range iface.NumMethod() {
		names = append(names, iface.Method(i).Name)
	}

	return names
}

// sameSignature compares an interface method type with a concrete method type.
// Concrete method types from reflect carry the receiver as their first input.
func sameSignature(want, got reflect.Type, hasReceiver bool) bool {
	offset := 0
	if hasReceiver {
		offset = 1
	}
	if got.NumIn()-offset != want.NumIn() || got.NumOut() != want.NumOut() || got.IsVariadic() != want.IsVariadic() {
		return false
	}
	for i := range want.NumIn() {
		if got.In(i+offset) != want.In(i) {
			return false
		}
	}
	for i := range want.NumOut() {
		if got.Out(i) != want.Out(i) {
			return false
		}
	}

	return true
}

func signature(fn reflect.Type, hasReceiver bool) string {
	offset := 0
	if hasReceiver {
		offset = 1
	}
	var in, out []string
	for i := offset; i < fn.NumIn(); i++ {
		in = append(in, fn.In(i).String())
	}
	for i := range fn.NumOut() {
		out = append(out, fn.Out(i).String())
	}

	s := "func(" + strings.Join(in, ", ") + ")"
	switch len(out) {
	case 0:
	case 1:
		s += " " + out[0]
	default:
		s += " (" + strings.Join(out, ", ") + ")"
	}

	return s
}
