// Package device models the compute placement attached to parameter and input
// handles. Combining handles on different devices fails fast with
// ErrDeviceMismatch instead of a generic runtime error.
package device

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Device identifies a compute placement, e.g. "cpu" or "cuda:0".
type Device struct {
	Kind  string
	Index int
}

// CPU is the only backend that executes in this build.
var CPU = Device{Kind: "cpu"}

var (
	// ErrDeviceMismatch is matched (errors.Is) by every *MismatchError.
	ErrDeviceMismatch = errors.New("device mismatch")
	// ErrDeviceUnavailable is returned when moving a handle to a device
	// without a registered backend.
	ErrDeviceUnavailable = errors.New("device unavailable")
)

// MismatchError reports the two placements that were combined.
type MismatchError struct {
	Params Device
	Input  Device
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("expected all tensors to be on the same device, but found model parameters on %s and inputs on %s", e.Params, e.Input)
}

func (e *MismatchError) Is(target error) bool { return target == ErrDeviceMismatch }

// Parse reads "cpu", "cuda", "cuda:1", "mps" ... Kind is lower-cased.
func Parse(s string) (Device, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CPU, nil
	}
	kind, idx, hasIdx := strings.Cut(s, ":")
	if kind == "" {
		return Device{}, fmt.Errorf("invalid device %q", s)
	}
	d := Device{Kind: kind}
	if hasIdx {
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 {
			return Device{}, fmt.Errorf("invalid device index in %q", s)
		}
		d.Index = n
	}
	return d, nil
}

// MustParse is Parse for constants.
func MustParse(s string) Device {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Device) String() string {
	if d.Kind == "" {
		return CPU.String()
	}
	if d.Kind == "cpu" && d.Index == 0 {
		return "cpu"
	}
	return fmt.Sprintf("%s:%d", d.Kind, d.Index)
}

// Equal compares placements, treating the zero Device as CPU.
func (d Device) Equal(o Device) bool { return d.normalize() == o.normalize() }

func (d Device) normalize() Device {
	if d.Kind == "" {
		return CPU
	}
	return d
}

// Available reports whether a backend is registered for d.
func Available(d Device) bool { return d.normalize().Kind == "cpu" }

// Check returns a *MismatchError when params and input live on different devices.
func Check(params, input Device) error {
	if params.Equal(input) {
		return nil
	}
	return &MismatchError{Params: params.normalize(), Input: input.normalize()}
}
