package rischarge

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGeometry is returned when a link length is zero, negative or
	// not finite, or when an ordering is not a permutation of the devices.
	ErrInvalidGeometry = errors.New("rischarge: invalid geometry")

	// ErrDegenerateBeamforming is returned when a line-of-sight coefficient
	// has zero magnitude and the beam phase is undefined.
	ErrDegenerateBeamforming = errors.New("rischarge: degenerate beamforming")

	// ErrHarvestingModel marks a device whose harvested power does not exceed
	// the circuit floor, or whose charging time is not a finite non-negative number.
	ErrHarvestingModel = errors.New("rischarge: harvesting model inconsistent")

	// ErrConfiguration is returned by Config.Validate.
	ErrConfiguration = errors.New("rischarge: invalid configuration")
)

// DeviceError reports a failure that only affects one device.
type DeviceError struct {
	Index int
	Err   error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %d: %v", e.Index, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
