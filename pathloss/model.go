// Large-scale fading (beta) for the links of a PB/RIS wireless power transfer system
package pathloss

import (
	"errors"
	"fmt"

	"github.com/wiless/vlib"
)

// Model returns the average power gain beta of a link of length d metres.
type Model interface {
	Beta(d float64) (float64, error)
	Setting() ModelSetting
}

// ErrInvalidDistance is returned for non-positive or non-finite link lengths.
var ErrInvalidDistance = errors.New("pathloss: distance must be positive and finite")

type PathLossType int

var PathLossTypes = [...]string{
	"NLoS",
	"LoS",
}

func (p PathLossType) String() string {
	if int(p) < 0 || int(p) >= len(PathLossTypes) {
		return "Unknown-PathLossType"
	}
	return PathLossTypes[p]
}

const (
	NLoS PathLossType = iota
	LoS
)

// SpeedOfLight in m/s, the value used for all default settings.
const SpeedOfLight = 3.0e8

type ModelSetting struct {
	Type     PathLossType
	FreqHz   float64
	Exponent float64
	C        float64 // propagation speed
}

func (m *ModelSetting) SetDefault() {
	m.Type = NLoS
	m.FreqHz = 915e6
	m.Exponent = 3.5
	m.C = SpeedOfLight
}

// Lamda returns the carrier wavelength.
func (m ModelSetting) Lamda() float64 {
	return m.C / m.FreqHz
}

func (m ModelSetting) Validate() error {
	if !(m.FreqHz > 0) {
		return fmt.Errorf("pathloss: frequency must be positive, got %v", m.FreqHz)
	}
	if !(m.C > 0) {
		return fmt.Errorf("pathloss: propagation speed must be positive, got %v", m.C)
	}
	if m.Exponent < 0 {
		return fmt.Errorf("pathloss: exponent must be non-negative, got %v", m.Exponent)
	}
	return nil
}

// Model builds the concrete model selected by Type.
func (m ModelSetting) Model() (Model, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	switch m.Type {
	case NLoS:
		return &NLoSModel{m}, nil
	case LoS:
		return &LoSModel{m}, nil
	default:
		return nil, fmt.Errorf("pathloss: unsupported type %v", m.Type)
	}
}

func NewModelSetting(t PathLossType, freqHz, exponent float64) *ModelSetting {
	result := new(ModelSetting)
	result.SetDefault()
	result.Type = t
	result.FreqHz = freqHz
	result.Exponent = exponent
	return result
}

// LossInDb returns the path loss in dB (positive for attenuation).
func LossInDb(m Model, d float64) (float64, error) {
	beta, err := m.Beta(d)
	if err != nil {
		return 0, err
	}
	return -vlib.Db(beta), nil
}
