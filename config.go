package rischarge

import (
	"fmt"
	"math"
	"strings"

	"github.com/wiless/rischarge/TxRx"
	"github.com/wiless/rischarge/antenna"
	"github.com/wiless/rischarge/channel"
	"github.com/wiless/rischarge/deployment"
	"github.com/wiless/rischarge/pathloss"
)

// ServeOrder selects the sequence in which the beacon charges the devices.
type ServeOrder int

const (
	// ByPB serves devices by ascending distance to the power beacon.
	ByPB ServeOrder = iota
	// ByRIS serves devices by ascending distance to the RIS.
	ByRIS
	// Clustered serves whole clusters, closest cluster to the PB first.
	Clustered
	// ClusteredRIS is Clustered with clusters and members ranked by RIS distance.
	ClusteredRIS
)

var ServeOrders = [...]string{
	"pb",
	"ris",
	"clustered",
	"clustered-ris",
}

func (s ServeOrder) String() string {
	if int(s) < 0 || int(s) >= len(ServeOrders) {
		return "Unknown-ServeOrder"
	}
	return ServeOrders[s]
}

func (s ServeOrder) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ServeOrder) UnmarshalText(text []byte) error {
	for i, name := range ServeOrders {
		if strings.EqualFold(name, strings.TrimSpace(string(text))) {
			*s = ServeOrder(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown serve order %q", ErrConfiguration, text)
}

// Kappa holds the Rician factor of each link.
type Kappa struct {
	PBDevice  float64 `yaml:"pb_device" mapstructure:"pb_device"`
	PBRIS     float64 `yaml:"pb_ris" mapstructure:"pb_ris"`
	RISDevice float64 `yaml:"ris_device" mapstructure:"ris_device"`
}

// Config carries every physical constant of a run. The device count and the
// placement live in Drop; Run itself takes the devices from the geometry it
// is given.
type Config struct {
	Antennas    int     `yaml:"antennas" mapstructure:"antennas"`         // N
	RISElements int     `yaml:"ris_elements" mapstructure:"ris_elements"` // M
	FreqHz      float64 `yaml:"freq_hz" mapstructure:"freq_hz"`
	C           float64 `yaml:"c" mapstructure:"c"`
	Alpha       float64 `yaml:"alpha" mapstructure:"alpha"`   // NLoS exponent, PB-Device and RIS-Device
	Alpha2      float64 `yaml:"alpha2" mapstructure:"alpha2"` // LoS exponent, PB-RIS
	Kappa       Kappa   `yaml:"kappa" mapstructure:"kappa"`

	TxPowerW float64 `yaml:"tx_power_w" mapstructure:"tx_power_w"`
	EMin     float64 `yaml:"e_min" mapstructure:"e_min"` // joules
	Mu       float64 `yaml:"mu" mapstructure:"mu"`
	A        float64 `yaml:"a" mapstructure:"a"`
	B        float64 `yaml:"b" mapstructure:"b"`

	Seed       uint64     `yaml:"seed" mapstructure:"seed"`
	Workers    int        `yaml:"workers" mapstructure:"workers"`
	ServeOrder ServeOrder `yaml:"serve_order" mapstructure:"serve_order"`

	Drop deployment.DropSetting `yaml:"drop" mapstructure:"drop"`
}

// DefaultConfig returns the reference scenario: 30 devices, a 4 antenna
// beacon at 915 MHz radiating 3 W and a 100 element RIS.
func DefaultConfig() Config {
	aas := antenna.NewAAS()
	hv := TxRx.NewLogistic()
	return Config{
		Antennas:    aas.N,
		RISElements: aas.RISElements,
		FreqHz:      aas.FreqHz,
		C:           pathloss.SpeedOfLight,
		Alpha:       3.5,
		Alpha2:      2,
		Kappa:       Kappa{PBDevice: 1.5, PBRIS: 1.7, RISDevice: 1.4},
		TxPowerW:    aas.TxPowerW,
		EMin:        1e-6,
		Mu:          hv.Mu,
		A:           hv.A,
		B:           hv.B,
		Seed:        1,
		Workers:     1,
		ServeOrder:  ByPB,
		Drop:        *deployment.NewDropSetting(),
	}
}

// Validate rejects missing or contradictory constants. Every error wraps
// ErrConfiguration.
func (c Config) Validate() error {
	bad := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: "+format, append([]interface{}{ErrConfiguration}, args...)...)
	}
	switch {
	case c.Antennas < 1:
		return bad("antennas must be >= 1, got %d", c.Antennas)
	case c.RISElements < 1:
		return bad("RIS elements must be >= 1, got %d", c.RISElements)
	case !finitePositive(c.FreqHz):
		return bad("frequency must be positive, got %v", c.FreqHz)
	case !finitePositive(c.C):
		return bad("propagation speed must be positive, got %v", c.C)
	case !finiteNonNegative(c.Alpha) || !finiteNonNegative(c.Alpha2):
		return bad("path loss exponents must be non-negative, got %v and %v", c.Alpha, c.Alpha2)
	case !finitePositive(c.TxPowerW):
		return bad("transmit power must be positive, got %v", c.TxPowerW)
	case !finitePositive(c.EMin):
		return bad("E_min must be positive, got %v", c.EMin)
	case c.Workers < 0:
		return bad("workers must be >= 0, got %d", c.Workers)
	case c.ServeOrder < ByPB || c.ServeOrder > ClusteredRIS:
		return bad("unknown serve order %d", c.ServeOrder)
	}
	kappas := []struct {
		link string
		v    float64
	}{
		{"PB-Device", c.Kappa.PBDevice},
		{"PB-RIS", c.Kappa.PBRIS},
		{"RIS-Device", c.Kappa.RISDevice},
	}
	for _, k := range kappas {
		if !finiteNonNegative(k.v) {
			return bad("Rician factor %s must be >= 0, got %v", k.link, k.v)
		}
	}
	if err := c.AAS().Validate(); err != nil {
		return bad("%v", err)
	}
	if err := c.Logistic().Validate(); err != nil {
		return bad("%v", err)
	}
	if err := c.Drop.Validate(); err != nil {
		return bad("%v", err)
	}
	return nil
}

// Logistic returns the harvesting curve of the devices.
func (c Config) Logistic() TxRx.Logistic {
	return TxRx.Logistic{Mu: c.Mu, A: c.A, B: c.B}
}

// AAS returns the beacon array and RIS size.
func (c Config) AAS() antenna.SettingAAS {
	return antenna.SettingAAS{N: c.Antennas, TxPowerW: c.TxPowerW, FreqHz: c.FreqHz, RISElements: c.RISElements}
}

// ChannelSetting builds the synthesizer parameters. Both device legs are NLoS
// with exponent Alpha, the PB-RIS leg is LoS with Alpha2.
func (c Config) ChannelSetting() (channel.Setting, error) {
	model := func(t pathloss.PathLossType, exponent float64) (pathloss.Model, error) {
		ms := pathloss.NewModelSetting(t, c.FreqHz, exponent)
		ms.C = c.C
		return ms.Model()
	}
	s := channel.Setting{
		N:         c.Antennas,
		M:         c.RISElements,
		PBDevice:  channel.Rician{Kappa: c.Kappa.PBDevice},
		PBRIS:     channel.Rician{Kappa: c.Kappa.PBRIS},
		RISDevice: channel.Rician{Kappa: c.Kappa.RISDevice},
	}
	var err error
	if s.PBDeviceLoss, err = model(pathloss.NLoS, c.Alpha); err != nil {
		return s, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if s.PBRISLoss, err = model(pathloss.LoS, c.Alpha2); err != nil {
		return s, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if s.RISDeviceLoss, err = model(pathloss.NLoS, c.Alpha); err != nil {
		return s, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return s, nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func finiteNonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}
