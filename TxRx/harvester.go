package TxRx

import (
	"errors"
	"fmt"
	"math"
)

// ErrNonPositiveNet is returned when the harvested power does not rise above
// the idle floor mu*Omega of the logistic curve.
var ErrNonPositiveNet = errors.New("TxRx: harvested power does not exceed the circuit floor")

// Logistic is the saturating RF-to-DC conversion curve
//
//	Gamma(P) = Mu / (1 + exp(-A (P - B)))
//
// Mu is the maximum harvestable power, A and B are circuit constants.
type Logistic struct {
	Mu float64
	A  float64
	B  float64
}

func (l *Logistic) SetDefault() {
	l.Mu = 10.73e-3
	l.A = 0.2308
	l.B = 5.365
}

func NewLogistic() Logistic {
	var result Logistic
	result.SetDefault()
	return result
}

func (l Logistic) Validate() error {
	if !(l.Mu > 0) || math.IsInf(l.Mu, 0) {
		return fmt.Errorf("TxRx: Mu must be positive and finite, got %v", l.Mu)
	}
	if !(l.A > 0) || math.IsInf(l.A, 0) {
		return fmt.Errorf("TxRx: A must be positive and finite, got %v", l.A)
	}
	if math.IsNaN(l.B) || math.IsInf(l.B, 0) {
		return fmt.Errorf("TxRx: B must be finite, got %v", l.B)
	}
	if o := l.Omega(); !(o >= 0 && o < 1) {
		return fmt.Errorf("TxRx: Omega=%v outside [0,1)", o)
	}
	return nil
}

// Harvest returns Gamma(P).
func (l Logistic) Harvest(p float64) float64 {
	return l.Mu / (1 + math.Exp(-l.A*(p-l.B)))
}

// Omega is the normalised curve value at P=0.
func (l Logistic) Omega() float64 {
	return 1 / (1 + math.Exp(l.A*l.B))
}

// Floor is mu*Omega, the output of the circuit with no input power.
func (l Logistic) Floor() float64 {
	return l.Mu * l.Omega()
}

// Net returns Gamma(P) - mu*Omega. For the tiny powers seen at the devices
// the direct difference cancels, so it is evaluated as
//
//	mu (1-Omega) sigma(A(P-B)) (1 - exp(-A P))
func (l Logistic) Net(p float64) float64 {
	sigma := 1 / (1 + math.Exp(-l.A*(p-l.B)))
	return l.Mu * (1 - l.Omega()) * sigma * -math.Expm1(-l.A*p)
}

// Efficiency returns Net(P)/(1-Omega), the energy rate actually stored.
func (l Logistic) Efficiency(p float64) (float64, error) {
	net := l.Net(p)
	if !(net > 0) || math.IsInf(net, 0) {
		return 0, fmt.Errorf("%w: P=%g net=%g", ErrNonPositiveNet, p, net)
	}
	return net / (1 - l.Omega()), nil
}

// TimeFor returns the time needed to store energy at received power P:
//
//	t = energy (1-Omega) / (Gamma(P) - mu Omega)
func (l Logistic) TimeFor(energy, p float64) (float64, error) {
	rate, err := l.Efficiency(p)
	if err != nil {
		return 0, err
	}
	t := energy / rate
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return 0, fmt.Errorf("%w: t=%g for E=%g P=%g", ErrNonPositiveNet, t, energy, p)
	}
	return t, nil
}

// Harvester tracks the energy one device stores while the beacon serves slots.
type Harvester struct {
	Device int
	Model  Logistic
	energy float64
}

func NewHarvester(device int, model Logistic) *Harvester {
	return &Harvester{Device: device, Model: model}
}

// Accumulate adds the energy stored during a slot of the given duration in
// which the device receives power p, and returns that energy.
func (h *Harvester) Accumulate(duration, p float64) (float64, error) {
	if duration == 0 {
		return 0, nil
	}
	rate, err := h.Model.Efficiency(p)
	if err != nil {
		return 0, fmt.Errorf("device %d: %w", h.Device, err)
	}
	e := duration * rate
	h.energy += e
	return e, nil
}

func (h *Harvester) Energy() float64 {
	return h.energy
}

// Deficit returns how much energy is still missing to reach target, never negative.
func (h *Harvester) Deficit(target float64) float64 {
	return math.Max(target-h.energy, 0)
}
