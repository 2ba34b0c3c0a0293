package rischarge

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wiless/rischarge/TxRx"
)

// ChannelSource gives the effective channel of each device.
type ChannelSource interface {
	Devices() int
	Column(k int) []complex128
}

// Slot is one completed step of the charging schedule: the beacon pointed
// device's beam for Duration seconds.
type Slot struct {
	Device   int
	Duration float64
}

// Step is the solver's outcome for one device.
type Step struct {
	Device         int
	ReceivedPower  float64
	HarvestedPower float64
	Incidental     float64
	Time           float64
	Status         DeviceStatus
	Err            error
}

// Solver computes the dedicated charging time of every device in serve
// order, crediting the energy collected during earlier slots.
type Solver struct {
	Model   TxRx.Logistic
	EMin    float64
	Workers int // cross power fan-out per device, < 2 runs inline
	Logger  log.FieldLogger
}

// Solve runs one forward pass over order. Device k only ever reads the slots
// of devices served before it. Per-device model failures are reported in the
// returned steps; the error is only set for bad input or a cancelled ctx.
func (s *Solver) Solve(ctx context.Context, beacon *TxRx.Beacon, h ChannelSource, order []int) ([]Step, error) {
	k := h.Devices()
	if beacon.Slots() != k {
		return nil, fmt.Errorf("rischarge: %d beams for %d devices", beacon.Slots(), k)
	}
	if len(order) != k {
		return nil, fmt.Errorf("%w: serve order has %d entries for %d devices", ErrInvalidGeometry, len(order), k)
	}
	logger := s.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	history := make([]Slot, 0, k)
	served := make([]bool, k)
	steps := make([]Step, 0, k)
	for i, dev := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if dev < 0 || dev >= k {
			return nil, fmt.Errorf("%w: serve order entry %d is device %d", ErrInvalidGeometry, i, dev)
		}
		if served[dev] {
			return nil, fmt.Errorf("%w: device %d appears twice in the serve order", ErrInvalidGeometry, dev)
		}
		served[dev] = true
		step, err := s.step(ctx, beacon, h.Column(dev), dev, history[:i:i])
		if err != nil {
			return nil, err
		}
		fields := log.Fields{"slot": i, "device": dev, "pr": step.ReceivedPower, "incidental": step.Incidental, "t": step.Time}
		if step.Err != nil {
			logger.WithFields(fields).WithError(step.Err).Warn("rischarge: device cannot be charged")
		} else {
			logger.WithFields(fields).Debug("rischarge: device scheduled")
		}
		history = append(history, Slot{Device: dev, Duration: step.Time})
		steps = append(steps, step)
	}
	return steps, nil
}

func (s *Solver) step(ctx context.Context, beacon *TxRx.Beacon, hk []complex128, dev int, prior []Slot) (Step, error) {
	step := Step{Device: dev}
	step.ReceivedPower = beacon.PowerAt(dev, hk)
	step.HarvestedPower = s.Model.Harvest(step.ReceivedPower)

	cross, err := s.crossPowers(ctx, beacon, hk, prior)
	if err != nil {
		return step, err
	}

	// reduce in slot order so the sum does not depend on Workers
	harvester := TxRx.NewHarvester(dev, s.Model)
	for j, slot := range prior {
		if _, err := harvester.Accumulate(slot.Duration, cross[j]); err != nil {
			return s.inconsistent(step, fmt.Errorf("slot of device %d: %w", slot.Device, err)), nil
		}
	}
	step.Incidental = harvester.Energy()
	if step.Incidental >= s.EMin {
		step.Status = ChargedByNeighbours
		return step, nil
	}

	t, err := s.Model.TimeFor(harvester.Deficit(s.EMin), step.ReceivedPower)
	if err != nil {
		return s.inconsistent(step, err), nil
	}
	step.Time = t
	step.Status = ChargedByDedicatedSlot
	return step, nil
}

// crossPowers returns the power device k receives during each prior slot.
func (s *Solver) crossPowers(ctx context.Context, beacon *TxRx.Beacon, hk []complex128, prior []Slot) ([]float64, error) {
	cross := make([]float64, len(prior))
	if s.Workers < 2 {
		for j, slot := range prior {
			if slot.Duration > 0 {
				cross[j] = beacon.PowerAt(slot.Device, hk)
			}
		}
		return cross, nil
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for j, slot := range prior {
		if slot.Duration == 0 {
			continue
		}
		g.Go(func() error {
			cross[j] = beacon.PowerAt(slot.Device, hk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cross, ctx.Err()
}

func (s *Solver) inconsistent(step Step, err error) Step {
	if !errors.Is(err, ErrHarvestingModel) {
		err = fmt.Errorf("%w: %w", ErrHarvestingModel, err)
	}
	step.Err = &DeviceError{Index: step.Device, Err: err}
	step.Status = Inconsistent
	step.Time = 0
	return step
}
