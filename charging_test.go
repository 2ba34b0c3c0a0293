package rischarge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiless/rischarge"
	"github.com/wiless/rischarge/TxRx"
)

type columns [][]complex128

func (c columns) Devices() int              { return len(c) }
func (c columns) Column(k int) []complex128 { return c[k] }

func newSolver(workers int) *rischarge.Solver {
	return &rischarge.Solver{Model: TxRx.NewLogistic(), EMin: 1e-6, Workers: workers}
}

func TestSolverFirstSlot(t *testing.T) {
	h := columns{{1e-4, 1e-4}}
	beacon := TxRx.NewBeacon([][]complex128{{1, 1}})
	steps, err := newSolver(1).Solve(context.Background(), beacon, h, []int{0})
	require.NoError(t, err)
	require.Len(t, steps, 1)

	l := TxRx.NewLogistic()
	p := 4e-8
	assert.InEpsilon(t, p, steps[0].ReceivedPower, 1e-12)
	want := 1e-6 * (1 - l.Omega()) / (l.Harvest(p) - l.Mu*l.Omega())
	assert.InEpsilon(t, want, steps[0].Time, 1e-6)
	assert.Equal(t, rischarge.ChargedByDedicatedSlot, steps[0].Status)
	assert.Zero(t, steps[0].Incidental)
}

func TestSolverChargedByNeighbours(t *testing.T) {
	// device 1 sees twice the field of device 0 in every slot
	h := columns{{1e-4, 1e-4}, {2e-4, 2e-4}}
	beacon := TxRx.NewBeacon([][]complex128{{1, 1}, {1, 1}})
	steps, err := newSolver(1).Solve(context.Background(), beacon, h, []int{0, 1})
	require.NoError(t, err)

	assert.Greater(t, steps[0].Time, 0.0)
	assert.Equal(t, 0.0, steps[1].Time)
	assert.Equal(t, rischarge.ChargedByNeighbours, steps[1].Status)
	assert.GreaterOrEqual(t, steps[1].Incidental, 1e-6)
	assert.NoError(t, steps[1].Err)
}

func TestSolverPartialCredit(t *testing.T) {
	// served the other way round, device 0 only collects a quarter of the power
	h := columns{{1e-4, 1e-4}, {2e-4, 2e-4}}
	beacon := TxRx.NewBeacon([][]complex128{{1, 1}, {1, 1}})
	steps, err := newSolver(1).Solve(context.Background(), beacon, h, []int{1, 0})
	require.NoError(t, err)

	l := TxRx.NewLogistic()
	rate0, err := l.Efficiency(4e-8)
	require.NoError(t, err)
	credit := steps[0].Time * rate0
	assert.InEpsilon(t, credit, steps[1].Incidental, 1e-9)
	assert.InEpsilon(t, (1e-6-credit)/rate0, steps[1].Time, 1e-9)
	assert.Equal(t, 0, steps[1].Device)
}

func TestSolverInconsistentDevice(t *testing.T) {
	h := columns{{0, 0}, {1e-4, 1e-4}}
	beacon := TxRx.NewBeacon([][]complex128{{1, 1}, {1, 1}})
	steps, err := newSolver(1).Solve(context.Background(), beacon, h, []int{0, 1})
	require.NoError(t, err)

	assert.Equal(t, rischarge.Inconsistent, steps[0].Status)
	assert.Equal(t, 0.0, steps[0].Time)
	assert.ErrorIs(t, steps[0].Err, rischarge.ErrHarvestingModel)
	assert.ErrorIs(t, steps[0].Err, TxRx.ErrNonPositiveNet)
	var de *rischarge.DeviceError
	require.True(t, errors.As(steps[0].Err, &de))
	assert.Equal(t, 0, de.Index)

	// an inconsistent device holds no slot, so the next one gets no credit
	assert.Equal(t, rischarge.ChargedByDedicatedSlot, steps[1].Status)
	assert.Zero(t, steps[1].Incidental)
}

func TestSolverParallelMatchesSequential(t *testing.T) {
	h := columns{}
	beams := [][]complex128{}
	for k := 1; k <= 12; k++ {
		f := complex(float64(k)*1e-5, 0)
		h = append(h, []complex128{f, f * 1i, -f})
		beams = append(beams, []complex128{1, complex(0, float64(k%3+1)), 1})
	}
	order := []int{3, 0, 11, 5, 1, 2, 4, 10, 6, 9, 7, 8}
	beacon := TxRx.NewBeacon(beams)

	seq, err := newSolver(1).Solve(context.Background(), beacon, h, order)
	require.NoError(t, err)
	par, err := newSolver(4).Solve(context.Background(), beacon, h, order)
	require.NoError(t, err)
	assert.Equal(t, seq, par)
}

func TestSolverBadInput(t *testing.T) {
	h := columns{{1, 1}, {1, 1}}
	beacon := TxRx.NewBeacon([][]complex128{{1, 1}, {1, 1}})
	_, err := newSolver(1).Solve(context.Background(), beacon, h, []int{0})
	assert.ErrorIs(t, err, rischarge.ErrInvalidGeometry)
	_, err = newSolver(1).Solve(context.Background(), beacon, h, []int{0, 2})
	assert.ErrorIs(t, err, rischarge.ErrInvalidGeometry)
	steps, err := newSolver(1).Solve(context.Background(), beacon, h, []int{0, 0})
	assert.ErrorIs(t, err, rischarge.ErrInvalidGeometry, "a device cannot be served twice")
	assert.Nil(t, steps)
	_, err = newSolver(1).Solve(context.Background(), TxRx.NewBeacon(nil), h, []int{0, 1})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newSolver(1).Solve(ctx, beacon, h, []int{0, 1})
	assert.ErrorIs(t, err, context.Canceled)
}
