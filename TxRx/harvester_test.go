package TxRx_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiless/rischarge/TxRx"
)

func TestLogisticConstants(t *testing.T) {
	l := TxRx.NewLogistic()
	require.NoError(t, l.Validate())

	omega := 1 / (1 + math.Exp(0.2308*5.365))
	assert.InEpsilon(t, omega, l.Omega(), 1e-15)
	assert.InEpsilon(t, l.Harvest(0), l.Floor(), 1e-12, "curve passes through the floor at P=0")
	assert.InDelta(t, l.Mu, l.Harvest(1e6), 1e-12, "saturates at mu")
}

func TestNetMatchesDirectDifference(t *testing.T) {
	l := TxRx.NewLogistic()
	for _, p := range []float64{1e-3, 0.1, 1, 5.365, 20} {
		direct := l.Harvest(p) - l.Floor()
		assert.InEpsilon(t, direct, l.Net(p), 1e-9, "P=%v", p)
	}
	assert.Equal(t, 0.0, l.Net(0))
	// well below where the direct difference loses all precision
	assert.Greater(t, l.Net(1e-18), 0.0)
}

func TestTimeFor(t *testing.T) {
	l := TxRx.NewLogistic()
	p := 2e-7
	eMin := 1e-6
	got, err := l.TimeFor(eMin, p)
	require.NoError(t, err)
	want := eMin * (1 - l.Omega()) / (l.Harvest(p) - l.Mu*l.Omega())
	assert.InEpsilon(t, want, got, 1e-6)

	_, err = l.TimeFor(eMin, 0)
	assert.ErrorIs(t, err, TxRx.ErrNonPositiveNet)
	_, err = l.TimeFor(eMin, -1)
	assert.ErrorIs(t, err, TxRx.ErrNonPositiveNet)
}

func TestLogisticValidate(t *testing.T) {
	assert.Error(t, TxRx.Logistic{Mu: 0, A: 1, B: 1}.Validate())
	assert.Error(t, TxRx.Logistic{Mu: 1, A: -1, B: 1}.Validate())
	assert.Error(t, TxRx.Logistic{Mu: 1, A: 1, B: math.NaN()}.Validate())
	assert.NoError(t, TxRx.Logistic{Mu: 1, A: 1, B: -3}.Validate())
}

func TestHarvesterAccumulate(t *testing.T) {
	l := TxRx.NewLogistic()
	h := TxRx.NewHarvester(3, l)

	e1, err := h.Accumulate(100, 1e-6)
	require.NoError(t, err)
	e2, err := h.Accumulate(50, 2e-6)
	require.NoError(t, err)
	assert.InEpsilon(t, e1+e2, h.Energy(), 1e-15)

	rate, err := l.Efficiency(1e-6)
	require.NoError(t, err)
	assert.InEpsilon(t, 100*rate, e1, 1e-15)

	e0, err := h.Accumulate(0, 0)
	require.NoError(t, err, "an empty slot never fails")
	assert.Equal(t, 0.0, e0)

	_, err = h.Accumulate(10, 0)
	assert.ErrorIs(t, err, TxRx.ErrNonPositiveNet)

	assert.Equal(t, 0.0, h.Deficit(h.Energy()/2))
	assert.InEpsilon(t, h.Energy(), h.Deficit(2*h.Energy()), 1e-15)
}

func TestReceivedPower(t *testing.T) {
	b := []complex128{1, 1i}
	h := []complex128{1, 1i}
	// b.h^H = 1*1 + 1i*conj(1i) = 2
	assert.InDelta(t, 4.0, TxRx.ReceivedPower(b, h), 1e-15)
	assert.InDelta(t, 0.0, TxRx.ReceivedPower([]complex128{1, -1}, []complex128{1, 1}), 1e-15)
	assert.Panics(t, func() { TxRx.ReceivedPower(b, h[:1]) })

	beacon := TxRx.NewBeacon([][]complex128{b, {1, -1}})
	assert.Equal(t, 2, beacon.Slots())
	assert.Equal(t, b, beacon.Slot(0))
	assert.InDelta(t, 4.0, beacon.PowerAt(0, h), 1e-15)
}
