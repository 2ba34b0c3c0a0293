package rischarge_test

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wiless/vlib"

	"github.com/wiless/rischarge"
	"github.com/wiless/rischarge/TxRx"
	"github.com/wiless/rischarge/antenna"
	"github.com/wiless/rischarge/deployment"
)

func dropFor(t *testing.T, cfg rischarge.Config) rischarge.Geometry {
	t.Helper()
	g, err := deployment.Drop(cfg.Drop, rand.NewPCG(cfg.Drop.Seed, 0))
	require.NoError(t, err)
	return g
}

func runDefault(t *testing.T, mutate func(*rischarge.Config)) (*rischarge.Result, rischarge.Config) {
	t.Helper()
	cfg := rischarge.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	res, err := rischarge.Run(context.Background(), cfg, dropFor(t, cfg))
	require.NoError(t, err)
	return res, cfg
}

func TestRunChannelsAndBeams(t *testing.T) {
	res, cfg := runDefault(t, nil)

	assert.True(t, res.Links.Finite())
	assert.True(t, antenna.IsUnitDiagonal(res.Links.Theta, 1e-12))
	n, k := res.Links.Effective.Dims()
	assert.Equal(t, cfg.Antennas, n)
	assert.Equal(t, cfg.Drop.Devices, k)

	require.Len(t, res.Beams, k)
	for i, b := range res.Beams {
		assert.InDelta(t, cfg.TxPowerW, antenna.Power(b), 1e-12, "device %d", i)
	}
	assert.True(t, res.TotalDefined)
	assert.Empty(t, res.Errors)
}

func TestRunFirstDeviceClosedForm(t *testing.T) {
	res, cfg := runDefault(t, nil)

	first := res.Order[0]
	d := res.Devices[first]
	assert.Equal(t, 0, d.Slot)
	assert.Equal(t, 0, d.RankPB)
	assert.Zero(t, d.Incidental)

	l := cfg.Logistic()
	pr := TxRx.ReceivedPower(res.Beams[first], res.Links.Column(first))
	assert.Equal(t, pr, d.ReceivedPower)
	want := cfg.EMin * (1 - l.Omega()) / (l.Harvest(pr) - l.Mu*l.Omega())
	assert.Greater(t, want, 0.0)
	assert.InEpsilon(t, want, res.ChargingTimes[0], 1e-6)
}

func TestRunIdempotent(t *testing.T) {
	a, _ := runDefault(t, nil)
	b, _ := runDefault(t, nil)
	assert.Equal(t, a.ChargingTimes, b.ChargingTimes)
	assert.Equal(t, a.Total, b.Total)

	par, _ := runDefault(t, func(c *rischarge.Config) { c.Workers = 4 })
	assert.Equal(t, a.ChargingTimes, par.ChargingTimes, "worker count must not change results")

	other, _ := runDefault(t, func(c *rischarge.Config) { c.Seed = 99 })
	assert.NotEqual(t, a.ChargingTimes, other.ChargingTimes)
}

func TestRunMonotonicInEMin(t *testing.T) {
	low, _ := runDefault(t, nil)
	high, _ := runDefault(t, func(c *rischarge.Config) { c.EMin = 3e-6 })
	for i := range low.ChargingTimes {
		assert.GreaterOrEqual(t, high.ChargingTimes[i], low.ChargingTimes[i], "slot %d", i)
	}
	assert.Greater(t, high.Total, low.Total)
}

func TestRunTotalIsSum(t *testing.T) {
	for _, k := range []int{1, 5, 30} {
		res, _ := runDefault(t, func(c *rischarge.Config) { c.Drop.Devices = k })
		require.Len(t, res.ChargingTimes, k)
		var sum float64
		for _, v := range res.ChargingTimes {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.Equal(t, sum, res.Total, "K=%d", k)
		assert.InEpsilon(t, vlib.Sum(res.ChargingTimes), res.Total, 1e-12)
	}
}

func TestRunNeighboursChargedIsZero(t *testing.T) {
	res, cfg := runDefault(t, nil)
	for _, d := range res.Devices {
		if d.Incidental >= cfg.EMin {
			assert.Equal(t, 0.0, d.ChargingTime)
			assert.Equal(t, rischarge.ChargedByNeighbours, d.Status)
		} else {
			assert.Equal(t, rischarge.ChargedByDedicatedSlot, d.Status)
			assert.Greater(t, d.ChargingTime, 0.0)
		}
	}
}

func TestRunCausalOrdering(t *testing.T) {
	cfg := rischarge.DefaultConfig()
	g := dropFor(t, cfg)
	before, err := rischarge.Run(context.Background(), cfg, g)
	require.NoError(t, err)

	// push the last device further out along its ray from the PB
	last := g.ByPB[len(g.ByPB)-1]
	moved := append([]vlib.Location3D(nil), g.Devices...)
	moved[last] = vlib.Location3D{X: 1.5 * moved[last].X, Y: 1.5 * moved[last].Y}
	g2 := deployment.NewGeometry(g.PB, g.RIS, moved)
	require.Equal(t, g.ByPB, g2.ByPB)

	after, err := rischarge.Run(context.Background(), cfg, g2)
	require.NoError(t, err)
	n := len(before.ChargingTimes) - 1
	assert.Equal(t, before.ChargingTimes[:n], after.ChargingTimes[:n])
	assert.NotEqual(t, before.ChargingTimes[n], after.ChargingTimes[n])
}

func TestRunInconsistentFlagsTotal(t *testing.T) {
	// the curve is so flat that no device nets any energy
	res, cfg := runDefault(t, func(c *rischarge.Config) { c.A = 5e-324 })

	assert.False(t, res.TotalDefined)
	assert.Len(t, res.Errors, cfg.Drop.Devices)
	assert.Len(t, res.Inconsistent(), cfg.Drop.Devices)
	assert.Zero(t, res.Total)
	for _, d := range res.Devices {
		assert.Equal(t, rischarge.Inconsistent, d.Status, "device %d", d.Index)
		assert.Zero(t, d.ChargingTime)
		assert.ErrorIs(t, d.Err, rischarge.ErrHarvestingModel)
	}
	for _, err := range res.Errors {
		assert.ErrorIs(t, err, TxRx.ErrNonPositiveNet)
	}
}

func TestRunServeOrder(t *testing.T) {
	cfg := rischarge.DefaultConfig()
	cfg.ServeOrder = rischarge.ByRIS
	g := dropFor(t, cfg)
	res, err := rischarge.Run(context.Background(), cfg, g)
	require.NoError(t, err)
	assert.Equal(t, g.ByRIS, res.Order)

	cfg.ServeOrder = rischarge.Clustered
	_, err = rischarge.Run(context.Background(), cfg, g)
	assert.ErrorIs(t, err, rischarge.ErrConfiguration)

	cfg.ServeOrder = rischarge.ClusteredRIS
	_, err = rischarge.Run(context.Background(), cfg, g)
	assert.ErrorIs(t, err, rischarge.ErrConfiguration)

	_, err = deployment.Cluster(&g, cfg.Drop.MaxK, rand.NewPCG(cfg.Drop.Seed, 1), nil)
	require.NoError(t, err)
	res, err = rischarge.Run(context.Background(), cfg, g)
	require.NoError(t, err)
	assert.Equal(t, g.ClusteredRIS, res.Order)

	cfg.ServeOrder = rischarge.Clustered
	res, err = rischarge.Run(context.Background(), cfg, g)
	require.NoError(t, err)
	assert.Equal(t, g.Clustered, res.Order)
}

func TestRunRejectsZeroDistance(t *testing.T) {
	cfg := rischarge.DefaultConfig()
	g := dropFor(t, cfg)

	atPB := append([]vlib.Location3D(nil), g.Devices...)
	atPB[3] = g.PB
	_, err := rischarge.Run(context.Background(), cfg, deployment.NewGeometry(g.PB, g.RIS, atPB))
	assert.ErrorIs(t, err, rischarge.ErrInvalidGeometry)

	atRIS := append([]vlib.Location3D(nil), g.Devices...)
	atRIS[0] = g.RIS
	_, err = rischarge.Run(context.Background(), cfg, deployment.NewGeometry(g.PB, g.RIS, atRIS))
	assert.ErrorIs(t, err, rischarge.ErrInvalidGeometry)

	_, err = rischarge.Run(context.Background(), cfg, deployment.NewGeometry(g.PB, g.PB, g.Devices))
	assert.ErrorIs(t, err, rischarge.ErrInvalidGeometry)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, rischarge.DefaultConfig().Validate())

	for name, mutate := range map[string]func(*rischarge.Config){
		"negative kappa": func(c *rischarge.Config) { c.Kappa.PBRIS = -0.1 },
		"zero antennas":  func(c *rischarge.Config) { c.Antennas = 0 },
		"zero E_min":     func(c *rischarge.Config) { c.EMin = 0 },
		"NaN frequency":  func(c *rischarge.Config) { c.FreqHz = math.NaN() },
		"zero a":         func(c *rischarge.Config) { c.A = 0 },
		"no devices":     func(c *rischarge.Config) { c.Drop.Devices = 0 },
		"bad order":      func(c *rischarge.Config) { c.ServeOrder = 7 },
	} {
		cfg := rischarge.DefaultConfig()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), rischarge.ErrConfiguration, name)
		_, err := rischarge.Run(context.Background(), cfg, dropFor(t, rischarge.DefaultConfig()))
		assert.ErrorIs(t, err, rischarge.ErrConfiguration, name)
	}

	// with several bad Rician factors the first link is the one reported
	cfg := rischarge.DefaultConfig()
	cfg.Kappa = rischarge.Kappa{PBDevice: -1, PBRIS: -1, RISDevice: -1}
	for i := 0; i < 10; i++ {
		assert.ErrorContains(t, cfg.Validate(), "Rician factor PB-Device")
	}
}

func TestServeOrderText(t *testing.T) {
	var o rischarge.ServeOrder
	require.NoError(t, o.UnmarshalText([]byte("RIS")))
	assert.Equal(t, rischarge.ByRIS, o)
	text, err := rischarge.Clustered.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "clustered", string(text))
	require.NoError(t, o.UnmarshalText([]byte("clustered-ris")))
	assert.Equal(t, rischarge.ClusteredRIS, o)
	assert.ErrorIs(t, o.UnmarshalText([]byte("random")), rischarge.ErrConfiguration)

	cfg := rischarge.DefaultConfig()
	cfg.ServeOrder = rischarge.ClusteredRIS
	assert.NoError(t, cfg.Validate())
	cfg.ServeOrder = rischarge.ClusteredRIS + 1
	assert.ErrorIs(t, cfg.Validate(), rischarge.ErrConfiguration)
}

func TestRunCancelled(t *testing.T) {
	cfg := rischarge.DefaultConfig()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rischarge.Run(ctx, cfg, dropFor(t, cfg))
	assert.ErrorIs(t, err, context.Canceled)
}
