package rischarge

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	log "github.com/sirupsen/logrus"
	"github.com/wiless/vlib"
	"gonum.org/v1/gonum/mat"

	"github.com/wiless/rischarge/TxRx"
	"github.com/wiless/rischarge/antenna"
	"github.com/wiless/rischarge/channel"
	"github.com/wiless/rischarge/deployment"
	"github.com/wiless/rischarge/pathloss"
)

// second PCG word of the channel stream; the geometry uses its own seed
const channelStream = 0x52495321

// System runs the full pipeline: channels, beams, charging schedule.
type System struct {
	Config Config
	Logger log.FieldLogger
}

func NewSystem(cfg Config) *System {
	return &System{Config: cfg, Logger: log.StandardLogger()}
}

// Run is a shorthand for NewSystem(cfg).Run(ctx, g).
func Run(ctx context.Context, cfg Config, g Geometry) (*Result, error) {
	return NewSystem(cfg).Run(ctx, g)
}

// Run validates the configuration and the geometry, synthesizes the channels
// from Config.Seed and solves the charging schedule in the configured serve
// order. Devices the harvesting model cannot charge are flagged in the result
// and do not abort the run.
func (s *System) Run(ctx context.Context, g Geometry) (*Result, error) {
	cfg := s.Config
	logger := s.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
	}
	order, err := serveOrder(cfg.ServeOrder, g)
	if err != nil {
		return nil, err
	}
	setting, err := cfg.ChannelSetting()
	if err != nil {
		return nil, err
	}
	setting.Logger = logger

	aas := cfg.AAS()
	src := rand.NewPCG(cfg.Seed, channelStream)
	theta, err := antenna.RISPhases(aas.RISElements, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	distances := channel.Distances{
		PBDevice:  deployment.Distances(g.PB, g.Devices),
		RISDevice: deployment.Distances(g.RIS, g.Devices),
		PBRIS:     g.PB.DistanceFrom(g.RIS),
	}
	links, err := channel.Synthesize(setting, distances, theta, src)
	if err != nil {
		if errors.Is(err, pathloss.ErrInvalidDistance) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if !links.Finite() {
		return nil, fmt.Errorf("%w: channel has non-finite entries", ErrConfiguration)
	}

	beams, err := buildBeams(ctx, aas, links.LoSPBDevice, cfg.Workers)
	if err != nil {
		return nil, err
	}

	solver := &Solver{Model: cfg.Logistic(), EMin: cfg.EMin, Workers: cfg.Workers, Logger: logger}
	steps, err := solver.Solve(ctx, TxRx.NewBeacon(beams), links, order)
	if err != nil {
		return nil, err
	}

	result := assemble(g, links, beams, order, steps)
	logger.WithFields(log.Fields{
		"devices":      g.K(),
		"order":        cfg.ServeOrder.String(),
		"total":        result.Total,
		"inconsistent": len(result.Errors),
	}).Info("rischarge: charging schedule solved")
	return result, nil
}

func serveOrder(o ServeOrder, g Geometry) ([]int, error) {
	switch o {
	case ByPB:
		return g.ByPB, nil
	case ByRIS:
		return g.ByRIS, nil
	case Clustered:
		if g.Clustered == nil {
			return nil, fmt.Errorf("%w: clustered serve order needs a clustered geometry", ErrConfiguration)
		}
		return g.Clustered, nil
	case ClusteredRIS:
		if g.ClusteredRIS == nil {
			return nil, fmt.Errorf("%w: clustered-ris serve order needs a clustered geometry", ErrConfiguration)
		}
		return g.ClusteredRIS, nil
	}
	return nil, fmt.Errorf("%w: unknown serve order %d", ErrConfiguration, o)
}

// buildBeams steers one S-CSI beam per LoS row. A LoS coefficient without a
// phase fails the whole run with ErrDegenerateBeamforming.
func buildBeams(ctx context.Context, aas antenna.SettingAAS, los mat.CMatrix, workers int) ([][]complex128, error) {
	beams, err := antenna.SCSIBeams(ctx, aas, los, workers)
	if errors.Is(err, antenna.ErrDegenerateBeam) {
		return nil, fmt.Errorf("%w: %w", ErrDegenerateBeamforming, err)
	}
	return beams, err
}

func assemble(g Geometry, links *channel.Links, beams [][]complex128, order []int, steps []Step) *Result {
	k := g.K()
	result := &Result{
		Links:         links,
		Beams:         beams,
		Devices:       make([]Device, k),
		Order:         append([]int(nil), order...),
		ChargingTimes: make(vlib.VectorF, len(steps)),
		TotalDefined:  true,
	}
	rankPB, rankRIS := deployment.Ranks(g.ByPB), deployment.Ranks(g.ByRIS)
	for i, loc := range g.Devices {
		result.Devices[i] = Device{
			Index:    i,
			Position: loc,
			DistPB:   g.PB.DistanceFrom(loc),
			DistRIS:  g.RIS.DistanceFrom(loc),
			RankPB:   rankPB[i],
			RankRIS:  rankRIS[i],
			Channel:  links.Column(i),
			Beam:     beams[i],
		}
	}
	for i, st := range steps {
		d := &result.Devices[st.Device]
		d.Slot = i
		d.ReceivedPower = st.ReceivedPower
		d.HarvestedPower = st.HarvestedPower
		d.Incidental = st.Incidental
		d.ChargingTime = st.Time
		d.Status = st.Status
		d.Err = st.Err

		result.ChargingTimes[i] = st.Time
		result.Total += st.Time
		if st.Err != nil {
			result.TotalDefined = false
			result.Errors = append(result.Errors, st.Err)
		}
	}
	return result
}
