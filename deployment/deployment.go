// Placement of the power beacon, the RIS and the IoT devices, and the device
// orderings the charging schedule is built from.
package deployment

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	ms "github.com/mitchellh/mapstructure"
	"github.com/wiless/vlib"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidGeometry is returned when a device or the RIS coincides with a
// reference point, or the orderings are not permutations of the devices.
var ErrInvalidGeometry = errors.New("deployment: invalid geometry")

type DropType int

var DropTypes = [...]string{
	"Rectangular",
	"Circular",
}

func (c DropType) String() string {
	if int(c) < 0 || int(c) >= len(DropTypes) {
		return "Unknown-DropType"
	}
	return DropTypes[c]
}

func (c DropType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *DropType) UnmarshalText(text []byte) error {
	for i, name := range DropTypes {
		if strings.EqualFold(name, string(text)) {
			*c = DropType(i)
			return nil
		}
	}
	return fmt.Errorf("deployment: unknown drop type %q", text)
}

const (
	// Rectangular drops devices uniformly in the box spanned by PB and RIS.
	Rectangular DropType = iota
	// Circular drops devices uniformly in a disc of Radius around the PB.
	Circular
)

type DropSetting struct {
	Type      DropType `json:"type" yaml:"type" mapstructure:"type"`
	Devices   int      `json:"devices" yaml:"devices" mapstructure:"devices"`
	Radius    float64  `json:"radius" yaml:"radius" mapstructure:"radius"`
	RISFactor float64  `json:"ris_factor" yaml:"ris_factor" mapstructure:"ris_factor"` // RIS at (f*R, f*R)
	Seed      uint64   `json:"seed" yaml:"seed" mapstructure:"seed"`
	Cluster   bool     `json:"cluster" yaml:"cluster" mapstructure:"cluster"`
	MaxK      int      `json:"max_k" yaml:"max_k" mapstructure:"max_k"` // largest cluster count tried by the silhouette search
}

func (d *DropSetting) SetDefault() {
	d.Type = Rectangular
	d.Devices = 30
	d.Radius = 50
	d.RISFactor = 0.8
	d.Seed = 7
	d.Cluster = true
	d.MaxK = 14
}

func NewDropSetting() *DropSetting {
	result := new(DropSetting)
	result.SetDefault()
	return result
}

// DropSettingFromMap decodes a generic map (e.g. from a config file section)
// on top of the defaults.
func DropSettingFromMap(m map[string]interface{}) (*DropSetting, error) {
	d := NewDropSetting()
	dec, err := ms.NewDecoder(&ms.DecoderConfig{
		DecodeHook:       ms.TextUnmarshallerHookFunc(),
		WeaklyTypedInput: true,
		Result:           d,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("deployment: decode drop setting: %w", err)
	}
	return d, nil
}

func (d DropSetting) Validate() error {
	if d.Devices < 1 {
		return fmt.Errorf("deployment: need at least one device, got %d", d.Devices)
	}
	if !(d.Radius > 0) {
		return fmt.Errorf("deployment: radius must be positive, got %v", d.Radius)
	}
	if !(d.RISFactor > 0) {
		return fmt.Errorf("deployment: RIS factor must be positive, got %v", d.RISFactor)
	}
	if d.Type != Rectangular && d.Type != Circular {
		return fmt.Errorf("deployment: unknown drop type %d", d.Type)
	}
	return nil
}

// Geometry is everything the charging core needs to know about placement.
// ByPB, ByRIS and Clustered are permutations of device indices; Clustered is
// nil when no clustering was done.
type Geometry struct {
	PB        vlib.Location3D
	RIS       vlib.Location3D
	Devices   []vlib.Location3D
	ByPB      []int
	ByRIS     []int
	Clustered []int // clusters ranked around the PB
	// ClusteredRIS uses the same clusters ranked around the RIS
	ClusteredRIS []int
	Labels       []int // cluster label per device, nil when not clustered
}

// NewGeometry computes both distance orderings for the given placement.
func NewGeometry(pb, ris vlib.Location3D, devices []vlib.Location3D) Geometry {
	return Geometry{
		PB:      pb,
		RIS:     ris,
		Devices: devices,
		ByPB:    OrderBy(pb, devices),
		ByRIS:   OrderBy(ris, devices),
	}
}

// OrderBy returns device indices sorted by ascending distance to ref. Ties keep
// index order.
func OrderBy(ref vlib.Location3D, devices []vlib.Location3D) []int {
	order := make([]int, len(devices))
	for i := range order {
		order[i] = i
	}
	d := Distances(ref, devices)
	sort.SliceStable(order, func(a, b int) bool { return d[order[a]] < d[order[b]] })
	return order
}

// Distances returns the distance of every device to ref.
func Distances(ref vlib.Location3D, devices []vlib.Location3D) []float64 {
	result := make([]float64, len(devices))
	for i, loc := range devices {
		result[i] = ref.DistanceFrom(loc)
	}
	return result
}

// Ranks inverts an ordering: ranks[order[i]] = i.
func Ranks(order []int) []int {
	ranks := make([]int, len(order))
	for i, k := range order {
		ranks[k] = i
	}
	return ranks
}

func (g Geometry) K() int {
	return len(g.Devices)
}

// Validate checks that every link length is positive and finite and that the
// orderings are permutations.
func (g Geometry) Validate() error {
	if len(g.Devices) == 0 {
		return fmt.Errorf("%w: no devices", ErrInvalidGeometry)
	}
	if d := g.PB.DistanceFrom(g.RIS); !positive(d) {
		return fmt.Errorf("%w: RIS at distance %v from PB", ErrInvalidGeometry, d)
	}
	for i, loc := range g.Devices {
		if d := g.PB.DistanceFrom(loc); !positive(d) {
			return fmt.Errorf("%w: device %d at distance %v from PB", ErrInvalidGeometry, i, d)
		}
		if d := g.RIS.DistanceFrom(loc); !positive(d) {
			return fmt.Errorf("%w: device %d at distance %v from RIS", ErrInvalidGeometry, i, d)
		}
	}
	orders := []struct {
		name     string
		order    []int
		optional bool
	}{
		{"ByPB", g.ByPB, false},
		{"ByRIS", g.ByRIS, false},
		{"Clustered", g.Clustered, true},
		{"ClusteredRIS", g.ClusteredRIS, true},
	}
	for _, o := range orders {
		if o.order == nil && o.optional {
			continue
		}
		if !isPermutation(o.order, len(g.Devices)) {
			return fmt.Errorf("%w: %s is not a permutation of %d devices", ErrInvalidGeometry, o.name, len(g.Devices))
		}
	}
	return nil
}

// Drop places PB at the origin, the RIS at (f*R, f*R) and the devices as
// selected by d.Type, using only src for randomness.
func Drop(d DropSetting, src rand.Source) (Geometry, error) {
	if err := d.Validate(); err != nil {
		return Geometry{}, err
	}
	pb := vlib.Location3D{X: 0, Y: 0, Z: 0}
	ris := vlib.Location3D{X: d.Radius * d.RISFactor, Y: d.Radius * d.RISFactor, Z: 0}

	var devices []vlib.Location3D
	switch d.Type {
	case Rectangular:
		devices = dropRectangular(d.Devices, pb, ris, src)
	case Circular:
		devices = dropCircular(d.Devices, pb, d.Radius, src)
	}
	return NewGeometry(pb, ris, devices), nil
}

// all x first, then all y
func dropRectangular(n int, a, b vlib.Location3D, src rand.Source) []vlib.Location3D {
	ux := distuv.Uniform{Min: math.Min(a.X, b.X), Max: math.Max(a.X, b.X), Src: src}
	uy := distuv.Uniform{Min: math.Min(a.Y, b.Y), Max: math.Max(a.Y, b.Y), Src: src}
	result := make([]vlib.Location3D, n)
	for i := range result {
		result[i].X = ux.Rand()
	}
	for i := range result {
		result[i].Y = uy.Rand()
	}
	return result
}

func dropCircular(n int, centre vlib.Location3D, radius float64, src rand.Source) []vlib.Location3D {
	ur := distuv.Uniform{Min: 0, Max: 1, Src: src}
	uphi := distuv.Uniform{Min: 0, Max: 2 * math.Pi, Src: src}
	result := make([]vlib.Location3D, n)
	for i := range result {
		r := radius * math.Sqrt(ur.Rand())
		phi := uphi.Rand()
		result[i] = vlib.Location3D{X: centre.X + r*math.Cos(phi), Y: centre.Y + r*math.Sin(phi), Z: centre.Z}
	}
	return result
}

func isPermutation(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, k := range order {
		if k < 0 || k >= n || seen[k] {
			return false
		}
		seen[k] = true
	}
	return true
}

func positive(d float64) bool {
	return d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}
