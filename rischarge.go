// Package rischarge estimates how long a power beacon, helped by a
// reconfigurable intelligent surface, needs to charge a fleet of IoT devices.
//
// The beacon serves the devices one at a time. While it beams at one device
// the others still harvest some energy, so a device served late may need a
// shorter dedicated slot, or none at all.
package rischarge

import (
	"github.com/wiless/vlib"

	"github.com/wiless/rischarge/channel"
	"github.com/wiless/rischarge/deployment"
)

// Geometry is the placement of PB, RIS and devices together with the
// distance orderings.
type Geometry = deployment.Geometry

type DeviceStatus int

const (
	// Pending devices have not been reached by the solver.
	Pending DeviceStatus = iota
	// ChargedByDedicatedSlot devices needed a slot of their own.
	ChargedByDedicatedSlot
	// ChargedByNeighbours devices reached E_min from earlier slots alone.
	ChargedByNeighbours
	// Inconsistent devices cannot be charged under the harvesting model.
	Inconsistent
)

var DeviceStatuses = [...]string{
	"Pending",
	"ChargedByDedicatedSlot",
	"ChargedByNeighbours",
	"Inconsistent",
}

func (s DeviceStatus) String() string {
	if int(s) < 0 || int(s) >= len(DeviceStatuses) {
		return "Unknown-DeviceStatus"
	}
	return DeviceStatuses[s]
}

func (s DeviceStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Device is the per-device outcome of a run.
type Device struct {
	Index    int
	Position vlib.Location3D
	DistPB   float64
	DistRIS  float64
	RankPB   int
	RankRIS  int
	Slot     int // position in the serve order

	Channel []complex128 `json:"-"` // effective channel, length N
	Beam    []complex128 `json:"-"`

	ReceivedPower  float64 // |b_k h_k^H|^2 in its own slot
	HarvestedPower float64 // Gamma(ReceivedPower)
	Incidental     float64 // energy collected during earlier slots
	ChargingTime   float64
	Status         DeviceStatus
	Err            error `json:"-"`
}

// Result collects everything a run produced. ChargingTimes follows Order;
// Devices is indexed by device.
type Result struct {
	Links         *channel.Links `json:"-"`
	Beams         [][]complex128 `json:"-"`
	Devices       []Device
	Order         []int
	ChargingTimes vlib.VectorF
	Total         float64
	TotalDefined  bool
	Errors        []error `json:"-"`
}

// Inconsistent returns the indices of the devices the model could not charge.
func (r *Result) Inconsistent() []int {
	var result []int
	for _, d := range r.Devices {
		if d.Status == Inconsistent {
			result = append(result, d.Index)
		}
	}
	return result
}
