// Power beacon transmit slots and the power a device collects from them
package TxRx

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
)

// ReceivedPower returns |b . h^H|^2 for beam b and channel h (both length N).
func ReceivedPower(b, h []complex128) float64 {
	if len(b) != len(h) {
		panic(fmt.Sprintf("TxRx: beam length %d != channel length %d", len(b), len(h)))
	}
	// cmplxs.Dot conjugates its first argument
	y := cmplxs.Dot(h, b)
	return real(y * cmplx.Conj(y))
}

// Beacon is the power beacon: one precomputed beam per device, radiated
// during that device's dedicated slot.
type Beacon struct {
	beams [][]complex128
}

func NewBeacon(beams [][]complex128) *Beacon {
	return &Beacon{beams: beams}
}

// Slots returns the number of devices the beacon can serve.
func (b *Beacon) Slots() int {
	return len(b.beams)
}

// Slot returns the beam radiated while device j is being charged.
func (b *Beacon) Slot(j int) []complex128 {
	return b.beams[j]
}

// PowerAt returns the power a device with effective channel h receives while
// the beacon serves device j.
func (b *Beacon) PowerAt(j int, h []complex128) float64 {
	return ReceivedPower(b.Slot(j), h)
}
