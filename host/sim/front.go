package sim

import (
	"math/rand"
	"sync"

	"touchsense/tsc"
)

// DefaultBaseline is the untouched count of every group.
const DefaultBaseline = 1500

// Front plays the analog side of the TSC: it decides what each group
// counts when an acquisition starts. A finger on the electrode adds
// capacitance, so the sampling capacitor fills in fewer transfers and
// the count drops.
type Front struct {
	mu       sync.Mutex
	baseline [tsc.NumGroups + 1]uint16
	touched  [tsc.NumGroups + 1]bool
	drop     uint16
	noise    int
	latency  int
	failNext bool
	rng      *rand.Rand
}

func newFront(seed int64) *Front {
	f := &Front{
		drop:    300,
		noise:   4,
		latency: 2,
		rng:     rand.New(rand.NewSource(seed)),
	}
	for g := range f.baseline {
		f.baseline[g] = DefaultBaseline
	}
	return f
}

// SetBaseline sets the untouched count of group.
func (f *Front) SetBaseline(group uint8, count uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(group) <= tsc.NumGroups {
		f.baseline[group] = count
	}
}

// Touch puts a finger on (or lifts it from) the electrode of group.
func (f *Front) Touch(group uint8, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(group) <= tsc.NumGroups {
		f.touched[group] = on
	}
}

// SetDrop sets how far a touch pulls the count below baseline.
func (f *Front) SetDrop(drop uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drop = drop
}

// SetNoise sets the peak random deviation added to every count.
func (f *Front) SetNoise(noise int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noise = noise
}

// FailNext makes the next acquisition end in a max count error.
func (f *Front) FailNext() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = true
}

// onStart is the SimRegisters start hook.
func (f *Front) onStart(regs *tsc.SimRegisters) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext {
		f.failNext = false
		regs.Raise(tsc.MaxCountError, f.latency)
		return
	}
	for g := uint8(1); g <= tsc.NumGroups; g++ {
		regs.SetCount(g, f.count(g))
	}
	regs.Raise(tsc.EndOfAcquisition, f.latency)
}

func (f *Front) count(group uint8) uint16 {
	c := int(f.baseline[group])
	if f.touched[group] {
		c -= int(f.drop)
	}
	if f.noise > 0 {
		c += f.rng.Intn(2*f.noise+1) - f.noise
	}
	if c < 0 {
		c = 0
	}
	return uint16(c)
}
