package gpu

import (
	"fmt"

	"github.com/gekko3d/raymaster/meshrt/rt/core"
)

// AccumulationPipeline keeps the running mean of successive raw samples.
//
// With n samples already folded in, the next raw sample contributes 1/(n+1) and
// the converged image keeps n/(n+1). Reset drops back to n = 0, where the next
// blend simply copies the raw sample.
type AccumulationPipeline struct {
	Blender Blender

	// MaxSamples stops accumulation once reached. Zero means unlimited.
	MaxSamples uint32

	sample uint32
}

func NewAccumulationPipeline(b Blender) *AccumulationPipeline {
	return &AccumulationPipeline{Blender: b}
}

func (a *AccumulationPipeline) Reset() {
	a.sample = 0
}

// SampleCount is the number of samples folded into the converged image.
func (a *AccumulationPipeline) SampleCount() uint32 {
	return a.sample
}

// Weight is the contribution of the next raw sample.
func (a *AccumulationPipeline) Weight() float32 {
	return 1.0 / float32(a.sample+1)
}

// Converged reports whether the sample cap has been reached.
func (a *AccumulationPipeline) Converged() bool {
	return a.MaxSamples > 0 && a.sample >= a.MaxSamples
}

// Blend folds raw into converged and advances the sample count. A failed blend
// leaves the count untouched.
func (a *AccumulationPipeline) Blend(raw, converged Target) error {
	if err := a.Blender.Blend(raw, converged, a.Weight()); err != nil {
		return fmt.Errorf("accumulate sample %d: %w: %v", a.sample, core.ErrDispatch, err)
	}
	a.sample++
	return nil
}
