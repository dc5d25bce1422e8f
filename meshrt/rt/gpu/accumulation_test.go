package gpu

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/gekko3d/raymaster/meshrt/rt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBlender struct{}

func (failingBlender) Blend(raw, converged Target, weight float32) error {
	return errors.New("device lost")
}

func hostTargets(t *testing.T, w, h int) (*HostTarget, *HostTarget) {
	dev := NewHostDevice()
	raw, err := dev.CreateTarget("raw", w, h)
	require.NoError(t, err)
	conv, err := dev.CreateTarget("converged", w, h)
	require.NoError(t, err)
	return raw.(*HostTarget), conv.(*HostTarget)
}

func TestAccumulationIsRunningMean(t *testing.T) {
	raw, conv := hostTargets(t, 2, 2)
	conv.Fill([4]float32{123, 123, 123, 123}) // garbage, overwritten by the first blend
	acc := NewAccumulationPipeline(HostBlender{})

	samples := []float32{1, 5, 2, 8, 4}
	var sum float32
	for i, v := range samples {
		raw.Fill([4]float32{v, v, v, 1})
		require.NoError(t, acc.Blend(raw, conv))
		sum += v
		mean := sum / float32(i+1)
		got := conv.At(1, 1)[0]
		if math.Abs(float64(got-mean)) > 1e-5 {
			t.Fatalf("after %d samples: got %f, want %f", i+1, got, mean)
		}
	}
	assert.Equal(t, uint32(len(samples)), acc.SampleCount())
}

func TestAccumulationResetCopiesNextSample(t *testing.T) {
	raw, conv := hostTargets(t, 1, 1)
	acc := NewAccumulationPipeline(HostBlender{})
	for i := 0; i < 3; i++ {
		raw.Fill([4]float32{1, 1, 1, 1})
		require.NoError(t, acc.Blend(raw, conv))
	}
	assert.InDelta(t, 0.25, acc.Weight(), 1e-6)

	acc.Reset()
	assert.Equal(t, uint32(0), acc.SampleCount())
	assert.Equal(t, float32(1), acc.Weight())

	raw.Fill([4]float32{7, 7, 7, 1})
	require.NoError(t, acc.Blend(raw, conv))
	assert.Equal(t, float32(7), conv.At(0, 0)[0])
}

func TestAccumulationFailedBlendKeepsCount(t *testing.T) {
	raw, conv := hostTargets(t, 1, 1)
	acc := NewAccumulationPipeline(failingBlender{})
	err := acc.Blend(raw, conv)
	assert.ErrorIs(t, err, core.ErrDispatch)
	assert.Equal(t, uint32(0), acc.SampleCount())
}

func TestAccumulationConverged(t *testing.T) {
	raw, conv := hostTargets(t, 1, 1)
	acc := NewAccumulationPipeline(HostBlender{})
	acc.MaxSamples = 2
	assert.False(t, acc.Converged())
	require.NoError(t, acc.Blend(raw, conv))
	require.NoError(t, acc.Blend(raw, conv))
	assert.True(t, acc.Converged())
}

func TestAccumulationConvergesPastEarlyBias(t *testing.T) {
	raw, conv := hostTargets(t, 1, 1)
	acc := NewAccumulationPipeline(HostBlender{})
	rng := rand.New(rand.NewSource(7))

	const n = 20000
	var sum float64
	for i := 0; i < n; i++ {
		v := rng.Float32() * 0.5
		if i < 500 {
			v++
		}
		sum += float64(v)
		raw.Fill([4]float32{v, v, v, 1})
		require.NoError(t, acc.Blend(raw, conv))
	}
	assert.InDelta(t, sum/n, float64(conv.At(0, 0)[0]), 1e-3)
}
