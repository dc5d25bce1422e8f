package gpu

import (
	"fmt"

	"github.com/gekko3d/raymaster/meshrt/rt/core"
)

// FrameTargetManager owns the two same-size images of progressive rendering:
// Raw receives one sample per frame from the kernel, Converged holds the running mean.
type FrameTargetManager struct {
	Device Device

	Raw       Target
	Converged Target
}

func NewFrameTargetManager(device Device) *FrameTargetManager {
	return &FrameTargetManager{Device: device}
}

// EnsureSize reallocates any target that is missing or not width x height.
// Reports whether anything was reallocated; the caller must then restart accumulation.
func (m *FrameTargetManager) EnsureSize(width, height int) (bool, error) {
	if width <= 0 || height <= 0 {
		return false, fmt.Errorf("frame targets: invalid size %dx%d", width, height)
	}

	reallocated := false
	for _, t := range []struct {
		label string
		slot  *Target
	}{
		{"Raw Target", &m.Raw},
		{"Converged Target", &m.Converged},
	} {
		cur := *t.slot
		if cur != nil && cur.Width() == width && cur.Height() == height {
			continue
		}
		if cur != nil {
			cur.Release()
			*t.slot = nil
		}
		fresh, err := m.Device.CreateTarget(t.label, width, height)
		if err != nil {
			return true, fmt.Errorf("%s %dx%d: %w: %v", t.label, width, height, core.ErrAllocation, err)
		}
		*t.slot = fresh
		reallocated = true
	}
	return reallocated, nil
}

func (m *FrameTargetManager) Ready() bool {
	return m.Raw != nil && m.Converged != nil
}

func (m *FrameTargetManager) Release() {
	if m.Raw != nil {
		m.Raw.Release()
		m.Raw = nil
	}
	if m.Converged != nil {
		m.Converged.Release()
		m.Converged = nil
	}
}
