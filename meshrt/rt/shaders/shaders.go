package shaders

import (
	_ "embed"
)

//go:embed raytrace.wgsl
var RaytraceWGSL string

//go:embed accumulate.wgsl
var AccumulateWGSL string

//go:embed fullscreen.wgsl
var FullscreenWGSL string
