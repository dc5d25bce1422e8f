package raymaster

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gekko3d/raymaster/meshrt/rt/app"
	"github.com/gekko3d/raymaster/meshrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

type SphereConfig struct {
	Seed            int64   `yaml:"seed"`
	RadiusMin       float32 `yaml:"radius_min"`
	RadiusMax       float32 `yaml:"radius_max"`
	Max             int     `yaml:"max"`
	PlacementRadius float32 `yaml:"placement_radius"`
}

type KernelConfig struct {
	IOR             float32 `yaml:"ior"`
	AbsorbIntensity float32 `yaml:"absorb_intensity"`
	ColorAdd        float32 `yaml:"color_add"`
	ColorMultiply   float32 `yaml:"color_multiply"`
	Specular        float32 `yaml:"specular"`
}

type LightConfig struct {
	Direction [3]float32 `yaml:"direction"`
	Intensity float32    `yaml:"intensity"`
}

// Config is the tracer configuration. Zero-valued sections in a YAML file keep
// their defaults because LoadConfig decodes over DefaultConfig.
type Config struct {
	Window  WindowConfig `yaml:"window"`
	Spheres SphereConfig `yaml:"spheres"`
	Kernel  KernelConfig `yaml:"kernel"`
	Light   LightConfig  `yaml:"light"`

	// Skybox is an equirectangular image path. Empty selects the procedural sky.
	Skybox string `yaml:"skybox"`
	// MaxSamples stops accumulation after that many samples; 0 never stops.
	MaxSamples uint32 `yaml:"max_samples"`
	Debug      bool   `yaml:"debug"`
	// LogFormat is LogFormatText or LogFormatJSON.
	LogFormat string `yaml:"log_format"`
}

func DefaultConfig() Config {
	kp := core.DefaultKernelParams()
	sp := core.DefaultSphereParams()
	light := core.DefaultDirectionalLight()
	return Config{
		Window: WindowConfig{Width: 1280, Height: 720, Title: "RayMaster"},
		Spheres: SphereConfig{
			Seed:            0,
			RadiusMin:       sp.RadiusMin,
			RadiusMax:       sp.RadiusMax,
			Max:             sp.CountMax,
			PlacementRadius: sp.PlacementRadius,
		},
		Kernel: KernelConfig{
			IOR:             kp.IOR,
			AbsorbIntensity: kp.AbsorbIntensity,
			ColorAdd:        kp.ColorAdd,
			ColorMultiply:   kp.ColorMultiply,
			Specular:        kp.Specular,
		},
		Light:     LightConfig{Direction: light.Direction, Intensity: light.Intensity},
		LogFormat: LogFormatText,
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := DecodeConfig(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// DecodeConfig decodes YAML over the defaults. Unknown keys are rejected.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal renders the config as YAML, e.g. to write out a starting file.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	case c.Spheres.RadiusMin <= 0 || c.Spheres.RadiusMin > c.Spheres.RadiusMax:
		return fmt.Errorf("%w: sphere radius range [%g, %g]", ErrInvalidConfig, c.Spheres.RadiusMin, c.Spheres.RadiusMax)
	case c.Spheres.PlacementRadius <= 0:
		return fmt.Errorf("%w: placement radius %g", ErrInvalidConfig, c.Spheres.PlacementRadius)
	case c.Spheres.Max < 0:
		return fmt.Errorf("%w: sphere max %d", ErrInvalidConfig, c.Spheres.Max)
	case c.Kernel.IOR <= 0:
		return fmt.Errorf("%w: ior %g", ErrInvalidConfig, c.Kernel.IOR)
	case mgl32.Vec3(c.Light.Direction).Len() == 0 && c.Light.Intensity != 0:
		return fmt.Errorf("%w: light has intensity but no direction", ErrInvalidConfig)
	case c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON:
		return fmt.Errorf("%w: log format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

func (c Config) KernelParams() core.KernelParams {
	return core.KernelParams{
		IOR:             c.Kernel.IOR,
		AbsorbIntensity: c.Kernel.AbsorbIntensity,
		ColorAdd:        c.Kernel.ColorAdd,
		ColorMultiply:   c.Kernel.ColorMultiply,
		Specular:        c.Kernel.Specular,
	}
}

func (c Config) SphereParams() core.SphereParams {
	return core.SphereParams{
		CountMax:        c.Spheres.Max,
		RadiusMin:       c.Spheres.RadiusMin,
		RadiusMax:       c.Spheres.RadiusMax,
		PlacementRadius: c.Spheres.PlacementRadius,
	}
}

func (c Config) DirectionalLight() core.DirectionalLight {
	return core.DirectionalLight{Direction: c.Light.Direction, Intensity: c.Light.Intensity}
}

// NewLogger builds the process logger from Debug and LogFormat.
func (c Config) NewLogger(component string) *DefaultLogger {
	return NewLoggerTo(os.Stdout, os.Stderr, c.LogFormat, component, c.Debug)
}

// Apply pushes the scene and shading settings into an orchestrator. It does
// not regenerate spheres; call SetupScene afterwards.
func (c Config) Apply(o *app.FrameOrchestrator) {
	o.SphereParams = c.SphereParams()
	o.SetKernelParams(c.KernelParams())
	o.Accumulation.MaxSamples = c.MaxSamples
}
