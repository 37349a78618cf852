// Package config holds the renderer settings, their defaults and limits,
// and loading from TOML, YAML or JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/constraints"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/loom/internal/deform"
	"github.com/ayusman/loom/internal/mesh"
	"github.com/ayusman/loom/internal/render"
)

// Limits.
const (
	MinParticles = 2000
	MaxParticles = 50000

	MinBrightness = 0.1
	MaxBrightness = 2.5

	MinSpeed = 0.0
	MaxSpeed = 3.0

	MinPointSize = 0.5
	MaxPointSize = 32.0

	MinSurface = 16
	MaxSurface = 7680

	MinRenderFPS = 1
	MaxRenderFPS = 240
)

// ErrInvalid is wrapped by Validate errors.
var ErrInvalid = errors.New("invalid config")

// Config is the full set of user settings.
type Config struct {
	ParticleCount int     `json:"particleCount" toml:"particleCount" yaml:"particleCount"`
	Brightness    float64 `json:"brightness" toml:"brightness" yaml:"brightness"`
	Speed         float64 `json:"speed" toml:"speed" yaml:"speed"`
	ColorScheme   string  `json:"colorScheme" toml:"colorScheme" yaml:"colorScheme"`
	// StaticImage, when set, replaces the live camera as the color source.
	StaticImage string `json:"staticImage" toml:"staticImage" yaml:"staticImage"`

	Topology  string  `json:"topology" toml:"topology" yaml:"topology"`
	Profile   string  `json:"profile" toml:"profile" yaml:"profile"`
	PointSize float64 `json:"pointSize" toml:"pointSize" yaml:"pointSize"`
	Width     int     `json:"width" toml:"width" yaml:"width"`
	Height    int     `json:"height" toml:"height" yaml:"height"`
	RenderFPS int     `json:"renderFPS" toml:"renderFPS" yaml:"renderFPS"`

	CameraID int    `json:"cameraID" toml:"cameraID" yaml:"cameraID"`
	Addr     string `json:"addr" toml:"addr" yaml:"addr"`
	DataDir  string `json:"dataDir" toml:"dataDir" yaml:"dataDir"`
	LogLevel string `json:"logLevel" toml:"logLevel" yaml:"logLevel"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ParticleCount: 12000,
		Brightness:    1,
		Speed:         1,
		ColorScheme:   render.DefaultPalette,
		Topology:      string(mesh.TopologyScatter),
		Profile:       deform.MappingWeave.Name,
		PointSize:     3,
		Width:         1280,
		Height:        720,
		RenderFPS:     60,
		CameraID:      0,
		Addr:          ":8080",
		DataDir:       "",
		LogLevel:      "info",
	}
}

func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Normalize clamps numbers into range and replaces unknown names with
// defaults. It returns one warning per value it changed.
func (c *Config) Normalize() []string {
	var warnings []string
	d := Default()

	clampInt := func(name string, v *int, lo, hi int) {
		if n := clamp(*v, lo, hi); n != *v {
			warnings = append(warnings, fmt.Sprintf("%s %d out of range, using %d", name, *v, n))
			*v = n
		}
	}
	clampFloat := func(name string, v *float64, lo, hi, def float64) {
		if math.IsNaN(*v) {
			warnings = append(warnings, fmt.Sprintf("%s is NaN, using %g", name, def))
			*v = def
			return
		}
		if n := clamp(*v, lo, hi); n != *v {
			warnings = append(warnings, fmt.Sprintf("%s %g out of range, using %g", name, *v, n))
			*v = n
		}
	}
	enum := func(name string, v *string, def string, ok func(string) bool) {
		if !ok(*v) {
			warnings = append(warnings, fmt.Sprintf("unknown %s %q, using %q", name, *v, def))
			*v = def
		}
	}

	clampInt("particleCount", &c.ParticleCount, MinParticles, MaxParticles)
	clampFloat("brightness", &c.Brightness, MinBrightness, MaxBrightness, d.Brightness)
	clampFloat("speed", &c.Speed, MinSpeed, MaxSpeed, d.Speed)
	clampFloat("pointSize", &c.PointSize, MinPointSize, MaxPointSize, d.PointSize)
	clampInt("width", &c.Width, MinSurface, MaxSurface)
	clampInt("height", &c.Height, MinSurface, MaxSurface)
	clampInt("renderFPS", &c.RenderFPS, MinRenderFPS, MaxRenderFPS)
	if c.CameraID < 0 {
		warnings = append(warnings, fmt.Sprintf("cameraID %d is negative, using 0", c.CameraID))
		c.CameraID = 0
	}

	enum("colorScheme", &c.ColorScheme, d.ColorScheme, validPalette)
	enum("topology", &c.Topology, d.Topology, validTopology)
	enum("profile", &c.Profile, d.Profile, validProfile)
	enum("logLevel", &c.LogLevel, d.LogLevel, validLogLevel)

	if c.Addr == "" {
		c.Addr = d.Addr
	}
	return warnings
}

// Validate reports the first setting that Normalize would have to change.
func (c Config) Validate() error {
	n := c
	if w := n.Normalize(); len(w) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, w[0])
	}
	return nil
}

// MeshOptions returns the mesh inputs derived from c.
func (c Config) MeshOptions() mesh.Options {
	return mesh.Options{
		Target:   c.ParticleCount,
		Topology: mesh.Topology(c.Topology),
		Aspect:   float64(c.Width) / float64(max(c.Height, 1)),
	}
}

// RenderOptions returns the orchestrator options derived from c.
func (c Config) RenderOptions() render.Options {
	opts := render.DefaultOptions()
	opts.Mesh = c.MeshOptions()
	opts.Mapping = c.Profile
	opts.Palette = c.ColorScheme
	opts.Brightness = c.Brightness
	opts.Speed = c.Speed
	opts.PointSize = c.PointSize
	return opts
}

func validPalette(s string) bool {
	_, err := render.LookupPalette(s)
	return err == nil
}

func validTopology(s string) bool {
	return s == string(mesh.TopologyScatter) || s == string(mesh.TopologyLines)
}

func validProfile(s string) bool {
	_, err := deform.Lookup(s)
	return err == nil
}

func validLogLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// Format is a config file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the encoding from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported config file %q", path)
}

// Decode parses data over the defaults. Fields missing from data keep
// their default values. The result is not normalized.
func Decode(data []byte, f Format) (Config, error) {
	c := Default()
	var err error
	switch f {
	case FormatTOML:
		err = toml.Unmarshal(data, &c)
	case FormatYAML:
		err = yaml.Unmarshal(data, &c)
	case FormatJSON:
		err = json.Unmarshal(data, &c)
	default:
		err = fmt.Errorf("unknown format %q", f)
	}
	if err != nil {
		return Config{}, fmt.Errorf("decode %s config: %w", f, err)
	}
	return c, nil
}

// Encode serializes c.
func Encode(c Config, f Format) ([]byte, error) {
	switch f {
	case FormatTOML:
		return toml.Marshal(c)
	case FormatYAML:
		return yaml.Marshal(c)
	case FormatJSON:
		return json.MarshalIndent(c, "", "  ")
	}
	return nil, fmt.Errorf("unknown format %q", f)
}

// Load reads and normalizes the config at path. Warnings describe the
// values Normalize changed.
func Load(path string) (Config, []string, error) {
	f, err := FormatFor(path)
	if err != nil {
		return Config{}, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Decode(data, f)
	if err != nil {
		return Config{}, nil, err
	}
	warnings := c.Normalize()
	return c, warnings, nil
}

// Save writes c to path in the format matching its extension.
func Save(path string, c Config) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := Encode(c, f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
