package main

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/meshthumb"
)

// maxConfigSize bounds the YAML file read by --config.
const maxConfigSize = 1 << 20

// config is the merged command line and config file settings. Field names
// in the YAML file match the long flag names with dashes replaced by
// underscores.
type config struct {
	Format        string   `yaml:"format"`
	Size          string   `yaml:"size"`
	Background    string   `yaml:"background"`
	RecalcNormals bool     `yaml:"recalc_normals"`
	FovDeg        float32  `yaml:"cam_fov_deg"`
	CamPosition   string   `yaml:"cam_position"`
	Margin        float32  `yaml:"margin"`
	SampleCount   int      `yaml:"sample_count"`
	NoAA          bool     `yaml:"no_aa"`
	RGB           bool     `yaml:"rgb"`
	Gamma         float32  `yaml:"gamma"`
	MD5           bool     `yaml:"md5"`
	Backend       []string `yaml:"backend"`
	PostProcess   string   `yaml:"post_process"`
	Supersample   int      `yaml:"supersample"`
	Verbose       int      `yaml:"verbose"`
}

func defaultConfig() config {
	d := meshthumb.DefaultOptions()
	return config{
		Size:        strconv.Itoa(d.Width),
		Background:  "00000000",
		FovDeg:      d.FovDeg,
		CamPosition: fmt.Sprintf("%g,%g,%g", d.Direction[0], d.Direction[1], d.Direction[2]),
		Margin:      d.Margin,
		SampleCount: d.SampleCount,
		Gamma:       d.Lighting.Gamma,
		PostProcess: "auto",
		Supersample: 1,
	}
}

// flags binds the command line to cfg, using cfg's current values as
// defaults so that flags override whatever the config file set.
type flags struct {
	set        *pflag.FlagSet
	configPath string
	verbose    int
}

func newFlags(cfg *config) *flags {
	f := &flags{set: pflag.NewFlagSet("meshthumb", pflag.ContinueOnError)}
	fs := f.set
	fs.SortFlags = false
	fs.StringVar(&f.configPath, "config", "", "read settings from a YAML `file`; flags override it")
	fs.StringVarP(&cfg.Format, "format", "f", cfg.Format, "image format: png, jpeg, gif, bmp or tiff (default from IMG_FILE extension, else png)")
	fs.StringVarP(&cfg.Size, "size", "s", cfg.Size, "image size as N or WxH")
	fs.StringVarP(&cfg.Background, "background", "b", cfg.Background, "background color as hex RRGGBB or RRGGBBAA")
	fs.BoolVar(&cfg.RecalcNormals, "recalc-normals", cfg.RecalcNormals, "ignore normals in the file and compute smooth ones")
	fs.Float32Var(&cfg.FovDeg, "cam-fov-deg", cfg.FovDeg, "vertical field of view in degrees")
	fs.StringVar(&cfg.CamPosition, "cam-position", cfg.CamPosition, "direction from the model to the camera as `x,y,z`")
	fs.Float32Var(&cfg.Margin, "margin", cfg.Margin, "framing margin, >= 1")
	fs.IntVar(&cfg.SampleCount, "sample-count", cfg.SampleCount, "MSAA samples, 1 or 4")
	fs.BoolVar(&cfg.NoAA, "no-aa", cfg.NoAA, "disable the FXAA post-pass")
	fs.BoolVar(&cfg.RGB, "rgb", cfg.RGB, "render without alpha")
	fs.Float32Var(&cfg.Gamma, "gamma", cfg.Gamma, "gamma correction exponent")
	fs.BoolVar(&cfg.MD5, "md5", cfg.MD5, "print the md5 of the pixel buffer instead of writing an image")
	fs.StringSliceVar(&cfg.Backend, "backend", cfg.Backend, "comma separated backends to try: vulkan, metal, dx12, gl, software, noop")
	fs.StringVar(&cfg.PostProcess, "post-process", cfg.PostProcess, "where FXAA runs: auto, gpu or host")
	fs.IntVar(&cfg.Supersample, "supersample", cfg.Supersample, "render N times larger and downscale")
	fs.CountVarP(&f.verbose, "verbose", "v", "log more; repeat for debug output")
	return f
}

// loadConfig reads a YAML config file over cfg.
func loadConfig(path string, cfg *config) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > maxConfigSize {
		return fmt.Errorf("config %s: larger than %d bytes", path, maxConfigSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// options turns cfg into render options at the output size w x h.
func (c *config) options(w, h int) (meshthumb.Options, error) {
	o := meshthumb.DefaultOptions()
	o.Width, o.Height = w, h
	o.FovDeg = c.FovDeg
	o.Margin = c.Margin
	o.SampleCount = c.SampleCount
	o.Antialias = !c.NoAA
	o.RecalcNormals = c.RecalcNormals
	o.Lighting.Gamma = c.Gamma
	if c.RGB {
		o.Format = meshthumb.FormatRGB
	}

	dir, err := parseVec3(c.CamPosition)
	if err != nil {
		return o, fmt.Errorf("--cam-position: %w", err)
	}
	o.Direction = dir

	bg, err := parseColor(c.Background)
	if err != nil {
		return o, fmt.Errorf("--background: %w", err)
	}
	o.Background = bg
	return o, nil
}

func (c *config) rendererOptions() ([]meshthumb.RendererOption, error) {
	var opts []meshthumb.RendererOption
	if len(c.Backend) > 0 {
		opts = append(opts, meshthumb.WithBackendNames(c.Backend...))
	}
	switch strings.ToLower(c.PostProcess) {
	case "", "auto":
	case "gpu":
		opts = append(opts, meshthumb.WithPostProcess(meshthumb.PostProcessGPU))
	case "host":
		opts = append(opts, meshthumb.WithPostProcess(meshthumb.PostProcessHost))
	default:
		return nil, fmt.Errorf("--post-process: unknown mode %q", c.PostProcess)
	}
	return opts, nil
}

// parseSize accepts "N" for a square or "WxH".
func parseSize(s string) (w, h int, err error) {
	ws, hs, found := strings.Cut(strings.ToLower(s), "x")
	w, err = strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	h = w
	if found {
		h, err = strconv.Atoi(strings.TrimSpace(hs))
		if err != nil {
			return 0, 0, fmt.Errorf("size %q: %w", s, err)
		}
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %q: must be positive", s)
	}
	return w, h, nil
}

// parseColor accepts RRGGBB or RRGGBBAA with an optional leading '#'.
// Six digits mean an opaque color.
func parseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 && len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("color %q: want 6 or 8 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	if len(s) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func parseVec3(s string) (mgl32.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return mgl32.Vec3{}, fmt.Errorf("%q: want x,y,z", s)
	}
	var v mgl32.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return mgl32.Vec3{}, fmt.Errorf("%q: %w", s, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}
