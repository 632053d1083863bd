// Command meshthumb renders a thumbnail of an STL, OBJ or 3MF model.
//
// Usage:
//
//	meshthumb [flags] MODEL_FILE [IMG_FILE]
//
// MODEL_FILE may be "-" to read a binary or ASCII STL from standard input,
// and IMG_FILE may be "-" to write the image to standard output. IMG_FILE
// can be omitted together with --md5, which prints the md5 digest of the
// raw pixel buffer instead of writing an image. --md5 with IMG_FILE "-" is
// rejected since both would share standard output.
//
// Examples:
//
//	meshthumb part.stl part.png
//	meshthumb -s 512x256 -b ffffff --cam-position 0,-1,0.3 part.3mf part.jpg
//	meshthumb --backend software --md5 part.obj
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/meshthumb"
	"github.com/gogpu/meshthumb/mesh"
	"github.com/gogpu/meshthumb/meshio"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command and returns its exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, verbose, rest, err := parseArgs(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, "meshthumb:", err)
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel(verbose)}))
	meshthumb.SetLogger(logger)
	defer meshthumb.SetLogger(nil)

	if err := render(cfg, rest, stdin, stdout, logger); err != nil {
		fmt.Fprintln(stderr, "meshthumb:", err)
		return 1
	}
	return 0
}

// parseArgs parses the command line twice: once to find --config, and once
// more on top of the loaded file so that flags win.
func parseArgs(args []string, stderr io.Writer) (config, int, []string, error) {
	probe := defaultConfig()
	f := newFlags(&probe)
	f.set.SetOutput(stderr)
	f.set.Usage = func() { usage(f.set, stderr) }
	if err := f.set.Parse(args); err != nil {
		return config{}, 0, nil, err
	}
	if f.configPath == "" {
		return probe, f.verbose, f.set.Args(), validateArgs(probe, f.set.Args())
	}

	cfg := defaultConfig()
	if err := loadConfig(f.configPath, &cfg); err != nil {
		return config{}, 0, nil, err
	}
	final := newFlags(&cfg)
	final.set.SetOutput(io.Discard)
	if err := final.set.Parse(args); err != nil {
		return config{}, 0, nil, err
	}
	verbose := cfg.Verbose + final.verbose
	return cfg, verbose, final.set.Args(), validateArgs(cfg, final.set.Args())
}

func validateArgs(cfg config, args []string) error {
	switch {
	case len(args) == 2 && cfg.MD5 && args[1] == "-":
		return errors.New("--md5 and IMG_FILE - both write to standard output")
	case len(args) == 2:
		return nil
	case len(args) == 1 && cfg.MD5:
		return nil
	case len(args) == 1:
		return errors.New("missing IMG_FILE (or use --md5)")
	case len(args) == 0:
		return errors.New("missing MODEL_FILE")
	default:
		return fmt.Errorf("unexpected arguments %q", args[2:])
	}
}

func usage(fs *pflag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "usage: meshthumb [flags] MODEL_FILE [IMG_FILE]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Render a thumbnail of an STL, OBJ or 3MF model.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "flags:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func logLevel(verbose int) slog.Level {
	switch {
	case verbose >= 2:
		return slog.LevelDebug
	case verbose == 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

func render(cfg config, args []string, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	start := time.Now()

	w, h, err := parseSize(cfg.Size)
	if err != nil {
		return err
	}
	if cfg.Supersample < 1 {
		return fmt.Errorf("--supersample %d: must be >= 1", cfg.Supersample)
	}
	opts, err := cfg.options(w*cfg.Supersample, h*cfg.Supersample)
	if err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	ropts, err := cfg.rendererOptions()
	if err != nil {
		return err
	}

	var out *output
	if len(args) > 1 {
		out, err = newOutput(args[1], cfg.Format)
		if err != nil {
			return err
		}
	}

	m, err := loadModel(args[0], stdin)
	if err != nil {
		return err
	}

	r := meshthumb.NewRenderer(ropts...)
	defer r.Close()

	pix := make([]byte, meshthumb.RequiredSize(opts.Width, opts.Height, opts.Format))
	if err := r.Render(m, opts, pix); err != nil {
		return err
	}

	img := toImage(pix, opts.Width, opts.Height, opts.Format)
	if cfg.Supersample > 1 {
		img = downscale(img, w, h)
	}

	if cfg.MD5 {
		fmt.Fprintln(stdout, pixelDigest(img, opts.Format))
	}
	if out != nil {
		if err := out.write(img, stdout); err != nil {
			return err
		}
	}

	if logger.Enabled(context.Background(), slog.LevelInfo) {
		p := message.NewPrinter(language.English)
		info, _ := r.AdapterInfo()
		logger.Info(p.Sprintf("rendered %d triangles at %dx%d in %v", m.TriangleCount(), w, h, time.Since(start).Round(time.Millisecond)),
			"adapter", info.Name)
	}
	return nil
}

func loadModel(path string, stdin io.Reader) (*mesh.Mesh, error) {
	if path == "-" {
		return meshio.Decode(stdin, meshio.FormatSTL)
	}
	return meshio.Load(path)
}
