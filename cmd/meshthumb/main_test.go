package main

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/meshthumb"
)

const cubeOBJ = `# unit cube
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0 0 1
v 1 0 1
v 1 1 1
v 0 1 1
f 1 4 3 2
f 5 6 7 8
f 1 2 6 5
f 2 3 7 6
f 3 4 8 7
f 4 1 5 8
`

const triangleSTL = `solid tri
facet normal 0 0 1
  outer loop
    vertex 0 0 0
    vertex 1 0 0
    vertex 0 1 0
  endloop
endfacet
endsolid tri
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func zeroDigest(n int) string {
	sum := md5.Sum(make([]byte, n))
	return hex.EncodeToString(sum[:])
}

func runCmd(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunWritesPNG(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "cube.obj", cubeOBJ)
	img := filepath.Join(dir, "cube.png")

	code, _, stderr := runCmd(t, "", "--backend", "noop", "-s", "16x8", model, img)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	f, err := os.Open(img)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := decoded.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
		t.Errorf("image size = %v, want 16x8", b)
	}
}

func TestRunMD5(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "cube.obj", cubeOBJ)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"rgba", []string{"-s", "4"}, zeroDigest(4 * 4 * 4)},
		{"rgb", []string{"-s", "4x2", "--rgb"}, zeroDigest(4 * 2 * 3)},
		{"supersample", []string{"-s", "3", "--supersample", "2"}, zeroDigest(3 * 3 * 4)},
		{"host fxaa", []string{"-s", "4", "--post-process", "host"}, zeroDigest(4 * 4 * 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--backend", "noop", "--md5"}, tt.args...)
			args = append(args, model)
			code, stdout, stderr := runCmd(t, "", args...)
			if code != 0 {
				t.Fatalf("exit %d: %s", code, stderr)
			}
			if got := strings.TrimSpace(stdout); got != tt.want {
				t.Errorf("md5 = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRunModelFromStdin(t *testing.T) {
	code, stdout, stderr := runCmd(t, triangleSTL, "--backend", "noop", "--md5", "-s", "2", "-")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if got := strings.TrimSpace(stdout); got != zeroDigest(2*2*4) {
		t.Errorf("md5 = %s", got)
	}
}

func TestRunImageToStdout(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "cube.obj", cubeOBJ)
	code, stdout, stderr := runCmd(t, "", "--backend", "noop", "-s", "5", model, "-")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	img, err := png.Decode(strings.NewReader(stdout))
	if err != nil {
		t.Fatalf("stdout is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 5 {
		t.Errorf("width = %d, want 5", img.Bounds().Dx())
	}
}

func TestRunRejectsMD5WithImageOnStdout(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "cube.obj", cubeOBJ)
	code, stdout, stderr := runCmd(t, "", "--backend", "noop", "-s", "5", "--md5", model, "-")
	if code != 2 {
		t.Fatalf("exit %d, want 2: %s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want nothing", stdout)
	}
	if !strings.Contains(stderr, "standard output") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRunConfigFile(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "cube.obj", cubeOBJ)
	cfg := writeFile(t, dir, "meshthumb.yaml", `size: 8x4
md5: true
backend: [noop]
background: "#ff8000"
`)

	code, stdout, stderr := runCmd(t, "", "--config", cfg, model)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if got := strings.TrimSpace(stdout); got != zeroDigest(8*4*4) {
		t.Errorf("config size: md5 = %s", got)
	}

	// Flags override the file.
	code, stdout, stderr = runCmd(t, "", "--config", cfg, "-s", "2", model)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if got := strings.TrimSpace(stdout); got != zeroDigest(2*2*4) {
		t.Errorf("flag override: md5 = %s", got)
	}

	bad := writeFile(t, dir, "bad.yaml", "sizee: 3\n")
	if code, _, _ := runCmd(t, "", "--config", bad, model); code != 2 {
		t.Errorf("unknown config key: exit %d, want 2", code)
	}
}

func TestRunVerboseLogs(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "cube.obj", cubeOBJ)
	code, _, stderr := runCmd(t, "", "--backend", "noop", "--md5", "-s", "2", "-v", model)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(stderr, "rendered 12 triangles at 2x2") {
		t.Errorf("stderr missing summary:\n%s", stderr)
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	model := writeFile(t, dir, "cube.obj", cubeOBJ)
	out := filepath.Join(dir, "out.png")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"help", []string{"--help"}, 0},
		{"no args", nil, 2},
		{"no image", []string{model}, 2},
		{"too many", []string{model, out, "extra"}, 2},
		{"md5 and image on stdout", []string{"--backend", "noop", "--md5", model, "-"}, 2},
		{"unknown flag", []string{"--frobnicate", model, out}, 2},
		{"missing model", []string{"--backend", "noop", filepath.Join(dir, "nope.stl"), out}, 1},
		{"unsupported model", []string{"--backend", "noop", writeFile(t, dir, "m.ply", "ply"), out}, 1},
		{"bad size", []string{"--backend", "noop", "-s", "0x3", model, out}, 1},
		{"too large", []string{"--backend", "noop", "-s", "9000", model, out}, 1},
		{"bad background", []string{"--backend", "noop", "-b", "red", model, out}, 1},
		{"bad image format", []string{"--backend", "noop", "-f", "webp", model, out}, 1},
		{"bad post process", []string{"--backend", "noop", "--post-process", "cpu", model, out}, 1},
		{"unknown backend", []string{"--backend", "glide", model, out}, 1},
		{"bad samples", []string{"--backend", "noop", "--sample-count", "3", model, out}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, stderr := runCmd(t, "", tt.args...); code != tt.want {
				t.Errorf("exit %d, want %d: %s", code, tt.want, stderr)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in     string
		w, h   int
		hasErr bool
	}{
		{"256", 256, 256, false},
		{"640x480", 640, 480, false},
		{"640X480", 640, 480, false},
		{"0", 0, 0, true},
		{"10x-1", 0, 0, true},
		{"x10", 0, 0, true},
		{"big", 0, 0, true},
	}
	for _, tt := range tests {
		w, h, err := parseSize(tt.in)
		if (err != nil) != tt.hasErr {
			t.Errorf("parseSize(%q) error = %v", tt.in, err)
			continue
		}
		if w != tt.w || h != tt.h {
			t.Errorf("parseSize(%q) = %dx%d, want %dx%d", tt.in, w, h, tt.w, tt.h)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"ff8000", color.NRGBA{0xff, 0x80, 0x00, 0xff}},
		{"#102030", color.NRGBA{0x10, 0x20, 0x30, 0xff}},
		{"10203040", color.NRGBA{0x10, 0x20, 0x30, 0x40}},
		{"00000000", color.NRGBA{}},
	}
	for _, tt := range tests {
		got, err := parseColor(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("parseColor(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	for _, bad := range []string{"", "fff", "gg0000", "ff00000"} {
		if _, err := parseColor(bad); err == nil {
			t.Errorf("parseColor(%q) succeeded", bad)
		}
	}
}

func TestParseVec3(t *testing.T) {
	v, err := parseVec3("1, -2.5,3")
	if err != nil || v != (mgl32.Vec3{1, -2.5, 3}) {
		t.Errorf("parseVec3 = %v, %v", v, err)
	}
	for _, bad := range []string{"1,2", "1,2,3,4", "a,b,c"} {
		if _, err := parseVec3(bad); err == nil {
			t.Errorf("parseVec3(%q) succeeded", bad)
		}
	}
}

func TestNewOutputFormat(t *testing.T) {
	tests := []struct {
		path, flag string
		want       imageFormat
	}{
		{"a.png", "", formatPNG},
		{"a.JPG", "", formatJPEG},
		{"a.tif", "", formatTIFF},
		{"a.bmp", "", formatBMP},
		{"a.gif", "", formatGIF},
		{"a.out", "", formatPNG},
		{"-", "", formatPNG},
		{"a.png", "jpeg", formatJPEG},
	}
	for _, tt := range tests {
		o, err := newOutput(tt.path, tt.flag)
		if err != nil || o.format != tt.want {
			t.Errorf("newOutput(%q, %q) = %v, %v; want %s", tt.path, tt.flag, o, err, tt.want)
		}
	}
}

func TestEncodeAllFormats(t *testing.T) {
	img := toImage(make([]byte, 4*4*3), 4, 4, meshthumb.FormatRGB)
	for _, f := range []imageFormat{formatPNG, formatJPEG, formatGIF, formatBMP, formatTIFF} {
		var buf bytes.Buffer
		if err := encode(&buf, img, f); err != nil {
			t.Errorf("%s: %v", f, err)
		}
		if buf.Len() == 0 {
			t.Errorf("%s: empty output", f)
		}
	}
}

func TestLogLevel(t *testing.T) {
	for v, want := range map[int]slog.Level{0: slog.LevelWarn, 1: slog.LevelInfo, 2: slog.LevelDebug, 5: slog.LevelDebug} {
		if got := logLevel(v); got != want {
			t.Errorf("logLevel(%d) = %v, want %v", v, got, want)
		}
	}
}
