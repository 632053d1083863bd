package main

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/gogpu/meshthumb"
)

type imageFormat string

const (
	formatPNG  imageFormat = "png"
	formatJPEG imageFormat = "jpeg"
	formatGIF  imageFormat = "gif"
	formatBMP  imageFormat = "bmp"
	formatTIFF imageFormat = "tiff"
)

func parseImageFormat(s string) (imageFormat, bool) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return formatPNG, true
	case "jpg", "jpeg":
		return formatJPEG, true
	case "gif":
		return formatGIF, true
	case "bmp":
		return formatBMP, true
	case "tif", "tiff":
		return formatTIFF, true
	}
	return "", false
}

// output is where the encoded image goes. A path of "-" is standard output.
type output struct {
	path   string
	format imageFormat
}

// newOutput resolves the image format from the flag, then the file
// extension, then falls back to PNG.
func newOutput(path, flagFormat string) (*output, error) {
	if flagFormat != "" {
		f, ok := parseImageFormat(flagFormat)
		if !ok {
			return nil, fmt.Errorf("--format: unknown image format %q", flagFormat)
		}
		return &output{path: path, format: f}, nil
	}
	if f, ok := parseImageFormat(filepath.Ext(path)); ok {
		return &output{path: path, format: f}, nil
	}
	return &output{path: path, format: formatPNG}, nil
}

func (o *output) write(img image.Image, stdout io.Writer) (err error) {
	if o.path == "-" {
		return encode(stdout, img, o.format)
	}
	f, err := os.Create(o.path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := encode(f, img, o.format); err != nil {
		return fmt.Errorf("encode %s: %w", o.path, err)
	}
	return nil
}

func encode(w io.Writer, img image.Image, f imageFormat) error {
	switch f {
	case formatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case formatGIF:
		return gif.Encode(w, img, &gif.Options{NumColors: 256, Drawer: draw.FloydSteinberg})
	case formatBMP:
		return bmp.Encode(w, img)
	case formatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return png.Encode(w, img)
	}
}

// toImage wraps a tightly packed render buffer. RGB buffers are expanded to
// opaque NRGBA.
func toImage(pix []byte, w, h int, f meshthumb.PixelFormat) *image.NRGBA {
	if f == meshthumb.FormatRGBA {
		return &image.NRGBA{Pix: pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i+2 < len(pix); i, j = i+3, j+4 {
		img.Pix[j] = pix[i]
		img.Pix[j+1] = pix[i+1]
		img.Pix[j+2] = pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// downscale resamples a supersampled render to w x h.
func downscale(src *image.NRGBA, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// pixelDigest is the md5 of img laid out the way the renderer writes f, so
// that it matches a digest of the raw buffer.
func pixelDigest(img *image.NRGBA, f meshthumb.PixelFormat) string {
	h := md5.New()
	if f == meshthumb.FormatRGBA {
		h.Write(img.Pix)
	} else {
		row := make([]byte, 0, img.Rect.Dx()*3)
		for y := 0; y < img.Rect.Dy(); y++ {
			row = row[:0]
			line := img.Pix[y*img.Stride : y*img.Stride+img.Rect.Dx()*4]
			for x := 0; x < len(line); x += 4 {
				row = append(row, line[x], line[x+1], line[x+2])
			}
			h.Write(row)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
