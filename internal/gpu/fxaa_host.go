package gpu

import (
	"fmt"
	"math"
)

// ApplyFXAA runs the FXAA filter of the GPU pass over tightly packed
// pixels in place. bpp is 4 for RGBA or 3 for RGB; alpha, when present, is
// copied from the source pixel unchanged. Sampling clamps to the image
// edge and interpolates bilinearly, as the GPU sampler does.
func ApplyFXAA(pix []byte, w, h, bpp int) error {
	if bpp != 3 && bpp != 4 {
		return fmt.Errorf("gpu: fxaa: %d bytes per pixel", bpp)
	}
	if w <= 0 || h <= 0 || len(pix) < w*h*bpp {
		return fmt.Errorf("gpu: fxaa: %d bytes for %dx%d", len(pix), w, h)
	}
	src := hostImage{pix: append([]byte(nil), pix[:w*h*bpp]...), w: w, h: h, bpp: bpp}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rgb := src.fxaa(float32(x)+0.5, float32(y)+0.5)
			off := (y*w + x) * bpp
			for c := 0; c < 3; c++ {
				pix[off+c] = toUnorm8(rgb[c])
			}
		}
	}
	return nil
}

type hostImage struct {
	pix  []byte
	w, h int
	bpp  int
}

type rgb [3]float32

func (a rgb) add(b rgb) rgb       { return rgb{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a rgb) scale(s float32) rgb { return rgb{a[0] * s, a[1] * s, a[2] * s} }
func (a rgb) luma() float32       { return 0.299*a[0] + 0.587*a[1] + 0.114*a[2] }

func (im *hostImage) texel(x, y int) rgb {
	x = min(max(x, 0), im.w-1)
	y = min(max(y, 0), im.h-1)
	off := (y*im.w + x) * im.bpp
	return rgb{
		float32(im.pix[off]) / 255,
		float32(im.pix[off+1]) / 255,
		float32(im.pix[off+2]) / 255,
	}
}

// sample filters bilinearly at continuous pixel coordinates, where texel
// centers lie at i+0.5.
func (im *hostImage) sample(x, y float32) rgb {
	fx, fy := x-0.5, y-0.5
	x0, y0 := float32(math.Floor(float64(fx))), float32(math.Floor(float64(fy)))
	tx, ty := fx-x0, fy-y0
	ix, iy := int(x0), int(y0)

	top := im.texel(ix, iy).scale(1 - tx).add(im.texel(ix+1, iy).scale(tx))
	bottom := im.texel(ix, iy+1).scale(1 - tx).add(im.texel(ix+1, iy+1).scale(tx))
	return top.scale(1 - ty).add(bottom.scale(ty))
}

func (im *hostImage) fxaa(x, y float32) rgb {
	center := im.sample(x, y)
	lumaNW := im.sample(x-1, y-1).luma()
	lumaNE := im.sample(x+1, y-1).luma()
	lumaSW := im.sample(x-1, y+1).luma()
	lumaSE := im.sample(x+1, y+1).luma()
	lumaM := center.luma()

	lumaMin := min(lumaM, lumaNW, lumaNE, lumaSW, lumaSE)
	lumaMax := max(lumaM, lumaNW, lumaNE, lumaSW, lumaSE)

	dirX := -((lumaNW + lumaNE) - (lumaSW + lumaSE))
	dirY := (lumaNW + lumaSW) - (lumaNE + lumaSE)
	dirReduce := max((lumaNW+lumaNE+lumaSW+lumaSE)*0.25*fxaaReduceMul, fxaaReduceMin)
	rcpDirMin := 1 / (min(abs32(dirX), abs32(dirY)) + dirReduce)
	dirX = clamp32(dirX*rcpDirMin, -fxaaSpanMax, fxaaSpanMax)
	dirY = clamp32(dirY*rcpDirMin, -fxaaSpanMax, fxaaSpanMax)

	at := func(k float32) rgb { return im.sample(x+dirX*k, y+dirY*k) }
	rgbA := at(1.0/3.0 - 0.5).add(at(2.0/3.0 - 0.5)).scale(0.5)
	rgbB := rgbA.scale(0.5).add(at(-0.5).add(at(0.5)).scale(0.25))

	if l := rgbB.luma(); l < lumaMin || l > lumaMax {
		return rgbA
	}
	return rgbB
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp32(v, lo, hi float32) float32 { return min(max(v, lo), hi) }

func toUnorm8(v float32) byte {
	return byte(clamp32(v, 0, 1)*255 + 0.5)
}
