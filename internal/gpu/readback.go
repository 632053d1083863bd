package gpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// PixelFormat is the byte layout of the caller's output buffer.
type PixelFormat uint8

const (
	// FormatRGBA is 4 bytes per pixel, straight alpha.
	FormatRGBA PixelFormat = iota
	// FormatRGB is 3 bytes per pixel; alpha is dropped.
	FormatRGB
)

// BytesPerPixel returns 4 for FormatRGBA and 3 for FormatRGB.
func (f PixelFormat) BytesPerPixel() int {
	if f == FormatRGB {
		return 3
	}
	return 4
}

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA:
		return "RGBA"
	case FormatRGB:
		return "RGB"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
}

// RequiredSize returns the exact output buffer length for a w x h image.
func RequiredSize(w, h int, f PixelFormat) int {
	return w * h * f.BytesPerPixel()
}

// paddedRowPitch rounds a row of w RGBA8 pixels up to align bytes.
func paddedRowPitch(w, align uint32) uint32 {
	if align == 0 {
		align = defaultCopyPitch
	}
	row := w * 4
	return (row + align - 1) / align * align
}

// stripRowPadding copies h rows of w RGBA8 pixels, pitch bytes apart in
// src, into dst tightly packed, top row first. For FormatRGB the alpha
// byte of every pixel is dropped.
func stripRowPadding(dst, src []byte, w, h, pitch int, f PixelFormat) {
	row := w * 4
	if f == FormatRGBA {
		for y := 0; y < h; y++ {
			copy(dst[y*row:(y+1)*row], src[y*pitch:y*pitch+row])
		}
		return
	}
	for y := 0; y < h; y++ {
		s := src[y*pitch : y*pitch+row]
		d := dst[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			copy(d[x*3:x*3+3], s[x*4:x*4+3])
		}
	}
}

// readTexture copies tex into a staging buffer, waits, maps it and strips
// the row padding into dst.
func readTexture(dev *Device, tex hal.Texture, w, h uint32, dst []byte, f PixelFormat) error {
	device := dev.Device
	pitch := paddedRowPitch(w, dev.CopyPitch)
	size := uint64(pitch) * uint64(h)

	staging, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer device.DestroyBuffer(staging)

	err = submitAndWait(dev, "readback", func(enc hal.CommandEncoder) {
		// Attachments must be moved into a copy-source layout first; a
		// no-op on backends without explicit layouts.
		enc.TransitionTextures([]hal.TextureBarrier{{
			Texture: tex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		}})
		enc.CopyTextureToBuffer(tex, staging, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: pitch, RowsPerImage: h},
			TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
			Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		}})
	})
	if err != nil {
		var rb *ReadbackError
		if errors.As(err, &rb) {
			return err
		}
		return &ReadbackError{Op: "copy", Err: err}
	}

	mapping, err := device.MapBuffer(staging, 0, size)
	if err != nil {
		return &ReadbackError{Op: "map", Err: err}
	}
	if mapping.Ptr == nil {
		_ = device.UnmapBuffer(staging)
		return &ReadbackError{Op: "map", Err: hal.ErrInvalidMapRange}
	}
	src := unsafe.Slice((*byte)(mapping.Ptr), size)
	stripRowPadding(dst, src, int(w), int(h), int(pitch), f)
	if err := device.UnmapBuffer(staging); err != nil {
		return &ReadbackError{Op: "unmap", Err: err}
	}

	slogger().Debug("gpu: readback complete", "width", w, "height", h, "pitch", pitch, "format", f.String())
	return nil
}
