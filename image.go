package meshthumb

import (
	"image"

	"github.com/gogpu/meshthumb/mesh"
)

// RenderImage renders m into a newly allocated image. opts.Format is
// ignored: the image is always RGBA with straight alpha.
func RenderImage(m *mesh.Mesh, opts Options) (*image.NRGBA, error) {
	return NewRenderer().RenderImage(m, opts)
}

// RenderImage is Render into a newly allocated *image.NRGBA.
func (r *Renderer) RenderImage(m *mesh.Mesh, opts Options) (*image.NRGBA, error) {
	opts.Format = FormatRGBA
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	if err := r.Render(m, opts, img.Pix); err != nil {
		return nil, err
	}
	return img, nil
}
