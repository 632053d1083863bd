// Package camera frames a normalized mesh: it places the eye along a
// direction vector far enough away that the whole bounding sphere fits in the
// field of view, and builds the view and projection matrices for it.
package camera

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/meshthumb/mesh"
)

// DefaultDirection is the eye direction used when Params.Direction is zero:
// an oblique view from the front right, slightly above.
var DefaultDirection = mgl32.Vec3{2, -4, 2}

const (
	// DefaultFovDeg is the default vertical field of view in degrees.
	DefaultFovDeg = 45.0

	// DefaultMargin leaves a little air between the model silhouette and
	// the image border.
	DefaultMargin = 1.05

	minNear = 1e-3
)

// ErrInvalidParams is returned by Plan for out-of-range parameters.
var ErrInvalidParams = errors.New("camera: invalid parameters")

// Params describes how to frame a model.
type Params struct {
	// FovDeg is the vertical field of view in degrees, in (0, 180).
	FovDeg float32

	// Direction points from the target towards the eye. It does not need
	// to be unit length. Zero means DefaultDirection.
	Direction mgl32.Vec3

	// Margin scales the bounding radius before fitting; must be >= 1.
	Margin float32

	// Width and Height are the output size in pixels and set the aspect
	// ratio.
	Width, Height int
}

// Camera is a planned view. It is computed once per render and not mutated.
type Camera struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Up     mgl32.Vec3

	// FovY is the vertical field of view in radians.
	FovY float32

	Near, Far float32
	Aspect    float32

	// Distance is the eye-to-target distance.
	Distance float32

	// Radius is the bounding-sphere radius the camera was fitted to.
	Radius float32
}

// Plan computes a camera for bounds. The eye sits on the ray from the box
// center along p.Direction at
//
//	distance = radius * margin / sin(fov/2)
//
// where radius is half the box diagonal. When the image is taller than wide
// the horizontal field of view is the narrower one and is used instead, so
// the sphere fits in both directions.
func Plan(bounds mesh.BoundingBox, p Params) (Camera, error) {
	if err := p.validate(); err != nil {
		return Camera{}, err
	}

	dir := p.Direction
	if dir == (mgl32.Vec3{}) {
		dir = DefaultDirection
	}
	dir = dir.Normalize()

	margin := p.Margin
	if margin == 0 {
		margin = DefaultMargin
	}

	radius := bounds.Radius()
	if radius <= mesh.Epsilon {
		radius = 1
	}

	aspect := float32(p.Width) / float32(p.Height)
	fovY := mgl32.DegToRad(p.FovDeg)
	fitFov := float64(fovY)
	if aspect < 1 {
		fitFov = 2 * math.Atan(math.Tan(fitFov/2)*float64(aspect))
	}
	distance := float32(float64(radius*margin) / math.Sin(fitFov/2))

	target := bounds.Center()
	near := max((distance-radius)*0.5, minNear)

	return Camera{
		Eye:      target.Add(dir.Mul(distance)),
		Target:   target,
		Up:       upFor(dir),
		FovY:     fovY,
		Near:     near,
		Far:      distance + 2*radius,
		Aspect:   aspect,
		Distance: distance,
		Radius:   radius,
	}, nil
}

func (p Params) validate() error {
	if !(p.FovDeg > 0 && p.FovDeg < 180) {
		return fmt.Errorf("%w: field of view %v must be in (0, 180)", ErrInvalidParams, p.FovDeg)
	}
	if p.Margin != 0 && p.Margin < 1 {
		return fmt.Errorf("%w: margin %v must be >= 1", ErrInvalidParams, p.Margin)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidParams, p.Width, p.Height)
	}
	for _, c := range p.Direction {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return fmt.Errorf("%w: direction %v", ErrInvalidParams, p.Direction)
		}
	}
	return nil
}

// upFor returns +Z, or +Y when dir is (nearly) parallel to Z and +Z would
// make the look-at basis degenerate.
func upFor(dir mgl32.Vec3) mgl32.Vec3 {
	if math.Abs(float64(dir[2])) > 0.999 {
		return mgl32.Vec3{0, 1, 0}
	}
	return mgl32.Vec3{0, 0, 1}
}

// View returns the world-to-eye matrix.
func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, c.Target, c.Up)
}

// clipDepthRemap maps OpenGL clip depth [-w, w] to WebGPU's [0, w].
var clipDepthRemap = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Projection returns the right-handed perspective matrix with a [0, 1]
// depth range.
func (c Camera) Projection() mgl32.Mat4 {
	return clipDepthRemap.Mul4(mgl32.Perspective(c.FovY, c.Aspect, c.Near, c.Far))
}

// FitsSphere reports whether a sphere of radius r around the target lies
// inside the camera's vertical view cone.
func (c Camera) FitsSphere(r float32) bool {
	return float64(c.Distance)*math.Sin(float64(c.FovY)/2) >= float64(r)*(1-1e-6)
}
