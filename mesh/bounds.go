package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
)

// BoundingBox is an axis-aligned box given by its minimum and maximum corner.
type BoundingBox struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// ComputeBounds scans positions once and returns their bounding box.
// The zero BoundingBox is returned for an empty slice.
func ComputeBounds(positions []mgl32.Vec3) BoundingBox {
	if len(positions) == 0 {
		return BoundingBox{}
	}
	b := BoundingBox{Min: positions[0], Max: positions[0]}
	for _, p := range positions[1:] {
		b.expand(p)
	}
	return b
}

func (b *BoundingBox) expand(p mgl32.Vec3) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the extent of the box along each axis.
func (b BoundingBox) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Longest returns the largest of the three axis extents.
func (b BoundingBox) Longest() float32 {
	s := b.Size()
	return max(s[0], s[1], s[2])
}

// Diagonal returns the length of the box diagonal.
func (b BoundingBox) Diagonal() float32 {
	return b.Size().Len()
}

// Radius returns the radius of the sphere around Center that encloses the
// box, which is half the diagonal.
func (b BoundingBox) Radius() float32 {
	return b.Diagonal() * 0.5
}

// IsDegenerate reports whether the box has no usable extent.
func (b BoundingBox) IsDegenerate() bool {
	return b.Longest() <= Epsilon
}
