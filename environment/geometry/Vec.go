package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Add returns p + q
func Add(p, q r3.Vec) r3.Vec {
	return r3.Vec{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Sub returns p - q
func Sub(p, q r3.Vec) r3.Vec {
	return r3.Vec{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Scale returns f * p
func Scale(f float64, p r3.Vec) r3.Vec {
	return r3.Vec{X: f * p.X, Y: f * p.Y, Z: f * p.Z}
}

// Dot returns the dot product p · q
func Dot(p, q r3.Vec) float64 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

// Cross returns the cross product p × q
func Cross(p, q r3.Vec) r3.Vec {
	return r3.Vec{
		X: p.Y*q.Z - p.Z*q.Y,
		Y: p.Z*q.X - p.X*q.Z,
		Z: p.X*q.Y - p.Y*q.X,
	}
}

// Norm returns the Euclidean norm of p
func Norm(p r3.Vec) float64 {
	return math.Sqrt(Dot(p, p))
}

// Unit returns p scaled to unit length
func Unit(p r3.Vec) r3.Vec {
	n := Norm(p)
	if n == 0 {
		return p
	}
	return Scale(1/n, p)
}

// Distance returns the Euclidean distance between p and q
func Distance(p, q r3.Vec) float64 {
	return Norm(Sub(p, q))
}

// Distance2D returns the Euclidean distance between p and q in the x-y
// plane
func Distance2D(p, q r3.Vec) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Lerp returns t*p + (1-t)*q
func Lerp(t float64, p, q r3.Vec) r3.Vec {
	return Add(Scale(t, p), Scale(1-t, q))
}

// Slice returns p as a []float64 of length 3
func Slice(p r3.Vec) []float64 {
	return []float64{p.X, p.Y, p.Z}
}

// Clamp clamps each component of p to [low, high]
func Clamp(p, low, high r3.Vec) r3.Vec {
	return r3.Vec{
		X: math.Max(low.X, math.Min(high.X, p.X)),
		Y: math.Max(low.Y, math.Min(high.Y, p.Y)),
		Z: math.Max(low.Z, math.Min(high.Z, p.Z)),
	}
}
