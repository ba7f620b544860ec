// Package geometry provides the rotation and vector helpers used to
// place cameras and bodies in the simulated scenes.
//
// Euler angles are given as (x, y, z) rotations in the intrinsic XYZ
// convention and quaternions are scalar-first.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// eps is the threshold below which a rotation is treated as gimbal
// locked when converting back to Euler angles
const eps = 1e-12

// Euler2Quat converts a batch of Euler angles to quaternions using the
// half-angle sine/cosine product formula.
func Euler2Quat(euler []r3.Vec) []quat.Number {
	out := make([]quat.Number, len(euler))
	for i, e := range euler {
		out[i] = EulerToQuat(e)
	}
	return out
}

// EulerToQuat converts a single set of Euler angles to a quaternion
func EulerToQuat(e r3.Vec) quat.Number {
	ai, aj, ak := e.Z/2, -e.Y/2, e.X/2
	si, sj, sk := math.Sin(ai), math.Sin(aj), math.Sin(ak)
	ci, cj, ck := math.Cos(ai), math.Cos(aj), math.Cos(ak)
	cc, cs := ci*ck, ci*sk
	sc, ss := si*ck, si*sk

	return quat.Number{
		Real: cj*cc + sj*ss,
		Imag: cj*cs - sj*sc,
		Jmag: -(cj*ss + sj*cc),
		Kmag: cj*sc - sj*cs,
	}
}

// QuatToEuler converts a quaternion back to Euler angles. The result is
// only unique for rotations about y in (-π/2, π/2).
func QuatToEuler(q quat.Number) r3.Vec {
	m := QuatToMat(q)

	cy := math.Sqrt(m[2][2]*m[2][2] + m[1][2]*m[1][2])
	if cy > eps {
		return r3.Vec{
			X: -math.Atan2(m[1][2], m[2][2]),
			Y: -math.Atan2(-m[0][2], cy),
			Z: -math.Atan2(m[0][1], m[0][0]),
		}
	}
	return r3.Vec{
		X: 0,
		Y: -math.Atan2(-m[0][2], cy),
		Z: -math.Atan2(-m[1][0], m[1][1]),
	}
}

// QuatToMat returns the rotation matrix of a (not necessarily unit)
// quaternion. The identity is returned for the zero quaternion.
func QuatToMat(q quat.Number) [3][3]float64 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	n := w*w + x*x + y*y + z*z
	if n < eps {
		return [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	}
	s := 2 / n
	X, Y, Z := x*s, y*s, z*s
	wX, wY, wZ := w*X, w*Y, w*Z
	xX, xY, xZ := x*X, x*Y, x*Z
	yY, yZ, zZ := y*Y, y*Z, z*Z

	return [3][3]float64{
		{1 - (yY + zZ), xY - wZ, xZ + wY},
		{xY + wZ, 1 - (xX + zZ), yZ - wX},
		{xZ - wY, yZ + wX, 1 - (xX + yY)},
	}
}

// MatToQuat returns the unit quaternion of a rotation matrix
func MatToQuat(m [3][3]float64) quat.Number {
	var q quat.Number
	tr := m[0][0] + m[1][1] + m[2][2]
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		q = quat.Number{
			Real: 0.25 * s,
			Imag: (m[2][1] - m[1][2]) / s,
			Jmag: (m[0][2] - m[2][0]) / s,
			Kmag: (m[1][0] - m[0][1]) / s,
		}
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := math.Sqrt(1+m[0][0]-m[1][1]-m[2][2]) * 2
		q = quat.Number{
			Real: (m[2][1] - m[1][2]) / s,
			Imag: 0.25 * s,
			Jmag: (m[0][1] + m[1][0]) / s,
			Kmag: (m[0][2] + m[2][0]) / s,
		}
	case m[1][1] > m[2][2]:
		s := math.Sqrt(1+m[1][1]-m[0][0]-m[2][2]) * 2
		q = quat.Number{
			Real: (m[0][2] - m[2][0]) / s,
			Imag: (m[0][1] + m[1][0]) / s,
			Jmag: 0.25 * s,
			Kmag: (m[1][2] + m[2][1]) / s,
		}
	default:
		s := math.Sqrt(1+m[2][2]-m[0][0]-m[1][1]) * 2
		q = quat.Number{
			Real: (m[1][0] - m[0][1]) / s,
			Imag: (m[0][2] + m[2][0]) / s,
			Jmag: (m[1][2] + m[2][1]) / s,
			Kmag: 0.25 * s,
		}
	}
	return Normalize(q)
}

// Normalize returns q scaled to unit norm. The zero quaternion is
// returned as the identity rotation.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < eps {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// Rotate rotates v by the rotation q
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	q = Normalize(q)
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// InverseRotate rotates v by the inverse of q
func InverseRotate(q quat.Number, v r3.Vec) r3.Vec {
	return Rotate(quat.Conj(q), v)
}

// LookAt returns the orientation of a camera at eye looking towards
// target. Cameras look down their local -z axis with +y up.
func LookAt(eye, target, up r3.Vec) quat.Number {
	z := Unit(Sub(eye, target))
	x := Cross(up, z)
	if Norm(x) < eps {
		// Looking straight along up; any perpendicular x will do
		x = Cross(r3.Vec{Y: 1}, z)
	}
	x = Unit(x)
	y := Cross(z, x)

	return MatToQuat([3][3]float64{
		{x.X, y.X, z.X},
		{x.Y, y.Y, z.Y},
		{x.Z, y.Z, z.Z},
	})
}
