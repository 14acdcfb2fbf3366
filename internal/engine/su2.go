package engine

import (
	"math"
	"math/cmplx"
)

// su2 is a row-major 2x2 unitary. Values are compared up to global phase.
type su2 [4]complex128

var identity2 = su2{1, 0, 0, 1}

func (a su2) mul(b su2) su2 {
	return su2{
		a[0]*b[0] + a[1]*b[2], a[0]*b[1] + a[1]*b[3],
		a[2]*b[0] + a[3]*b[2], a[2]*b[1] + a[3]*b[3],
	}
}

func (a su2) dagger() su2 {
	return su2{cmplx.Conj(a[0]), cmplx.Conj(a[2]), cmplx.Conj(a[1]), cmplx.Conj(a[3])}
}

// distance is the phase-invariant distance sqrt(1 - (|Tr(a†b)|/2)²).
func (a su2) distance(b su2) float64 {
	tr := cmplx.Conj(a[0])*b[0] + cmplx.Conj(a[2])*b[2] + cmplx.Conj(a[1])*b[1] + cmplx.Conj(a[3])*b[3]
	o := cmplx.Abs(tr) / 2
	d := 1 - o*o
	if d <= 0 {
		return 0
	}
	return math.Sqrt(d)
}

// special rescales a to determinant one.
func (a su2) special() su2 {
	det := a[0]*a[3] - a[1]*a[2]
	s := cmplx.Sqrt(det)
	if s == 0 {
		return a
	}
	return su2{a[0] / s, a[1] / s, a[2] / s, a[3] / s}
}

// rotation returns exp(-i·angle/2·(n·σ)) for a unit axis n.
func rotation(nx, ny, nz, angle float64) su2 {
	c, s := math.Cos(angle/2), math.Sin(angle/2)
	return su2{
		complex(c, -s*nz), complex(-s*ny, -s*nx),
		complex(s*ny, -s*nx), complex(c, s*nz),
	}
}

// axisAngle decomposes a special unitary into a rotation angle in [0, π]
// and a unit axis. The sign of the matrix is chosen so that cos(θ/2) >= 0.
func (a su2) axisAngle() (axis [3]float64, angle float64) {
	c := real(a[0]+a[3]) / 2
	snz := (imag(a[3]) - imag(a[0])) / 2
	snx := -(imag(a[1]) + imag(a[2])) / 2
	sny := (real(a[2]) - real(a[1])) / 2
	if c < 0 {
		c, snx, sny, snz = -c, -snx, -sny, -snz
	}
	s := math.Sqrt(snx*snx + sny*sny + snz*snz)
	angle = 2 * math.Atan2(s, c)
	if s < 1e-15 {
		return [3]float64{0, 0, 1}, angle
	}
	return [3]float64{snx / s, sny / s, snz / s}, angle
}

// alignAxes returns a rotation mapping unit vector from onto unit vector to.
func alignAxes(from, to [3]float64) su2 {
	cx := from[1]*to[2] - from[2]*to[1]
	cy := from[2]*to[0] - from[0]*to[2]
	cz := from[0]*to[1] - from[1]*to[0]
	dot := from[0]*to[0] + from[1]*to[1] + from[2]*to[2]
	norm := math.Sqrt(cx*cx + cy*cy + cz*cz)

	if norm < 1e-12 {
		if dot > 0 {
			return identity2
		}
		// antiparallel: half turn about any perpendicular axis
		px, py, pz := 1.0, 0.0, 0.0
		if math.Abs(from[0]) > 0.9 {
			px, py = 0, 1
		}
		// make p perpendicular to from
		k := px*from[0] + py*from[1] + pz*from[2]
		px, py, pz = px-k*from[0], py-k*from[1], pz-k*from[2]
		pn := math.Sqrt(px*px + py*py + pz*pz)
		return rotation(px/pn, py/pn, pz/pn, math.Pi)
	}
	return rotation(cx/norm, cy/norm, cz/norm, math.Atan2(norm, dot))
}

// groupCommutator finds V, W with V·W·V†·W† equal to u up to phase. Both are
// rotations by the same angle φ, balanced so that their distance from the
// identity scales like the square root of u's.
func groupCommutator(u su2) (v, w su2) {
	target, theta := u.special().axisAngle()
	phi := 2 * math.Asin(math.Pow((1-math.Cos(theta/2))/2, 0.25))

	v = rotation(1, 0, 0, phi)
	w = rotation(0, 1, 0, phi)
	commutator := v.mul(w).mul(v.dagger()).mul(w.dagger())
	axis, _ := commutator.axisAngle()

	s := alignAxes(axis, target)
	sd := s.dagger()
	return s.mul(v).mul(sd), s.mul(w).mul(sd)
}
