package qsim

import (
	"math"
	"math/cmplx"
)

// #region matrices
// mat2 is a 2x2 complex matrix, row-major.
type mat2 [2][2]complex128

func (a mat2) mul(b mat2) mat2 {
	var out mat2
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			out[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j]
		}
	}
	return out
}

func (a mat2) adjoint() mat2 {
	return mat2{
		{cmplx.Conj(a[0][0]), cmplx.Conj(a[1][0])},
		{cmplx.Conj(a[0][1]), cmplx.Conj(a[1][1])},
	}
}

func rz(phi float64) mat2 {
	return mat2{
		{cmplx.Exp(complex(0, -phi/2)), 0},
		{0, cmplx.Exp(complex(0, phi/2))},
	}
}

func ry(theta float64) mat2 {
	c, s := math.Cos(theta/2), math.Sin(theta/2)
	return mat2{
		{complex(c, 0), complex(-s, 0)},
		{complex(s, 0), complex(c, 0)},
	}
}

// rot is Rot(phi, theta, omega) = RZ(omega) RY(theta) RZ(phi).
func rot(phi, theta, omega float64) mat2 {
	return rz(omega).mul(ry(theta)).mul(rz(phi))
}

// #endregion matrices
