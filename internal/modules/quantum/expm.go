package quantum

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// pade13 holds the coefficients of the degree-13 Pade approximant to the
// exponential, b[0]..b[13].
var pade13 = [...]float64{
	64764752532480000, 32382376266240000, 7771770303897600,
	1187353796428800, 129060195264000, 10559470521600,
	670442572800, 33522128640, 1323241920, 40840800,
	960960, 16380, 182, 1,
}

// theta13 is the 1-norm bound under which the degree-13 approximant holds
// double precision accuracy without scaling.
const theta13 = 5.371920351148152

// Expm computes the matrix exponential of a by scaling and squaring with
// a degree-13 Pade approximant. It returns an error when the input or the
// result contains non-finite values, or when the Pade denominator cannot
// be solved; callers in the flow path translate that into a
// NumericalInstabilityError.
func Expm(a *mat.Dense) (*mat.Dense, error) {
	r, c := a.Dims()
	if r != c {
		return nil, fmt.Errorf("matrix exponential requires a square matrix, got %dx%d", r, c)
	}
	if !AllFinite(a) {
		return nil, errors.New("matrix exponential input contains non-finite values")
	}

	norm := mat.Norm(a, 1)
	squarings := 0
	if norm > theta13 {
		squarings = int(math.Ceil(math.Log2(norm / theta13)))
	}

	scaled := mat.DenseCopyOf(a)
	if squarings > 0 {
		scaled.Scale(1/math.Pow(2, float64(squarings)), a)
	}
	if !AllFinite(scaled) {
		return nil, errors.New("matrix exponential scaling produced non-finite values")
	}

	ident := eye(r)

	var p2, p4, p6 mat.Dense
	p2.Mul(scaled, scaled)
	p4.Mul(&p2, &p2)
	p6.Mul(&p2, &p4)

	// Odd part: U = A (p6 (b13 p6 + b11 p4 + b9 p2) + b7 p6 + b5 p4 + b3 p2 + b1 I)
	var t mat.Dense
	t.Scale(pade13[13], &p6)
	addScaled(&t, pade13[11], &p4)
	addScaled(&t, pade13[9], &p2)

	var inner mat.Dense
	inner.Mul(&p6, &t)
	addScaled(&inner, pade13[7], &p6)
	addScaled(&inner, pade13[5], &p4)
	addScaled(&inner, pade13[3], &p2)
	addScaled(&inner, pade13[1], ident)

	var u mat.Dense
	u.Mul(scaled, &inner)

	// Even part: V = p6 (b12 p6 + b10 p4 + b8 p2) + b6 p6 + b4 p4 + b2 p2 + b0 I
	t.Scale(pade13[12], &p6)
	addScaled(&t, pade13[10], &p4)
	addScaled(&t, pade13[8], &p2)

	var v mat.Dense
	v.Mul(&p6, &t)
	addScaled(&v, pade13[6], &p6)
	addScaled(&v, pade13[4], &p4)
	addScaled(&v, pade13[2], &p2)
	addScaled(&v, pade13[0], ident)

	// exp(A) ~ (V - U)^-1 (V + U)
	var num, den mat.Dense
	num.Add(&v, &u)
	den.Sub(&v, &u)

	var lu mat.LU
	lu.Factorize(&den)
	result := &mat.Dense{}
	if err := lu.SolveTo(result, false, &num); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("failed to solve Pade system: %w", err)
		}
	}

	for i := 0; i < squarings; i++ {
		var sq mat.Dense
		sq.Mul(result, result)
		result = &sq
	}

	if !AllFinite(result) {
		return nil, errors.New("matrix exponential overflowed")
	}
	return result, nil
}

// addScaled adds f*m into dst element-wise.
func addScaled(dst *mat.Dense, f float64, m mat.Matrix) {
	var t mat.Dense
	t.Scale(f, m)
	dst.Add(dst, &t)
}
