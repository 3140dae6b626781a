package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ComplexityKind is the coarse family of a complexity class, in ascending order.
type ComplexityKind int

const (
	KindConstant ComplexityKind = iota
	KindLogarithmic
	KindLinear
	KindLinearithmic
	KindPolynomial
	KindExponential
	KindFactorial
)

// ComplexityClass is a totally ordered asymptotic class. Degree is only
// meaningful for KindPolynomial and is at least 2; degrees above 3 are kept so
// that O(n^5) still sorts above O(n^4).
type ComplexityClass struct {
	Kind   ComplexityKind
	Degree int
}

var (
	Constant     = ComplexityClass{Kind: KindConstant}
	Logarithmic  = ComplexityClass{Kind: KindLogarithmic}
	Linear       = ComplexityClass{Kind: KindLinear}
	Linearithmic = ComplexityClass{Kind: KindLinearithmic}
	Quadratic    = ComplexityClass{Kind: KindPolynomial, Degree: 2}
	Cubic        = ComplexityClass{Kind: KindPolynomial, Degree: 3}
	Exponential  = ComplexityClass{Kind: KindExponential}
	Factorial    = ComplexityClass{Kind: KindFactorial}
)

// Polynomial returns O(n^d). Degrees 0 and 1 collapse to O(1) and O(n).
func Polynomial(d int) ComplexityClass {
	switch {
	case d <= 0:
		return Constant
	case d == 1:
		return Linear
	default:
		return ComplexityClass{Kind: KindPolynomial, Degree: d}
	}
}

// Compare returns -1, 0 or +1 as c is below, equal to or above o.
func (c ComplexityClass) Compare(o ComplexityClass) int {
	switch {
	case c.Kind < o.Kind:
		return -1
	case c.Kind > o.Kind:
		return 1
	case c.Degree < o.Degree:
		return -1
	case c.Degree > o.Degree:
		return 1
	}
	return 0
}

// Exceeds reports whether c is strictly above o.
func (c ComplexityClass) Exceeds(o ComplexityClass) bool {
	return c.Compare(o) > 0
}

// MaxClass returns the larger of a and b.
func MaxClass(a, b ComplexityClass) ComplexityClass {
	if b.Compare(a) > 0 {
		return b
	}
	return a
}

func (c ComplexityClass) String() string {
	switch c.Kind {
	case KindConstant:
		return "O(1)"
	case KindLogarithmic:
		return "O(log n)"
	case KindLinear:
		return "O(n)"
	case KindLinearithmic:
		return "O(n log n)"
	case KindPolynomial:
		switch c.Degree {
		case 2:
			return "O(n²)"
		case 3:
			return "O(n³)"
		default:
			return fmt.Sprintf("O(n^%d)", c.Degree)
		}
	case KindExponential:
		return "O(2^n)"
	case KindFactorial:
		return "O(n!)"
	}
	return fmt.Sprintf("O(?%d)", int(c.Kind))
}

// ParseComplexity parses the notation produced by String. "O(n^2)" and
// "O(n^3)" are accepted as spellings of O(n²) and O(n³).
func ParseComplexity(s string) (ComplexityClass, error) {
	norm := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	switch norm {
	case "O(1)":
		return Constant, nil
	case "O(logn)":
		return Logarithmic, nil
	case "O(n)":
		return Linear, nil
	case "O(nlogn)":
		return Linearithmic, nil
	case "O(n²)":
		return Quadratic, nil
	case "O(n³)":
		return Cubic, nil
	case "O(2^n)":
		return Exponential, nil
	case "O(n!)":
		return Factorial, nil
	}
	if strings.HasPrefix(norm, "O(n^") && strings.HasSuffix(norm, ")") {
		d, err := strconv.Atoi(norm[len("O(n^") : len(norm)-1])
		if err == nil && d >= 0 {
			return Polynomial(d), nil
		}
	}
	return Constant, fmt.Errorf("unknown complexity class %q", s)
}

// Score places c on the 1..8 scale used for averaging. Polynomials above
// cubic score as cubic.
func (c ComplexityClass) Score() int {
	switch c.Kind {
	case KindConstant:
		return 1
	case KindLogarithmic:
		return 2
	case KindLinear:
		return 3
	case KindLinearithmic:
		return 4
	case KindPolynomial:
		if c.Degree <= 2 {
			return 5
		}
		return 6
	case KindExponential:
		return 7
	default:
		return 8
	}
}

// ClassForScore is the inverse of Score, clamped to the scale.
func ClassForScore(score int) ComplexityClass {
	switch {
	case score <= 1:
		return Constant
	case score == 2:
		return Logarithmic
	case score == 3:
		return Linear
	case score == 4:
		return Linearithmic
	case score == 5:
		return Quadratic
	case score == 6:
		return Cubic
	case score == 7:
		return Exponential
	default:
		return Factorial
	}
}

func (c ComplexityClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ComplexityClass) UnmarshalText(text []byte) error {
	parsed, err := ParseComplexity(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
