package pricing

import "math"

// ToComma99Cents implements the ",99 ending" rule: the
// smallest integer-cents value not less than cents whose last two digits
// are 99.
//
// Properties:
//
//	ToComma99Cents(x) >= x
//	ToComma99Cents(x) - x < 100
//	ToComma99Cents(x) % 100 == 99
//	idempotent on values already ending ,99
func ToComma99Cents(cents int64) int64 {
	if mod(cents, 100) == 99 {
		return cents
	}
	e := floorDiv(cents, 100)
	t := e*100 + 99
	if t < cents {
		t = (e+1)*100 + 99
	}
	return t
}

// floorDiv and mod implement Euclidean-style floor division so negative
// cents (never expected in practice, but kept total) behave predictably
// rather than relying on Go's truncating "/" and "%".
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// RoundCents implements "round-half-up-away-from-zero" on a cents-valued
// float.
func RoundCents(x float64) int64 {
	if x >= 0 {
		return int64(math.Floor(x + 0.5))
	}
	return -int64(math.Floor(-x + 0.5))
}

// CeilToEuro rounds cents up to the next whole euro, expressed in cents
// (the "list" formula: ceil(after4/100)*100).
func CeilToEuro(cents int64) int64 {
	if mod(cents, 100) == 0 {
		return cents
	}
	return (floorDiv(cents, 100) + 1) * 100
}

// LadderInput is the per-product input to the price ladder.
type LadderInput struct {
	ListPrice      float64 // LP, euros
	CustBestPrice  float64 // CBP, euros
	Surcharge      float64 // euros, only meaningful when CBP route is used
	ShippingEuros  float64
	VATPercent     float64 // e.g. 22 for 22%
	FeeDrev        float64 // multiplier, e.g. 1.05
	FeeMkt         float64 // multiplier, e.g. 1.10
}

// LadderResult carries both outputs of the price ladder.
type LadderResult struct {
	PriceFinalCents      int64 // customer-facing price, ,99-ending
	ListPriceWithFeeCents int64 // integer-euro ceiling
}

// ComputeLadder runs the per-product price ladder:
//
//	base   = CBP>0 ? cents(CBP+Sur) : cents(LP)
//	after1 = base + cents(shipping)
//	after2 = round(after1 * (100+VAT%) / 100)
//	after3 = round(after2 * fee_drev)
//	after4 = round(after3 * fee_mkt)
//	final  = toComma99Cents(after4)
//	list   = ceil(after4/100)*100
func ComputeLadder(in LadderInput) LadderResult {
	var base int64
	if in.CustBestPrice > 0 {
		base = toCents(in.CustBestPrice + in.Surcharge)
	} else {
		base = toCents(in.ListPrice)
	}

	after1 := base + toCents(in.ShippingEuros)
	after2 := RoundCents(float64(after1) * (100 + in.VATPercent) / 100)
	after3 := RoundCents(float64(after2) * in.FeeDrev)
	after4 := RoundCents(float64(after3) * in.FeeMkt)

	return LadderResult{
		PriceFinalCents:       ToComma99Cents(after4),
		ListPriceWithFeeCents: CeilToEuro(after4),
	}
}

func toCents(euros float64) int64 {
	return RoundCents(euros * 100)
}

// EndsInComma99 reports whether cents' last two digits are 99.
func EndsInComma99(cents int64) bool {
	return mod(cents, 100) == 99
}
