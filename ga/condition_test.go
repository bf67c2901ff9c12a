package ga

import (
	"testing"

	"symexcore/smt"
)

// TestConditionTruthTable checks every condition against a selection of
// N/Z/C/V combinations against the textbook ARM truth table.
func TestConditionTruthTable(t *testing.T) {
	ctx := smt.NewContext()

	bit := func(b int) *smt.Expr { return ctx.Const(1, uint64(b)) }

	cases := []struct {
		cond       Condition
		n, z, c, v int
		want       bool
	}{
		{EQ, 0, 1, 0, 0, true},
		{EQ, 0, 0, 0, 0, false},
		{NE, 0, 0, 0, 0, true},
		{CS, 0, 0, 1, 0, true},
		{CC, 0, 0, 0, 0, true},
		{MI, 1, 0, 0, 0, true},
		{PL, 0, 0, 0, 0, true},
		{VS, 0, 0, 0, 1, true},
		{VC, 0, 0, 0, 0, true},
		{HI, 0, 0, 1, 0, true},
		{HI, 0, 1, 1, 0, false}, // Z set defeats HI even with C set
		{LS, 0, 1, 1, 0, true},
		{LS, 0, 0, 0, 0, true},
		{GE, 1, 0, 0, 1, true},  // N == V
		{GE, 1, 0, 0, 0, false}, // N != V
		{LT, 1, 0, 0, 0, true},
		{GT, 0, 0, 0, 0, true},  // Z clear, N == V
		{GT, 0, 1, 0, 0, false}, // Z set defeats GT
		{LE, 0, 1, 0, 0, true},
		{LE, 1, 0, 0, 0, true}, // N != V
		{None, 0, 0, 0, 0, true},
		{None, 1, 1, 1, 1, true},
	}

	for _, c := range cases {
		flags := Flags{N: bit(c.n), Z: bit(c.z), C: bit(c.c), V: bit(c.v)}
		got := c.cond.Eval(ctx, flags)
		if !got.IsConst() {
			t.Fatalf("%v: expected a constant-foldable result over concrete flags", c.cond)
		}
		gotBool := got.ConstValue().Sign() != 0
		if gotBool != c.want {
			t.Errorf("%v with N=%d Z=%d C=%d V=%d: got %v, want %v", c.cond, c.n, c.z, c.c, c.v, gotBool, c.want)
		}
	}
}

func TestConditionPairsAreComplementary(t *testing.T) {
	ctx := smt.NewContext()
	bit := func(b int) *smt.Expr { return ctx.Const(1, uint64(b)) }

	pairs := []struct{ a, b Condition }{
		{EQ, NE}, {CS, CC}, {MI, PL}, {VS, VC}, {HI, LS}, {GE, LT}, {GT, LE},
	}
	for n := 0; n <= 1; n++ {
		for z := 0; z <= 1; z++ {
			for c := 0; c <= 1; c++ {
				for v := 0; v <= 1; v++ {
					flags := Flags{N: bit(n), Z: bit(z), C: bit(c), V: bit(v)}
					for _, p := range pairs {
						a := p.a.Eval(ctx, flags).ConstValue().Sign() != 0
						b := p.b.Eval(ctx, flags).ConstValue().Sign() != 0
						if a == b {
							t.Fatalf("%v/%v not complementary at N=%d Z=%d C=%d V=%d", p.a, p.b, n, z, c, v)
						}
					}
				}
			}
		}
	}
}
