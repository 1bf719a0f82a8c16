package math

import (
	"math"
	"testing"
)

const eps = 1e-9

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	n := Vec3{3, 4, 12}.Normalize()
	if math.Abs(n.Length()-1) > eps {
		t.Errorf("Vec3.Normalize().Length() = %v, want 1", n.Length())
	}
	if (Vec3{}).Normalize() != (Vec3{}) {
		t.Error("zero vector should normalize to zero")
	}
}

func TestVec3Quantize(t *testing.T) {
	key := func(v Vec3) [3]int64 {
		k, ok := v.Quantize(1e-5)
		if !ok {
			t.Fatalf("Quantize(%v) should fit the grid", v)
		}
		return k
	}
	a := Vec3{1.000001, 2, 3}
	b := Vec3{1.000002, 2, 3}
	if key(a) != key(b) {
		t.Errorf("points within epsilon should share a key: %v vs %v", key(a), key(b))
	}
	c := Vec3{1.1, 2, 3}
	if key(a) == key(c) {
		t.Error("distinct points should not share a key")
	}
}

func TestVec3QuantizeOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		v    Vec3
	}{
		{"far positive", Vec3{1e14, 0, 0}},
		{"far negative", Vec3{0, -2e14, 0}},
		{"NaN", Vec3{0, 0, math.NaN()}},
		{"infinite", Vec3{math.Inf(1), 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := tt.v.Quantize(1e-5); ok {
				t.Errorf("Quantize(%v) should not fit the grid", tt.v)
			}
		})
	}
	if _, ok := (Vec3{9e13, 0, 0}).Quantize(1e-5); !ok {
		t.Error("9e13 at 1e-5 should still fit the grid")
	}
}

func TestIdentity(t *testing.T) {
	m := Identity()
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(10, 20, 30)
	got := m.TransformPoint(Vec3{1, 2, 3})

	want := Vec3{11, 22, 33}
	if got != want {
		t.Errorf("TransformPoint: got %v, want %v", got, want)
	}
}

func TestTransformPointRotateThenTranslate(t *testing.T) {
	// Rotate 90 degrees about Z, then move by (5, 0, 0).
	m := Translate(5, 0, 0).Mul(RotateZ(math.Pi / 2))
	got := m.TransformPoint(Vec3{1, 0, 0})
	want := Vec3{5, 1, 0}
	if !got.ApproxEqual(want, eps) {
		t.Errorf("TransformPoint: got %v, want %v", got, want)
	}
}

func TestTransformDirectionIgnoresTranslation(t *testing.T) {
	m := Translate(100, 100, 100)
	got := m.TransformDirection(Vec3{0, 0, 1})
	if got != (Vec3{0, 0, 1}) {
		t.Errorf("TransformDirection: got %v, want (0,0,1)", got)
	}
}

func TestRotateAxisMatchesRotateX(t *testing.T) {
	a := RotateAxis(Vec3{2, 0, 0}, 0.7)
	b := RotateX(0.7)
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			t.Fatalf("element %d: RotateAxis=%v RotateX=%v", i, a[i], b[i])
		}
	}
}

func TestIsRigid(t *testing.T) {
	tests := []struct {
		name string
		m    Mat4
		want bool
	}{
		{"identity", Identity(), true},
		{"translation", Translate(1, -2, 3), true},
		{"rotation", RotateAxis(Vec3{1, 1, 0}, 1.1), true},
		{"rotate and translate", Translate(4, 5, 6).Mul(RotateY(0.3)), true},
		{"scale", Mat4{2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 1}, false},
		{"mirror", Mat4{-1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.IsRigid(1e-9); got != tt.want {
				t.Errorf("IsRigid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuatToMat4MatchesRotateAxis(t *testing.T) {
	axis := Vec3{0, 1, 1}
	q := QuatFromAxisAngle(axis, math.Pi/3).ToMat4()
	m := RotateAxis(axis, math.Pi/3)
	for i := range q {
		if math.Abs(q[i]-m[i]) > 1e-9 {
			t.Fatalf("element %d: quat=%v axis=%v", i, q[i], m[i])
		}
	}
}

func TestQuatMulComposes(t *testing.T) {
	z90 := QuatFromAxisAngle(Vec3{0, 0, 1}, math.Pi/2)
	got := z90.Mul(z90).Rotate(Vec3{1, 0, 0})
	if !got.ApproxEqual(Vec3{-1, 0, 0}, eps) {
		t.Errorf("two quarter turns about Z should flip X, got %v", got)
	}
}
