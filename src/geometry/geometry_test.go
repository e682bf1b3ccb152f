package geometry

import (
	"image"
	"testing"
)

func TestScalePoint(t *testing.T) {
	tests := []struct {
		name   string
		p      Point
		factor float64
		want   Point
	}{
		{name: "halves round away from zero", p: Point{X: 2.5, Y: 3.5}, factor: 1, want: Point{X: 3, Y: 4}},
		{name: "negative halves", p: Point{X: -2.5, Y: -0.5}, factor: 1, want: Point{X: -3, Y: -1}},
		{name: "scale 1.25", p: Point{X: 100, Y: 300}, factor: 1.25, want: Point{X: 125, Y: 375}},
		{name: "scale 1.5 odd", p: Point{X: 3, Y: 5}, factor: 1.5, want: Point{X: 5, Y: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScalePoint(tt.p, tt.factor); got != tt.want {
				t.Errorf("ScalePoint(%v, %v) = %v, want %v", tt.p, tt.factor, got, tt.want)
			}
		})
	}
}

func TestRoundUp(t *testing.T) {
	tests := []struct {
		value    float64
		decimals int
		want     float64
	}{
		{2.01, 0, 3},
		{2.00, 0, 2},
		{-1.2, 0, -1},
		{1.25, 0, 2},
		{1.0, 0, 1},
		{1.231, 2, 1.24},
	}

	for _, tt := range tests {
		got := RoundUp(tt.value, tt.decimals)
		if Round(got, 6) != tt.want {
			t.Errorf("RoundUp(%v, %d) = %v, want %v", tt.value, tt.decimals, got, tt.want)
		}
		if got < tt.value {
			t.Errorf("RoundUp(%v, %d) = %v is below the input", tt.value, tt.decimals, got)
		}
	}
}

func TestRound(t *testing.T) {
	if got := Round(10.125, 2); got != 10.13 {
		t.Errorf("Round(10.125, 2) = %v, want 10.13", got)
	}
	if got := Round(-0.5, 0); got != -1 {
		t.Errorf("Round(-0.5, 0) = %v, want -1", got)
	}
}

func TestOffsetAndTranslate(t *testing.T) {
	r := NewRect(10, 20, 30, 40)

	grown := Offset(r, 1)
	if grown != NewRect(9, 19, 32, 42) {
		t.Errorf("Offset(+1) = %v", grown)
	}

	shrunk := Offset(r, -5)
	if shrunk != NewRect(15, 25, 20, 30) {
		t.Errorf("Offset(-5) = %v", shrunk)
	}

	moved := Translate(r, 100, -20)
	if moved != NewRect(110, 0, 30, 40) {
		t.Errorf("Translate = %v", moved)
	}

	if !Offset(Empty, 3).IsEmpty() || !Translate(Empty, 1, 1).IsEmpty() {
		t.Error("empty rect must stay empty")
	}
}

func TestEmpty(t *testing.T) {
	if !Empty.IsEmpty() {
		t.Fatal("Empty.IsEmpty() = false")
	}
	zero := NewRect(5, 5, 0, 0)
	if zero.IsEmpty() {
		t.Error("zero sized rect at a point must not be empty")
	}
	if !zero.Contains(Point{X: 5, Y: 5}) {
		t.Error("zero sized rect should contain its own origin")
	}
	if Empty.Contains(Point{}) {
		t.Error("Empty must not contain any point")
	}
	if Empty.String() != "empty" {
		t.Errorf("Empty.String() = %q", Empty.String())
	}
}

func TestIntersectionArea(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want float64
	}{
		{name: "overlap", a: NewRect(0, 0, 100, 100), b: NewRect(50, 50, 100, 100), want: 2500},
		{name: "contained", a: NewRect(0, 0, 100, 100), b: NewRect(10, 10, 10, 10), want: 100},
		{name: "touching edges", a: NewRect(0, 0, 100, 100), b: NewRect(100, 0, 100, 100), want: 0},
		{name: "disjoint", a: NewRect(0, 0, 10, 10), b: NewRect(50, 50, 10, 10), want: 0},
		{name: "empty", a: Empty, b: NewRect(0, 0, 10, 10), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IntersectionArea(tt.a, tt.b); got != tt.want {
				t.Errorf("IntersectionArea() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToImage(t *testing.T) {
	got := ToImage(NewRect(2045, 125, 375, 250))
	want := image.Rect(2045, 125, 2420, 375)
	if got != want {
		t.Errorf("ToImage() = %v, want %v", got, want)
	}
	if FromImage(want) != NewRect(2045, 125, 375, 250) {
		t.Errorf("FromImage() = %v", FromImage(want))
	}
}

func TestString(t *testing.T) {
	if s := NewRect(2045, 125, 375, 250).String(); s != "2045,125,375,250" {
		t.Errorf("String() = %q", s)
	}
	if s := (Point{X: 10.125, Y: 2}).String(); s != "10.13,2" {
		t.Errorf("Point.String() = %q", s)
	}
}
