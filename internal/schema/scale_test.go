package schema

import "testing"

func TestParseScaled(t *testing.T) {
	cases := []struct {
		in    string
		scale Scale
		want  int64
	}{
		{"26441.4", 8, 2644140000000},
		{"26494.5", 8, 2649450000000},
		{"0.1", 8, 10000000},
		{"0.01", 8, 1000000},
		{"1", 8, 100000000},
		{"-6", 8, -600000000},
		{"0", 8, 0},
		{"123.456", 3, 123456},
		{"0.00000001", 8, 1},
		{"42", 0, 42},
		{"10.500", 2, 1050},
	}
	for _, c := range cases {
		got, err := ParseScaled(c.in, c.scale)
		if err != nil {
			t.Fatalf("ParseScaled(%q, %d): %v", c.in, c.scale, err)
		}
		if got != c.want {
			t.Fatalf("ParseScaled(%q, %d) = %d, want %d", c.in, c.scale, got, c.want)
		}
	}
}

func TestParseScaledRejects(t *testing.T) {
	for _, in := range []string{"", ".", "abc", "1.2.3", "0.123", "-"} {
		if _, err := ParseScaled(in, 2); err == nil {
			t.Fatalf("ParseScaled(%q, 2) expected error", in)
		}
	}
}

func TestFormatScaled(t *testing.T) {
	cases := []struct {
		in    int64
		scale Scale
		want  string
	}{
		{2644140000000, 8, "26441.4"},
		{10000000, 8, "0.1"},
		{1, 8, "0.00000001"},
		{0, 8, "0"},
		{-600000000, 8, "-6"},
		{100000000, 8, "1"},
		{42, 0, "42"},
		{1050, 2, "10.5"},
	}
	for _, c := range cases {
		if got := FormatScaled(c.in, c.scale); got != c.want {
			t.Fatalf("FormatScaled(%d, %d) = %q, want %q", c.in, c.scale, got, c.want)
		}
	}
}

func TestScaledRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 10000000, 2644140000000, -2649450000000, 999999999999999}
	for _, v := range values {
		s := FormatScaled(v, 8)
		got, err := ParseScaled(s, 8)
		if err != nil {
			t.Fatalf("ParseScaled(%q, 8): %v", s, err)
		}
		if got != v {
			t.Fatalf("round trip %d -> %q -> %d", v, s, got)
		}
	}
}
