package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseScaled parses a decimal string into a scaled integer. Digits
// beyond the scale must be zero; "26441.4" at scale 8 parses to
// 2644140000000.
func ParseScaled(s string, scale Scale) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty decimal")
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("empty decimal")
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx+1:]
	}
	if intPart == "" {
		intPart = "0"
	}

	if len(fracPart) > int(scale) {
		for _, c := range fracPart[scale:] {
			if c != '0' {
				return 0, fmt.Errorf("decimal %q exceeds scale %d", s, scale)
			}
		}
		fracPart = fracPart[:scale]
	}

	v, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	for i := Scale(0); i < scale; i++ {
		next := v * 10
		if next/10 != v {
			return 0, fmt.Errorf("decimal %q overflows scale %d", s, scale)
		}
		v = next
	}
	if fracPart != "" {
		f, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid decimal %q: %w", s, err)
		}
		for i := len(fracPart); i < int(scale); i++ {
			f *= 10
		}
		v += f
	}
	if neg {
		v = -v
	}
	return v, nil
}

// AppendScaled renders a scaled integer in minimal decimal form
// (no trailing fraction zeros, no bare trailing dot).
func AppendScaled(buf []byte, value int64, scale Scale) []byte {
	if scale <= 0 {
		return strconv.AppendInt(buf, value, 10)
	}

	neg := value < 0
	u := uint64(value)
	if neg {
		u = uint64(^value) + 1
	}

	var tmp [32]byte
	digits := strconv.AppendUint(tmp[:0], u, 10)

	if neg {
		buf = append(buf, '-')
	}

	var intDigits, fracDigits []byte
	if len(digits) <= int(scale) {
		intDigits = []byte{'0'}
		fracDigits = make([]byte, int(scale))
		for i := range fracDigits {
			fracDigits[i] = '0'
		}
		copy(fracDigits[int(scale)-len(digits):], digits)
	} else {
		idx := len(digits) - int(scale)
		intDigits, fracDigits = digits[:idx], digits[idx:]
	}

	for len(fracDigits) > 0 && fracDigits[len(fracDigits)-1] == '0' {
		fracDigits = fracDigits[:len(fracDigits)-1]
	}

	buf = append(buf, intDigits...)
	if len(fracDigits) > 0 {
		buf = append(buf, '.')
		buf = append(buf, fracDigits...)
	}
	return buf
}

// FormatScaled is AppendScaled into a fresh string.
func FormatScaled(value int64, scale Scale) string {
	return string(AppendScaled(nil, value, scale))
}
