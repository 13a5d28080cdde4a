package views

import (
	"strconv"
	"strings"
)

// Fixed1 renders v with exactly one decimal, rounding half away from zero on
// the shortest decimal representation of v (21.96 -> "22.0", 2.25 -> "2.3").
func Fixed1(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s + ".0"
	}
	if len(s)-dot <= 2 {
		return s
	}
	truncated := s[:dot+2]
	if s[dot+2] < '5' {
		return truncated
	}
	t, err := strconv.ParseFloat(truncated, 64)
	if err != nil {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	if v < 0 {
		t -= 0.1
	} else {
		t += 0.1
	}
	return strconv.FormatFloat(t, 'f', 1, 64)
}

// Fixed2 is the two decimal variant used for areas.
func Fixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Plain renders v with as many digits as needed and no trailing zeros.
func Plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func Temperature(v float64) string { return Fixed1(v) + "°C" }

func Percent(v float64) string { return Fixed1(v) + "%" }

// PH has no unit.
func PH(v float64) string { return Fixed1(v) }

// AdviceList splits free text advice into non-empty trimmed lines.
func AdviceList(advice string) []string {
	var out []string
	for _, line := range strings.Split(advice, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func itoa(i int) string { return strconv.Itoa(i) }
