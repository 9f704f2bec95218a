package utils

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TrimOrEmpty normalizes user input without turning nil into "nil".
func TrimOrEmpty(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeSpace collapses repeated whitespace into a single space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizePhone strips spaces, dashes, dots and the Congo country code so
// "+242 06 123 45 67" becomes "061234567".
func NormalizePhone(raw string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '-', '.', '(', ')':
			return -1
		}
		return r
	}, raw)
	for _, cc := range []string{"+242", "00242"} {
		if strings.HasPrefix(s, cc) {
			s = strings.TrimPrefix(s, cc)
			break
		}
	}
	return s
}

// ParseSeatNumber coerces a seat id into a positive integer.
func ParseSeatNumber(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("seat id is empty")
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) && !strings.ContainsAny(s, "eE") {
		s = strconv.Itoa(int(f))
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("seat id %q is not numeric", raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("seat id %q must be positive", raw)
	}
	return n, nil
}

// DuplicateInts returns values that appear more than once, sorted.
func DuplicateInts(values []int) []int {
	seen := make(map[int]int, len(values))
	for _, v := range values {
		seen[v]++
	}
	out := []int{}
	for v, n := range seen {
		if n > 1 {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

// IntersectInts returns the sorted values of want present in have.
func IntersectInts(want []int, have map[int]bool) []int {
	out := []int{}
	added := map[int]bool{}
	for _, v := range want {
		if have[v] && !added[v] {
			out = append(out, v)
			added[v] = true
		}
	}
	sort.Ints(out)
	return out
}
