package utils

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// ReferenceAlphabet has 32 symbols; 0/O and 1/I are left out so codes can be
// read aloud and typed from paper tickets.
const ReferenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const referenceLength = 4

// ReferenceGenerator produces PREFIX-XXXX booking codes.
type ReferenceGenerator struct {
	Prefix string
	// Random is the entropy source; crypto/rand when nil.
	Random func([]byte) (int, error)
}

func NewReferenceGenerator(prefix string) ReferenceGenerator {
	return ReferenceGenerator{Prefix: strings.ToUpper(strings.TrimSpace(prefix))}
}

// New returns a fresh reference. Each byte is masked to 5 bits, which maps
// uniformly onto the 32-symbol alphabet.
func (g ReferenceGenerator) New() (string, error) {
	read := g.Random
	if read == nil {
		read = rand.Read
	}
	buf := make([]byte, referenceLength)
	if _, err := read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	code := make([]byte, referenceLength)
	for i, b := range buf {
		code[i] = ReferenceAlphabet[b&0x1f]
	}
	return g.prefix() + "-" + string(code), nil
}

func (g ReferenceGenerator) prefix() string {
	if g.Prefix == "" {
		return "ODN"
	}
	return g.Prefix
}

// Pattern matches a reference anywhere in a string, case-insensitively.
func (g ReferenceGenerator) Pattern() *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(g.prefix()) + `-[` + ReferenceAlphabet + `]{4}\b`)
}

// Valid reports whether s is exactly a reference of this generator.
func (g ReferenceGenerator) Valid(s string) bool {
	m := g.Pattern().FindString(s)
	return m != "" && len(m) == len(s)
}

// Extract finds the first reference inside a scanned payload (URL, QR text,
// raw code). ok is false when nothing matches.
func (g ReferenceGenerator) Extract(scanned string) (string, bool) {
	m := g.Pattern().FindString(scanned)
	if m == "" {
		return "", false
	}
	return strings.ToUpper(m), true
}
