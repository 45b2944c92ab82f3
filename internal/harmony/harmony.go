// Package harmony implements the Camelot wheel used to bias track transitions toward harmonically compatible keys.
//
// The wheel has 24 positions: numbers 1–12 with letter A (minor) or B (major).
// Each key is compatible with its relative major/minor and its two numeric neighbors on the same letter.
package harmony

import (
	"strconv"
	"strings"
)

// Key is a Camelot wheel position such as "8A" or "12B".
type Key string

// wheel lists, for each key, its relative key followed by its lower and upper neighbors.
var wheel = map[Key][3]Key{
	"1A":  {"1B", "12A", "2A"},
	"2A":  {"2B", "1A", "3A"},
	"3A":  {"3B", "2A", "4A"},
	"4A":  {"4B", "3A", "5A"},
	"5A":  {"5B", "4A", "6A"},
	"6A":  {"6B", "5A", "7A"},
	"7A":  {"7B", "6A", "8A"},
	"8A":  {"8B", "7A", "9A"},
	"9A":  {"9B", "8A", "10A"},
	"10A": {"10B", "9A", "11A"},
	"11A": {"11B", "10A", "12A"},
	"12A": {"12B", "11A", "1A"},
	"1B":  {"1A", "12B", "2B"},
	"2B":  {"2A", "1B", "3B"},
	"3B":  {"3A", "2B", "4B"},
	"4B":  {"4A", "3B", "5B"},
	"5B":  {"5A", "4B", "6B"},
	"6B":  {"6A", "5B", "7B"},
	"7B":  {"7A", "6B", "8B"},
	"8B":  {"8A", "7B", "9B"},
	"9B":  {"9A", "8B", "10B"},
	"10B": {"10A", "9B", "11B"},
	"11B": {"11A", "10B", "12B"},
	"12B": {"12A", "11B", "1B"},
}

// Neighbors returns the three keys harmonically compatible with k. Unknown keys return nil.
func Neighbors(k Key) []Key {
	n, ok := wheel[k]
	if !ok {
		return nil
	}
	return []Key{n[0], n[1], n[2]}
}

// AreCompatible reports whether a transition from a to b is harmonic: the same key or a neighbor.
func AreCompatible(a, b Key) bool {
	if _, ok := wheel[a]; !ok {
		return false
	}
	if a == b {
		return true
	}
	for _, n := range wheel[a] {
		if n == b {
			return true
		}
	}
	return false
}

// Compatibility scores a transition from 0 to 1: 1 for the same key, 0.8 for a neighbor, 0 otherwise.
func Compatibility(a, b Key) float64 {
	switch {
	case a == "" || b == "":
		return 0
	case a == b && IsValid(a):
		return 1
	case AreCompatible(a, b):
		return 0.8
	default:
		return 0
	}
}

// IsValid reports whether k is one of the 24 wheel positions.
func IsValid(k Key) bool {
	_, ok := wheel[k]
	return ok
}

// ValidKeys returns every wheel position, minor keys first, in numeric order.
func ValidKeys() []Key {
	keys := make([]Key, 0, len(wheel))
	for _, letter := range []string{"A", "B"} {
		for n := 1; n <= 12; n++ {
			keys = append(keys, Key(strconv.Itoa(n)+letter))
		}
	}
	return keys
}

// Number returns the numeric position (1–12) of k, or 0 when k is unknown.
func (k Key) Number() int {
	if !IsValid(k) {
		return 0
	}
	n, _ := strconv.Atoi(string(k[:len(k)-1]))
	return n
}

// Minor reports whether k is on the minor (A) ring.
func (k Key) Minor() bool {
	return IsValid(k) && strings.HasSuffix(string(k), "A")
}
