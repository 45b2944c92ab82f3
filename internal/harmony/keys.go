package harmony

import (
	"strings"
)

// musicalKeys maps canonical "note_scale" names onto the wheel. Sharps and flats are both listed.
var musicalKeys = map[string]Key{
	"B_major": "1B",
	"F#_major": "2B", "Gb_major": "2B",
	"Db_major": "3B", "C#_major": "3B",
	"Ab_major": "4B", "G#_major": "4B",
	"Eb_major": "5B", "D#_major": "5B",
	"Bb_major": "6B", "A#_major": "6B",
	"F_major": "7B",
	"C_major": "8B",
	"G_major": "9B",
	"D_major": "10B",
	"A_major": "11B",
	"E_major": "12B",

	"Ab_minor": "1A", "G#_minor": "1A",
	"Eb_minor": "2A", "D#_minor": "2A",
	"Bb_minor": "3A", "A#_minor": "3A",
	"F_minor": "4A",
	"C_minor": "5A",
	"G_minor": "6A",
	"D_minor": "7A",
	"A_minor": "8A",
	"E_minor": "9A",
	"B_minor": "10A",
	"F#_minor": "11A", "Gb_minor": "11A",
	"Db_minor": "12A", "C#_minor": "12A",
}

// ParseKey converts a Camelot code ("8a", " 12B ") or a musical key name ("C major", "Am", "F# minor", "Bb")
// into a wheel position. A bare note defaults to major.
func ParseKey(s string) (Key, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if k := Key(strings.ToUpper(s)); IsValid(k) {
		return k, true
	}

	note, scale := splitKeyName(s)
	if note == "" {
		return "", false
	}
	k, ok := musicalKeys[note+"_"+scale]
	return k, ok
}

// splitKeyName separates "C# min" into ("C#", "minor").
func splitKeyName(s string) (string, string) {
	s = strings.ReplaceAll(s, "♯", "#")
	s = strings.ReplaceAll(s, "♭", "b")
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)

	letter := strings.ToUpper(s[:1])
	if !strings.Contains("ABCDEFG", letter) {
		return "", ""
	}
	rest := s[1:]
	note := letter
	if len(rest) > 0 && (rest[0] == '#' || rest[0] == 'b') {
		note += rest[:1]
		rest = rest[1:]
	}

	qual := strings.ToLower(strings.TrimSpace(rest))
	switch {
	case qual == "" || strings.HasPrefix(qual, "maj"):
		return note, "major"
	case qual == "m" || strings.HasPrefix(qual, "min"):
		return note, "minor"
	default:
		return "", ""
	}
}
