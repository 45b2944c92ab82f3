package similarity

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/desertthunder/cadence/internal/models"
)

// Weights applied to each comparable factor.
const (
	titleWeight  = 0.6
	titleBonus   = 0.3
	bpmWeight    = 0.2
	energyWeight = 0.1
	keyWeight    = 0.1

	bpmWindow    = 20.0
	energyWindow = 5.0
)

// ignoredWords are dropped from titles before comparison: short function words and remix markers.
var ignoredWords = map[string]struct{}{
	"the": {}, "and": {}, "but": {}, "for": {}, "with": {}, "from": {}, "about": {}, "into": {},
	"through": {}, "during": {}, "before": {}, "after": {}, "above": {}, "below": {}, "between": {},
	"among": {}, "against": {}, "within": {}, "without": {}, "throughout": {}, "towards": {},
	"upon": {}, "concerning": {}, "remix": {}, "version": {}, "edit": {}, "mix": {}, "remaster": {},
}

// Fingerprint is the lightweight descriptor compared between tracks.
type Fingerprint struct {
	TrackID    string
	Title      string
	TitleWords map[string]struct{}
	BPM        *float64
	Energy     *float64
	Key        string
}

// NewFingerprint derives a [Fingerprint] from a catalog track.
func NewFingerprint(t models.Track) Fingerprint {
	fp := Fingerprint{
		TrackID:    t.ID,
		Title:      t.Title,
		TitleWords: TitleWords(t.Title),
		Key:        t.CamelotKey,
	}
	if t.HasBPM() {
		bpm := *t.BPM
		fp.BPM = &bpm
	}
	if t.EnergyLevel != nil {
		e := *t.EnergyLevel
		fp.Energy = &e
	}
	return fp
}

// Words returns the title words in sorted order.
func (f Fingerprint) Words() []string {
	words := make([]string, 0, len(f.TitleWords))
	for w := range f.TitleWords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// TitleWords lowercases a title, treats every non-word rune as a separator and keeps
// words longer than two characters that are not in the ignore list.
func TitleWords(title string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	words := make(map[string]struct{}, len(fields))
	for _, w := range fields {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, skip := ignoredWords[w]; skip {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}

// Similarity compares two fingerprints.
//
// Each factor contributes only when both sides carry it. The title factor is comparable
// whenever either side has title words. The weighted sum is normalized by the combined
// weight of the comparable factors, so identical tracks score 1 and a strong title
// overlap (Jaccard above 0.5) can push the score up to 1.3. No comparable factors
// yields 0.
func Similarity(a, b Fingerprint) float64 {
	var score, weight float64

	if union := unionSize(a.TitleWords, b.TitleWords); union > 0 {
		jaccard := float64(intersectionSize(a.TitleWords, b.TitleWords)) / float64(union)
		score += jaccard * titleWeight
		if jaccard > 0.5 {
			score += titleBonus
		}
		weight += titleWeight
	}

	if a.BPM != nil && b.BPM != nil {
		score += closeness(*a.BPM, *b.BPM, bpmWindow) * bpmWeight
		weight += bpmWeight
	}

	if a.Energy != nil && b.Energy != nil {
		score += closeness(*a.Energy, *b.Energy, energyWindow) * energyWeight
		weight += energyWeight
	}

	if a.Key != "" && b.Key != "" {
		if a.Key == b.Key {
			score += keyWeight
		}
		weight += keyWeight
	}

	if weight == 0 {
		return 0
	}
	return score / weight
}

func closeness(a, b, window float64) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	return max(0, 1-d/window)
}

func intersectionSize(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

func unionSize(a, b map[string]struct{}) int {
	return len(a) + len(b) - intersectionSize(a, b)
}
