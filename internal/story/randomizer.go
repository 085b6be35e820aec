package story

import (
	"math/rand/v2"
	"slices"
)

// Randomizer draws story elements with inverse-frequency weighting so the
// same combinations do not come up night after night.
type Randomizer struct {
	rng *rand.Rand
}

// NewRandomizer builds a randomizer. A nil rng gets a time-seeded source;
// tests inject a fixed one.
func NewRandomizer(rng *rand.Rand) *Randomizer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Randomizer{rng: rng}
}

// selectionWeights computes the normalized inverse-frequency weight for each
// option: 1/(count+1), so heavily used values become proportionally unlikely.
func selectionWeights(options []string, counts map[string]int) []float64 {
	weights := make([]float64, len(options))
	var total float64
	for i, opt := range options {
		w := 1.0 / float64(counts[opt]+1)
		weights[i] = w
		total += w
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

func (r *Randomizer) weightedChoice(options []string, counts map[string]int) string {
	if len(options) == 0 {
		return ""
	}
	if len(options) == 1 || len(counts) == 0 {
		return options[r.rng.IntN(len(options))]
	}
	weights := selectionWeights(options, counts)
	roll := r.rng.Float64()
	var acc float64
	for i, w := range weights {
		acc += w
		if roll < acc {
			return options[i]
		}
	}
	return options[len(options)-1]
}

// Randomize draws a full set of elements from the catalogs, biased away from
// recently used values. When preferences carry a child name it is included
// first and uses up one of the 2-4 character slots.
func (r *Randomizer) Randomize(freq FrequencyTable, prefs *Preferences) Elements {
	var e Elements
	e.Universe = r.weightedChoice(Universes, freq[CategoryUniverses])
	e.Setting = r.weightedChoice(Settings, freq[CategorySettings])
	e.Theme = r.weightedChoice(Themes, freq[CategoryThemes])

	count := 2 + r.rng.IntN(3)
	var characters []string
	if prefs != nil && prefs.ChildName != "" {
		characters = append(characters, prefs.ChildName)
		count--
		e.ChildName = prefs.ChildName
	}

	available := make([]string, 0, len(Characters))
	for _, c := range Characters {
		if !slices.Contains(characters, c) {
			available = append(available, c)
		}
	}
	for i := 0; i < count && len(available) > 0; i++ {
		pick := r.weightedChoice(available, freq[CategoryCharacters])
		characters = append(characters, pick)
		if idx := slices.Index(available, pick); idx >= 0 {
			available = slices.Delete(available, idx, idx+1)
		}
	}
	e.Characters = characters

	e.StoryLength = Lengths[r.rng.IntN(len(Lengths))]
	return e
}

// ApplyPreferences overlays stored favorites onto a randomized draw. Each
// field is an independent coin flip, so favorites bias the result without
// pinning it.
func (r *Randomizer) ApplyPreferences(e Elements, prefs Preferences) Elements {
	if prefs.FavoriteUniverse != "" && r.rng.Float64() < 0.7 {
		e.Universe = prefs.FavoriteUniverse
	}
	if prefs.FavoriteCharacter != "" && r.rng.Float64() < 0.8 {
		if !slices.Contains(e.Characters, prefs.FavoriteCharacter) {
			e.Characters = append(e.Characters, prefs.FavoriteCharacter)
		}
	}
	if prefs.FavoriteSetting != "" && r.rng.Float64() < 0.5 {
		e.Setting = prefs.FavoriteSetting
	}
	if prefs.FavoriteTheme != "" && r.rng.Float64() < 0.5 {
		e.Theme = prefs.FavoriteTheme
	}
	if prefs.PreferredLength != "" && r.rng.Float64() < 0.6 {
		e.StoryLength = prefs.PreferredLength
	}
	return e
}
