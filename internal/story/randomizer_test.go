package story

import (
	"math"
	"slices"
	"testing"
)

func TestSelectionWeightsInverseFrequency(t *testing.T) {
	options := []string{"Paw Patrol", "Bluey"}
	counts := map[string]int{"Paw Patrol": 10, "Bluey": 0}

	weights := selectionWeights(options, counts)
	if weights[1] <= weights[0] {
		t.Fatalf("expected the unused option to outweigh the overused one, got %v", weights)
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("weights sum to %v, want 1", sum)
	}
}

func TestSelectionWeightsMonotonic(t *testing.T) {
	options := []string{"a", "b", "c", "d"}
	counts := map[string]int{"a": 0, "b": 1, "c": 5, "d": 20}

	weights := selectionWeights(options, counts)
	for i := 1; i < len(weights); i++ {
		if weights[i] >= weights[i-1] {
			t.Fatalf("weights not strictly decreasing with frequency: %v", weights)
		}
	}
}

func TestWeightedChoiceUniformWithoutData(t *testing.T) {
	r := NewRandomizer(newTestRand(20))
	got := r.weightedChoice([]string{"only"}, map[string]int{"only": 99})
	if got != "only" {
		t.Fatalf("single option must always win, got %q", got)
	}
	got = r.weightedChoice(Universes, nil)
	if !slices.Contains(Universes, got) {
		t.Fatalf("draw %q not in catalog", got)
	}
}

func TestWeightedChoiceAvoidsOverused(t *testing.T) {
	r := NewRandomizer(newTestRand(21))
	counts := map[string]int{"Paw Patrol": 1000}
	hits := 0
	for i := 0; i < 200; i++ {
		if r.weightedChoice(Universes, counts) == "Paw Patrol" {
			hits++
		}
	}
	if hits > 5 {
		t.Fatalf("overused universe drawn %d times out of 200", hits)
	}
}

func TestRandomizeDrawsFromCatalogs(t *testing.T) {
	r := NewRandomizer(newTestRand(22))
	for i := 0; i < 50; i++ {
		e := r.Randomize(nil, nil)
		if !slices.Contains(Universes, e.Universe) {
			t.Fatalf("universe %q not in catalog", e.Universe)
		}
		if !slices.Contains(Settings, e.Setting) {
			t.Fatalf("setting %q not in catalog", e.Setting)
		}
		if !slices.Contains(Themes, e.Theme) {
			t.Fatalf("theme %q not in catalog", e.Theme)
		}
		if !slices.Contains(Lengths, e.StoryLength) {
			t.Fatalf("length %q not in catalog", e.StoryLength)
		}
	}
}

func TestRandomizeCharacterCount(t *testing.T) {
	r := NewRandomizer(newTestRand(23))
	for i := 0; i < 100; i++ {
		e := r.Randomize(nil, nil)
		if len(e.Characters) < 2 || len(e.Characters) > 4 {
			t.Fatalf("expected 2-4 characters, got %v", e.Characters)
		}
		seen := make(map[string]struct{})
		for _, c := range e.Characters {
			if _, dup := seen[c]; dup {
				t.Fatalf("duplicate character in %v", e.Characters)
			}
			seen[c] = struct{}{}
			if !slices.Contains(Characters, c) {
				t.Fatalf("character %q not in catalog", c)
			}
		}
	}
}

func TestRandomizeChildComesFirst(t *testing.T) {
	r := NewRandomizer(newTestRand(24))
	prefs := &Preferences{ChildName: "Wesley"}
	for i := 0; i < 50; i++ {
		e := r.Randomize(nil, prefs)
		if len(e.Characters) < 2 || len(e.Characters) > 4 {
			t.Fatalf("expected 2-4 characters with child included, got %v", e.Characters)
		}
		if e.Characters[0] != "Wesley" {
			t.Fatalf("expected the child first, got %v", e.Characters)
		}
		if e.ChildName != "Wesley" {
			t.Fatalf("expected child name carried on elements, got %q", e.ChildName)
		}
	}
}

func TestApplyPreferencesUniverseBias(t *testing.T) {
	r := NewRandomizer(newTestRand(25))
	prefs := Preferences{FavoriteUniverse: "Bluey"}
	applied := 0
	for i := 0; i < 2000; i++ {
		e := r.ApplyPreferences(Elements{Universe: "Paw Patrol"}, prefs)
		if e.Universe == "Bluey" {
			applied++
		}
	}
	if applied < 1250 || applied > 1550 {
		t.Fatalf("favorite universe applied %d/2000 times, expected around 70%%", applied)
	}
}

func TestApplyPreferencesCharacterAppend(t *testing.T) {
	r := NewRandomizer(newTestRand(26))
	prefs := Preferences{FavoriteCharacter: "Chase"}
	applied := 0
	for i := 0; i < 2000; i++ {
		e := r.ApplyPreferences(Elements{Characters: []string{"Wesley", "Skye"}}, prefs)
		if slices.Contains(e.Characters, "Chase") {
			applied++
		}
	}
	if applied < 1450 || applied > 1750 {
		t.Fatalf("favorite character appended %d/2000 times, expected around 80%%", applied)
	}
}

func TestApplyPreferencesNoDuplicateCharacter(t *testing.T) {
	r := NewRandomizer(newTestRand(27))
	prefs := Preferences{FavoriteCharacter: "Skye"}
	for i := 0; i < 100; i++ {
		e := r.ApplyPreferences(Elements{Characters: []string{"Wesley", "Skye"}}, prefs)
		count := 0
		for _, c := range e.Characters {
			if c == "Skye" {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("favorite already present must not duplicate, got %v", e.Characters)
		}
	}
}

func TestApplyPreferencesEmptyPrefsUnchanged(t *testing.T) {
	r := NewRandomizer(newTestRand(28))
	in := Elements{
		Universe:    "Bluey",
		Setting:     "Beach",
		Theme:       "Sharing",
		Characters:  []string{"Bluey", "Bingo"},
		StoryLength: "Short (3-5 minutes)",
	}
	got := r.ApplyPreferences(in, Preferences{})
	if got.Universe != in.Universe || got.Setting != in.Setting || got.Theme != in.Theme ||
		got.StoryLength != in.StoryLength || !slices.Equal(got.Characters, in.Characters) {
		t.Fatalf("empty preferences changed the draw: %+v", got)
	}
}
