package story

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestRandomSeedPoolSize(t *testing.T) {
	b := NewSeedBank("", newTestRand(1), newLogger())
	b.RandomSeed("Friendship", "Beach")
	pool := b.seeds["Friendship_Beach"]
	if len(pool) != seedsPerKey {
		t.Fatalf("expected %d cached seeds, got %d", seedsPerKey, len(pool))
	}
	for _, s := range pool {
		if s.Problem == "" || s.Activity == "" || s.Emotion == "" || s.Resolution == "" {
			t.Fatalf("seed has empty field: %+v", s)
		}
	}
}

func TestRandomSeedGeneratesOncePerKey(t *testing.T) {
	b := NewSeedBank("", newTestRand(2), newLogger())
	b.RandomSeed("Friendship", "Beach")
	if b.generated != 1 {
		t.Fatalf("expected 1 generation pass, got %d", b.generated)
	}
	for i := 0; i < 50; i++ {
		b.RandomSeed("Friendship", "Beach")
	}
	if b.generated != 1 {
		t.Fatalf("repeat draws regenerated the pool: %d passes", b.generated)
	}
	b.RandomSeed("Patience", "Playground")
	if b.generated != 2 {
		t.Fatalf("expected 2 generation passes after second key, got %d", b.generated)
	}
}

func TestScenarioVariety(t *testing.T) {
	b := NewSeedBank("", newTestRand(3), newLogger())
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		seen[b.Scenario("Friendship", "Beach", []string{"Wesley", "Skye"})] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatalf("expected at least 2 distinct scenarios in 100 draws, got %d", len(seen))
	}
}

func TestScenarioHelperAndSetting(t *testing.T) {
	b := NewSeedBank("", newTestRand(4), newLogger())
	for i := 0; i < 20; i++ {
		s := b.Scenario("Friendship", "Beach", []string{"Wesley", "Skye"})
		if !strings.Contains(strings.ToLower(s), "beach") {
			t.Fatalf("scenario does not mention the setting: %q", s)
		}
		wesleyHelps := strings.Contains(s, "Wesley helps them by")
		skyeHelps := strings.Contains(s, "Skye helps them by")
		if wesleyHelps == skyeHelps {
			t.Fatalf("expected exactly one helper, got scenario %q", s)
		}
	}
}

func TestScenarioDefaults(t *testing.T) {
	b := NewSeedBank("", newTestRand(5), newLogger())
	s := b.Scenario("", "", nil)
	if !strings.HasPrefix(s, "The main character ") {
		t.Fatalf("expected default main character, got %q", s)
	}
	if !strings.Contains(s, "They solve this by ") {
		t.Fatalf("expected solo resolution without helpers, got %q", s)
	}
	if !strings.HasSuffix(s, "at the playground.") {
		t.Fatalf("expected default playground setting, got %q", s)
	}
}

func TestRandomSeedFallbackCatalogs(t *testing.T) {
	b := NewSeedBank("", newTestRand(6), newLogger())
	seed := b.RandomSeed("Dinosaur Opera", "Moon Base")
	found := false
	for _, a := range genericActivities {
		if seed.Activity == a {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected generic activity for unknown setting, got %q", seed.Activity)
	}
}

func TestSeedCachePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first := NewSeedBank(dir, newTestRand(7), newLogger())
	first.RandomSeed("Friendship", "Beach")
	if _, err := os.Stat(filepath.Join(dir, "story_seeds.json")); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	second := NewSeedBank(dir, newTestRand(8), newLogger())
	second.RandomSeed("Friendship", "Beach")
	if second.generated != 0 {
		t.Fatalf("expected cached pool to be reused, got %d generation passes", second.generated)
	}
}

func TestCorruptSeedCacheRegenerates(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "story_seeds.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt cache: %v", err)
	}

	b := NewSeedBank(dir, newTestRand(9), newLogger())
	seed := b.RandomSeed("Friendship", "Beach")
	if b.generated != 1 {
		t.Fatalf("expected regeneration after corrupt cache, got %d passes", b.generated)
	}
	if seed.Problem == "" {
		t.Fatalf("expected usable seed after corrupt cache")
	}
}
