package story

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
)

// SystemPrompt is the system role message sent with every generation request.
const SystemPrompt = "You are a skilled children's storyteller who creates engaging, age-appropriate bedtime stories for toddlers."

const promptTemplate = `Create a bedtime story for a toddler named %s with the following elements:

Universe: %s
Setting: %s
Theme: %s
Characters: %s

SPECIFIC SCENARIO TO USE: %s

Story should be approximately %d words, designed to take about %s to read aloud.

Make the story age-appropriate for a toddler (2-4 years old), with simple language, short sentences, and a clear beginning, middle, and end. Incorporate repetition, simple morals, and gentle humor.

The story should engage a toddler's imagination while being soothing and appropriate for bedtime. Any conflict should be mild and quickly resolved with a happy ending.

Use sensory details that toddlers can relate to - how things feel, sound, look, taste, and smell. Include some repetitive phrases or sounds that a toddler would enjoy repeating.

IMPORTANT: Make this story UNIQUE from any other stories about these characters or in this setting. Use the specific scenario provided to create a distinct story experience.

Format the story with a clear title, and divide it into short paragraphs for easy reading aloud.

Random seed for variation: %d

ONLY RETURN THE TITLE and the STORY TEXT, NOTHING ELSE, not intros and no music or anything like that, just the story text.`

// ScenarioSource supplies one concrete scenario sentence per request.
type ScenarioSource interface {
	Scenario(theme, setting string, characters []string) string
}

// PromptBuilder turns story elements into the single instruction block handed
// to a generation provider. The provider receives no other state.
type PromptBuilder struct {
	scenarios ScenarioSource
	rng       *rand.Rand
}

// NewPromptBuilder builds a prompt builder. A nil rng gets a time-seeded
// source.
func NewPromptBuilder(scenarios ScenarioSource, rng *rand.Rand) *PromptBuilder {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &PromptBuilder{scenarios: scenarios, rng: rng}
}

// Build assembles the full story prompt for the given elements. Missing
// elements fall back to friendly defaults so a bare request still produces a
// complete prompt. A fresh random seed is embedded on every call so identical
// elements still steer the model toward a different story.
func (p *PromptBuilder) Build(e Elements) string {
	e = withDefaults(e)
	characters := p.ResolveCharacters(e)
	scenario := p.scenarios.Scenario(e.Theme, e.Setting, characters)
	seed := 1 + p.rng.IntN(1_000_000)
	return composePrompt(e, characters, scenario, targetWords(e.StoryLength), seed)
}

// ResolveCharacters produces the character name list used in the prompt:
// supplied names win; otherwise 1 to 3 names are sampled from the universe
// roster when the universe is known. The child's name is always included and
// the list is never empty.
func (p *PromptBuilder) ResolveCharacters(e Elements) []string {
	characters := slices.Clone(e.Characters)
	if len(characters) == 0 {
		if roster, ok := UniverseRosters[e.Universe]; ok {
			n := 1 + p.rng.IntN(3)
			if n > len(roster) {
				n = len(roster)
			}
			for _, idx := range p.rng.Perm(len(roster))[:n] {
				characters = append(characters, roster[idx])
			}
		}
	}
	if e.ChildName != "" && !slices.Contains(characters, e.ChildName) {
		characters = append(characters, e.ChildName)
	}
	if len(characters) == 0 {
		characters = []string{"The main character"}
	}
	return characters
}

func withDefaults(e Elements) Elements {
	if e.Universe == "" {
		e.Universe = "Magical World"
	}
	if e.Setting == "" {
		e.Setting = "Enchanted Forest"
	}
	if e.Theme == "" {
		e.Theme = "Friendship"
	}
	if e.StoryLength == "" {
		e.StoryLength = "Short (3-5 minutes)"
	}
	if e.ChildName == "" {
		e.ChildName = DefaultChildName
	}
	return e
}

// targetWords maps a human-readable length label to an approximate word
// count. The Very Short check must come before Short.
func targetWords(length string) int {
	switch {
	case strings.Contains(length, "Very Short"):
		return 300
	case strings.Contains(length, "Short"):
		return 600
	case strings.Contains(length, "Medium"):
		return 900
	default:
		return 1200
	}
}

func composePrompt(e Elements, characters []string, scenario string, words, seed int) string {
	return fmt.Sprintf(promptTemplate,
		e.ChildName,
		e.Universe,
		e.Setting,
		e.Theme,
		strings.Join(characters, ", "),
		scenario,
		words,
		e.StoryLength,
		seed,
	)
}
