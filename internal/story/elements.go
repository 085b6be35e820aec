package story

// Elements is the full set of inputs a story is generated from. Characters
// are ordered by narrative importance; the child's name, when present, comes
// first.
type Elements struct {
	Universe    string
	Setting     string
	Theme       string
	Characters  []string
	StoryLength string
	ChildName   string
}

// Preferences holds the standing favorites applied on top of random draws.
// Empty fields are simply not applied.
type Preferences struct {
	ChildName         string
	FavoriteUniverse  string
	FavoriteCharacter string
	FavoriteSetting   string
	FavoriteTheme     string
	PreferredLength   string
}

// FrequencyTable counts recent use of each element value, keyed by category
// then value. Values absent from the inner map count as zero.
type FrequencyTable map[string]map[string]int

const (
	CategoryUniverses  = "universes"
	CategorySettings   = "settings"
	CategoryThemes     = "themes"
	CategoryCharacters = "characters"
)
