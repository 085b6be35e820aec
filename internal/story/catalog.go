package story

// DefaultChildName is used whenever no child name is configured or supplied.
const DefaultChildName = "Wesley"

// Universes lists the worlds a story can be set in.
var Universes = []string{
	"Paw Patrol",
	"Disney Princess",
	"PJ Masks",
	"Bluey",
	"Peppa Pig",
	"Cocomelon",
	"Toy Story",
	"Mickey Mouse Clubhouse",
	"Sesame Street",
	"Original Fantasy World",
}

// Characters is the global pool the randomizer draws from.
var Characters = []string{
	"Wesley",
	"Mom",
	"Dad",
	"Chase",
	"Marshall",
	"Skye",
	"Rubble",
	"Rocky",
	"Zuma",
	"Ryder",
	"Elsa",
	"Anna",
	"Olaf",
	"Mickey Mouse",
	"Minnie Mouse",
	"Bluey",
	"Bingo",
	"Bandit",
	"Chilli",
}

// Settings lists the places a story can happen.
var Settings = []string{
	"Bedtime",
	"Playground",
	"Beach",
	"Zoo",
	"Farm",
	"Space",
	"Underwater",
	"Forest",
	"Jungle",
	"Mountains",
	"School",
	"Doctor's Office",
	"Rainy Day",
	"Snowy Day",
	"Birthday Party",
}

// Themes lists the gentle lessons a story can carry.
var Themes = []string{
	"Friendship",
	"Helping Others",
	"Trying New Things",
	"Facing Fears",
	"Being Kind",
	"Learning New Skills",
	"Listening to Parents",
	"Sharing",
	"Patience",
	"Being Brave",
	"Taking Turns",
	"Apologizing",
	"Gratitude",
	"Sleep Routine",
	"Morning Routine",
}

// Lengths lists the supported story durations, shortest first.
var Lengths = []string{
	"Very Short (2-3 minutes)",
	"Short (3-5 minutes)",
	"Medium (5-7 minutes)",
	"Long (7-10 minutes)",
}

// UniverseRosters maps a universe to the characters that belong in it. The
// prompt builder samples from here when a request supplies no characters.
var UniverseRosters = map[string][]string{
	"Paw Patrol":             {"Chase", "Marshall", "Skye", "Rubble", "Rocky", "Zuma", "Ryder"},
	"Disney Princess":        {"Elsa", "Anna", "Olaf"},
	"PJ Masks":               {"Catboy", "Owlette", "Gekko"},
	"Bluey":                  {"Bluey", "Bingo", "Bandit", "Chilli"},
	"Peppa Pig":              {"Peppa", "George", "Mummy Pig", "Daddy Pig"},
	"Cocomelon":              {"JJ", "YoYo", "TomTom"},
	"Toy Story":              {"Woody", "Buzz Lightyear", "Jessie", "Rex"},
	"Mickey Mouse Clubhouse": {"Mickey Mouse", "Minnie Mouse", "Goofy", "Donald Duck"},
	"Sesame Street":          {"Elmo", "Big Bird", "Cookie Monster", "Abby"},
	"Original Fantasy World": {"Luna the Unicorn", "Pip the Dragon", "Sage the Owl"},
}
