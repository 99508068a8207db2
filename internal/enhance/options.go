// Package enhance holds the prompt enhancement catalog and the current
// selection applied to outgoing prompts.
package enhance

import "strings"

// Group is a closed set of enhancement values shown under one title.
type Group struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

// Groups lists the enhancement groups in display order.
var Groups = []Group{
	{
		ID:      "primary_emotions",
		Title:   "Primary Emotions",
		Options: []string{"Anger", "Anxiety", "Fear", "Frustration"},
	},
	{
		ID:      "secondary_emotions",
		Title:   "Secondary Emotions",
		Options: []string{"Shame", "Jealousy", "Loneliness", "Disappointment"},
	},
}

// Languages lists the supported response languages.
var Languages = []string{"English", "Spanish", "French", "German", "Chinese", "Japanese", "Arabic", "Hindi"}

// DefaultLanguage is used when only an enhancement has been selected.
const DefaultLanguage = "English"

// FindGroup looks a group up by id or title, case-insensitively.
func FindGroup(name string) (Group, bool) {
	for _, g := range Groups {
		if strings.EqualFold(g.ID, name) || strings.EqualFold(g.Title, name) {
			return g, true
		}
	}
	return Group{}, false
}

// Option returns the canonical spelling of value within g.
func (g Group) Option(value string) (string, bool) {
	return match(g.Options, value)
}

// FindLanguage returns the canonical spelling of a supported language.
func FindLanguage(name string) (string, bool) {
	return match(Languages, name)
}

func match(set []string, v string) (string, bool) {
	for _, s := range set {
		if strings.EqualFold(s, strings.TrimSpace(v)) {
			return s, true
		}
	}
	return "", false
}
