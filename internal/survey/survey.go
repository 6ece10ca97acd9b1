// Package survey holds the vocabulary of the Start to Scale diagnostic questionnaire.
package survey

import (
	"math"
	"sort"
)

// Answer is one of the three accepted replies to a question.
type Answer int

// Accepted answers.
const (
	Unanswered Answer = iota
	Yes
	No
	DontKnow
)

// ParseAnswer maps the front-end answer tokens. Unknown tokens count as unanswered.
func ParseAnswer(s string) Answer {
	switch s {
	case "oui":
		return Yes
	case "non":
		return No
	case "je-ne-sais-pas":
		return DontKnow
	default:
		return Unanswered
	}
}

// Label is the French wording used in CRM notes.
func (a Answer) Label() string {
	switch a {
	case Yes:
		return "Oui"
	case No:
		return "Non"
	case DontKnow:
		return "Je ne sais pas"
	default:
		return "Non répondu"
	}
}

// Thematics returns the keys of scores in ascending order.
func Thematics(scores map[string]float64) []string {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GlobalScore is the mean of all thematic scores, 0 when there are none.
func GlobalScore(scores map[string]float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// Percent renders a score rounded to the nearest integer.
func Percent(score float64) int {
	return int(math.Round(score))
}
