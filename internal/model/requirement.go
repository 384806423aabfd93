package model

import "strings"

// Requirement is a single documentation demand extracted from a procurement
// notice, e.g. "Certidão Negativa de Débitos Federais".
type Requirement struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Description string   `json:"description,omitempty"`
	Mandatory   bool     `json:"mandatory"`
	Context     string   `json:"context,omitempty"`
	Source      string   `json:"source"`
}

// Requirement sources.
const (
	RequirementSourceLLM   = "llm"
	RequirementSourceRegex = "regex"
)

// WordCount counts whitespace-separated tokens in the requirement name. The
// allocator uses it to order requirements from most to least specific.
func (r Requirement) WordCount() int {
	return len(strings.Fields(r.Name))
}

// Weight is the allocation priority: word count doubled for mandatory
// requirements so they claim documents before optional ones of equal length.
func (r Requirement) Weight() int {
	w := r.WordCount()
	if r.Mandatory {
		w *= 2
	}
	return w
}
