// Package classifier maps free-text ticket content and event metadata to a
// category, subcategory and priority.
package classifier

import (
	"strings"

	"github.com/spec-kit/itsm-sla/internal/domain"
)

// Result is the outcome of a classification.
type Result struct {
	Category    string
	Subcategory string
}

// Classify resolves (category, subcategory). Preset values always win; the
// event-type map fills what is missing, then keyword scoring, then the
// General/Other fallback.
func Classify(eventType, title, description, presetCategory, presetSubcategory string) Result {
	category := strings.TrimSpace(presetCategory)
	subcategory := strings.TrimSpace(presetSubcategory)
	if category != "" && subcategory != "" {
		return Result{Category: category, Subcategory: subcategory}
	}

	if mapped, ok := eventTypeMappings[strings.ToLower(strings.TrimSpace(eventType))]; ok {
		if category == "" {
			category = mapped.category
		}
		if subcategory == "" {
			subcategory = mapped.subcategory
		}
	}

	if category == "" || subcategory == "" {
		detected := ClassifyText(title + " " + description)
		if category == "" {
			category = detected.Category
		}
		if subcategory == "" {
			subcategory = detected.Subcategory
		}
	}

	if category == "" {
		category = FallbackCategory
	}
	if subcategory == "" {
		subcategory = FallbackSubcategory
	}
	return Result{Category: category, Subcategory: subcategory}
}

// ClassifyText scores text against the keyword tables. A zero Result means
// nothing matched.
func ClassifyText(text string) Result {
	text = strings.ToLower(text)
	var best Result
	bestScore := 0

	for _, rule := range categoryRules {
		categoryScore := countMatches(text, rule.keywords)
		if categoryScore == 0 {
			continue
		}
		for _, sub := range rule.subcategories {
			total := categoryScore + 2*countMatches(text, sub.keywords)
			if total > bestScore {
				bestScore = total
				best = Result{Category: rule.name, Subcategory: sub.name}
			}
		}
		if len(rule.subcategories) == 0 && categoryScore > bestScore {
			bestScore = categoryScore
			best = Result{Category: rule.name, Subcategory: "General"}
		}
	}
	return best
}

// DetectPriority returns the first priority whose keywords appear in text, or def.
func DetectPriority(text string, def domain.Priority) domain.Priority {
	text = strings.ToLower(text)
	for _, rule := range priorityRules {
		if countMatches(text, rule.keywords) > 0 {
			return rule.priority
		}
	}
	return def
}

// countMatches counts keyword occurrences, so a term repeated in the text
// weighs more than one mentioned once.
func countMatches(text string, keywords []string) int {
	total := 0
	for _, kw := range keywords {
		total += strings.Count(text, kw)
	}
	return total
}
