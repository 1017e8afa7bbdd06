package utils

import (
	"fmt"
	"strings"

	"taxforms-api/models"
)

// statusSynonyms maps accepted client spellings onto canonical statuses.
var statusSynonyms = map[models.ApplicationStatus][]string{
	models.StatusPending:   {"pending", "submitted", "new"},
	models.StatusInReview:  {"in_review", "in-review", "in review", "inreview", "review", "reviewing"},
	models.StatusApproved:  {"approved", "accept", "accepted"},
	models.StatusRejected:  {"rejected", "reject", "declined"},
	models.StatusCompleted: {"completed", "complete", "done"},
}

var statusLookup = buildStatusLookup()

func buildStatusLookup() map[string]models.ApplicationStatus {
	lookup := make(map[string]models.ApplicationStatus)
	for status, synonyms := range statusSynonyms {
		for _, s := range synonyms {
			lookup[s] = status
		}
	}
	return lookup
}

// ParseStatus resolves raw (case-insensitive, synonyms allowed) into a
// canonical application status.
func ParseStatus(raw string) (models.ApplicationStatus, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", fmt.Errorf("status is required")
	}
	if status, ok := statusLookup[key]; ok {
		return status, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// StatusLabel returns the human-readable label used in notifications.
func StatusLabel(status models.ApplicationStatus) string {
	switch status {
	case models.StatusInReview:
		return "In Review"
	case "":
		return ""
	default:
		s := string(status)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}
