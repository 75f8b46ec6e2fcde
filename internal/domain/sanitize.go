package domain

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var descriptionPolicy = bluemonday.StrictPolicy()

// CleanDescription reduces backend-supplied HTML to plain text before it is
// shown or persisted in local snapshots.
func CleanDescription(raw string) string {
	cleaned := html.UnescapeString(descriptionPolicy.Sanitize(raw))
	return strings.Join(strings.Fields(cleaned), " ")
}
