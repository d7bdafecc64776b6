package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/sells-group/pipeline-import/internal/model"
)

var (
	warningGlyphRe = regexp.MustCompile(`^(?:⚠️|⚠|❗|‼️|‼|🔴)\s*`)
	overdueWordRe  = regexp.MustCompile(`(?i)^overdue\b:?\s*`)
	multiSpaceRe   = regexp.MustCompile(`\s{2,}`)
)

// HasWarningGlyph reports whether text starts with a warning marker.
func HasWarningGlyph(text string) bool {
	return warningGlyphRe.MatchString(strings.TrimSpace(text))
}

// ParseTaskField parses a task cell such as "⚠ Mar 3: send revised deck"
// relative to the current time.
func ParseTaskField(text string, referenceYear int) *model.ExtractedTask {
	return ParseTaskFieldAt(text, referenceYear, time.Now())
}

// ParseTaskFieldAt parses a task cell, resolving overdue status against now.
// A leading warning glyph or "overdue" token marks the task overdue; a leading
// date is resolved with referenceYear and, when present, overdue status is
// recomputed from it. Returns nil when nothing in the cell is parseable.
func ParseTaskFieldAt(text string, referenceYear int, now time.Time) *model.ExtractedTask {
	original := strings.TrimSpace(text)
	if original == "" || IsDashPlaceholder(original) {
		return nil
	}

	rest := original
	overdue := false
	if g := warningGlyphRe.FindString(rest); g != "" {
		overdue = true
		rest = rest[len(g):]
	}
	rest = strings.TrimSpace(rest)
	if w := overdueWordRe.FindString(rest); w != "" {
		overdue = true
		rest = rest[len(w):]
	}
	rest = trimSeparators(rest)

	due, token, remainder, found := LeadingDate(rest, referenceYear)
	if found {
		rest = trimSeparators(remainder)
	}

	if !found && !overdue && rest == original {
		return nil
	}

	task := &model.ExtractedTask{
		DueDateText: token,
		Description: rest,
		IsOverdue:   overdue,
	}
	if found {
		task.DueDate = &due
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		task.IsOverdue = due.Before(today)
	}
	task.Priority = taskPriority(task)
	return task
}

func taskPriority(t *model.ExtractedTask) model.TaskPriority {
	switch {
	case t.IsOverdue:
		return model.PriorityHigh
	case t.DueDate != nil:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// trimSeparators collapses whitespace and strips leading/trailing
// punctuation left behind after removing tokens.
func trimSeparators(s string) string {
	s = multiSpaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	return strings.Trim(s, " :-–—,;|")
}
