package engine

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"espacios/internal/models"
)

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
	nonDigits   = regexp.MustCompile(`\D`)
)

// normalize trims free-text fields and strips non-digits from the
// national id. HTML/SQL escaping is the store boundary's concern.
func (c *Candidate) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Surname = strings.TrimSpace(c.Surname)
	c.Role = strings.TrimSpace(c.Role)
	c.Date = strings.TrimSpace(c.Date)
	c.StartTime = strings.TrimSpace(c.StartTime)
	c.Resource = strings.TrimSpace(c.Resource)
	c.NationalID = nonDigits.ReplaceAllString(c.NationalID, "")
}

// validate rejects a malformed candidate before any store access.
func (c Candidate) validate() *ValidationError {
	if c.Name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if c.Resource == "" {
		return &ValidationError{Field: "resource", Reason: "required"}
	}
	if !datePattern.MatchString(c.Date) {
		return &ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	if _, err := time.Parse("2006-01-02", c.Date); err != nil {
		return &ValidationError{Field: "date", Reason: "not a valid calendar date"}
	}
	if !timePattern.MatchString(c.StartTime) {
		return &ValidationError{Field: "start_time", Reason: "expected HH:MM"}
	}
	if _, err := time.Parse("15:04", c.StartTime); err != nil {
		return &ValidationError{Field: "start_time", Reason: "not a valid time of day"}
	}
	if c.DurationMinutes < models.MinDurationMinutes || c.DurationMinutes > models.MaxDurationMinutes {
		return &ValidationError{
			Field: "duration_minutes",
			Reason: fmt.Sprintf("must be between %d and %d", models.MinDurationMinutes, models.MaxDurationMinutes),
		}
	}
	return nil
}
