package worklog

import (
	"fmt"
	"strings"
	"time"
)

const (
	// SourceTimeLayout is the ISO-8601 form Toggl accepts, seconds precision.
	SourceTimeLayout = time.RFC3339
	// ReferenceTimeLayout is the Jira worklog "started" form, millisecond
	// precision and a colon-less zone offset.
	ReferenceTimeLayout = "2006-01-02T15:04:05.000-0700"
	// DateLayout is used for JQL worklogDate filters.
	DateLayout = "2006-01-02"
)

func FormatSourceTime(value time.Time) string {
	return value.Format(SourceTimeLayout)
}

func ParseSourceTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse toggl time %q: %w", value, err)
	}
	return parsed, nil
}

func FormatReferenceTime(value time.Time) string {
	return value.Format(ReferenceTimeLayout)
}

// ParseReferenceTime accepts the Jira started form and falls back to RFC3339.
func ParseReferenceTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if parsed, err := time.Parse(ReferenceTimeLayout, value); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse jira time %q: %w", value, err)
	}
	return parsed, nil
}
