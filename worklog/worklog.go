package worklog

import (
	"strings"
	"time"
)

// Entry is the normalized work interval shared by the Toggl and Jira sides.
// Entries are values; nothing in the pipeline mutates them after construction.
type Entry struct {
	Issue   string
	Start   time.Time
	Stop    time.Time
	Comment string
	Tag     Tag
}

// Tag carries system-specific metadata. It is implemented only by SourceTag
// and ReferenceTag.
type Tag interface {
	EntryID() string
	RawFields() map[string]any
	sealed()
}

// SourceTag describes a Toggl time entry.
type SourceTag struct {
	ID          string
	ProjectName string
	// ProjectID is 0 when the entry has no project.
	ProjectID  int64
	Billable   bool
	ProjectKey string
	Raw        map[string]any
}

func (t SourceTag) EntryID() string           { return t.ID }
func (t SourceTag) RawFields() map[string]any { return t.Raw }
func (SourceTag) sealed()                     {}

// ReferenceTag describes a Jira worklog item.
type ReferenceTag struct {
	ID  string
	Raw map[string]any
}

func (t ReferenceTag) EntryID() string           { return t.ID }
func (t ReferenceTag) RawFields() map[string]any { return t.Raw }
func (ReferenceTag) sealed()                     {}

// SourceInfo describes the Toggl-only attributes of a source entry.
type SourceInfo struct {
	ID          string
	ProjectName string
	ProjectID   int64
	Billable    bool
	Raw         map[string]any
}

// NewSourceEntry builds an entry from a Toggl description, deriving the issue
// and the project key from it.
func NewSourceEntry(description string, start, stop time.Time, info SourceInfo) Entry {
	issue := ExtractIssue(description)
	return Entry{
		Issue:   issue,
		Start:   start,
		Stop:    stop,
		Comment: description,
		Tag: SourceTag{
			ID:          info.ID,
			ProjectName: info.ProjectName,
			ProjectID:   info.ProjectID,
			Billable:    info.Billable,
			ProjectKey:  ProjectKey(issue),
			Raw:         info.Raw,
		},
	}
}

// NewReferenceEntry builds an entry for a Jira worklog item of the given issue.
func NewReferenceEntry(id, issue, comment string, start, stop time.Time, raw map[string]any) Entry {
	return Entry{
		Issue:   issue,
		Start:   start,
		Stop:    stop,
		Comment: comment,
		Tag:     ReferenceTag{ID: id, Raw: raw},
	}
}

// SourceTag returns the Toggl metadata of the entry if it has any.
func (e Entry) SourceTag() (SourceTag, bool) {
	tag, ok := e.Tag.(SourceTag)
	return tag, ok
}

// ReferenceTag returns the Jira metadata of the entry if it has any.
func (e Entry) ReferenceTag() (ReferenceTag, bool) {
	tag, ok := e.Tag.(ReferenceTag)
	return tag, ok
}

// ID returns the identifier assigned by the originating system.
func (e Entry) ID() string {
	if e.Tag == nil {
		return ""
	}
	return e.Tag.EntryID()
}

// Duration returns the length of the interval.
func (e Entry) Duration() time.Duration {
	return e.Stop.Sub(e.Start)
}

// ExtractIssue cuts a description at the first ":" or space after trimming.
func ExtractIssue(description string) string {
	return strings.TrimSpace(StripAfterAny(strings.TrimSpace(description), ":", " "))
}

// ProjectKey returns the part of an issue key before the first "-".
func ProjectKey(issue string) string {
	return StripAfterAny(issue, "-")
}

// StripAfterAny truncates value at each needle in turn.
func StripAfterAny(value string, needles ...string) string {
	for _, needle := range needles {
		if idx := strings.Index(value, needle); idx >= 0 {
			value = value[:idx]
		}
	}
	return value
}
