package models

import "fmt"

// Status is the closed set of report lifecycle states. The dashboard used to
// reference statuses by generated row ids; here they are an enum with a stable
// slug for storage and the wire.
type Status int

const (
	StatusUnassigned Status = iota
	StatusPending
	StatusInProgress
	StatusUnderReview
	StatusForRevision
	StatusResolved
	StatusDismissed
)

var statusSlugs = map[Status]string{
	StatusUnassigned:  "unassigned",
	StatusPending:     "pending",
	StatusInProgress:  "in_progress",
	StatusUnderReview: "under_review",
	StatusForRevision: "for_revision",
	StatusResolved:    "resolved",
	StatusDismissed:   "dismissed",
}

var statusNames = map[Status]string{
	StatusUnassigned:  "Unassigned",
	StatusPending:     "Pending",
	StatusInProgress:  "In Progress",
	StatusUnderReview: "Under Review",
	StatusForRevision: "For Revision",
	StatusResolved:    "Resolved",
	StatusDismissed:   "Dismissed",
}

// Slug returns the stable storage/wire form of the status.
func (s Status) Slug() string {
	if slug, ok := statusSlugs[s]; ok {
		return slug
	}
	return "unknown"
}

// String returns the human-facing status name used in messages.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	_, ok := statusSlugs[s]
	return ok
}

// Terminal reports whether the status ends the active lifecycle.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

// ParseStatus maps a slug back to its Status.
func ParseStatus(slug string) (Status, error) {
	for s, sl := range statusSlugs {
		if sl == slug {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", slug)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.Slug() + `"`), nil
}

func (s *Status) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("status must be a JSON string, got %s", b)
	}
	parsed, err := ParseStatus(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
