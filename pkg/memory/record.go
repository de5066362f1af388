package memory

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrNotFound is returned when a record does not exist or has been archived.
var ErrNotFound = errors.New("memory record not found")

// MemoryType classifies what a record is about.
type MemoryType string

const (
	TypeProfile    MemoryType = "profile"
	TypeContact    MemoryType = "contact"
	TypePreference MemoryType = "preference"
	TypeSchedule   MemoryType = "schedule"
	TypeTask       MemoryType = "task"
	TypeDecision   MemoryType = "decision"
	TypeInsight    MemoryType = "insight"
	TypeContext    MemoryType = "context"
	TypeGoal       MemoryType = "goal"
	TypeChat       MemoryType = "chat"
	TypeFeedback   MemoryType = "feedback"
	TypePersonal   MemoryType = "personal"
)

// MemorySource records how a fact was obtained.
type MemorySource string

const (
	SourceExplicit MemorySource = "explicit"
	SourceLearned  MemorySource = "learned"
	SourceInferred MemorySource = "inferred"
)

var memoryTypes = []MemoryType{
	TypeProfile, TypeContact, TypePreference, TypeSchedule, TypeTask,
	TypeDecision, TypeInsight, TypeContext, TypeGoal, TypeChat,
	TypeFeedback, TypePersonal,
}

var memorySources = []MemorySource{SourceExplicit, SourceLearned, SourceInferred}

// ValidTypes returns the accepted memory type names.
func ValidTypes() []string {
	names := make([]string, len(memoryTypes))
	for i, t := range memoryTypes {
		names[i] = string(t)
	}
	return names
}

// ValidSources returns the accepted memory source names.
func ValidSources() []string {
	names := make([]string, len(memorySources))
	for i, s := range memorySources {
		names[i] = string(s)
	}
	return names
}

// ParseMemoryType converts a string to a MemoryType. The error message
// lists the valid values so it can be echoed back to the caller verbatim.
func ParseMemoryType(s string) (MemoryType, error) {
	for _, t := range memoryTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid type %q, valid types: %s", s, strings.Join(ValidTypes(), ", "))
}

// ParseMemorySource converts a string to a MemorySource.
func ParseMemorySource(s string) (MemorySource, error) {
	for _, src := range memorySources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("invalid source %q, valid sources: %s", s, strings.Join(ValidSources(), ", "))
}

// Record is the durable unit of memory for one user.
type Record struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Subtitle     string       `json:"subtitle,omitempty"`
	Narrative    string       `json:"narrative,omitempty"`
	Type         MemoryType   `json:"type"`
	Confidence   float64      `json:"confidence"`
	Source       MemorySource `json:"source"`
	Facts        []string     `json:"facts,omitempty"`
	Concepts     []string     `json:"concepts,omitempty"`
	Entities     []string     `json:"entities,omitempty"`
	Project      string       `json:"project,omitempty"`
	OccurredAt   *time.Time   `json:"occurred_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	LastAccessed *time.Time   `json:"last_accessed,omitempty"`
	AccessCount  int          `json:"access_count"`
	Archived     bool         `json:"archived"`
}

// EventTime is the chronological ordering key: occurred_at when the
// record describes a real-world event, created_at otherwise.
func (r *Record) EventTime() time.Time {
	if r.OccurredAt != nil {
		return *r.OccurredAt
	}
	return r.CreatedAt
}

// embeddingText builds the text handed to the embedding provider.
func (r *Record) embeddingText() string {
	parts := []string{r.Title}
	if r.Subtitle != "" {
		parts = append(parts, r.Subtitle)
	}
	if r.Narrative != "" {
		parts = append(parts, r.Narrative)
	}
	if len(r.Facts) > 0 {
		parts = append(parts, strings.Join(r.Facts, "\n"))
	}
	if len(r.Concepts) > 0 {
		parts = append(parts, strings.Join(r.Concepts, ", "))
	}
	return strings.Join(parts, "\n")
}

// Length limits count characters (runes), not bytes.
const (
	titleMinLen     = 3
	titleMaxLen     = 200
	subtitleMaxLen  = 500
	narrativeMaxLen = 2000

	// DefaultConfidence is assigned when a caller does not supply one.
	DefaultConfidence = 0.7
)

// NewRecordData holds the caller-supplied fields for creating a record.
// Confidence is a pointer so an explicit 0.0 can be told apart from unset.
type NewRecordData struct {
	Title      string
	Subtitle   string
	Narrative  string
	Type       MemoryType
	Confidence *float64
	Source     MemorySource
	Facts      []string
	Concepts   []string
	Entities   []string
	Project    string
	OccurredAt *time.Time
}

// Validate checks field constraints before a record is created.
func (d *NewRecordData) Validate() error {
	if l := utf8.RuneCountInString(d.Title); l < titleMinLen || l > titleMaxLen {
		return fmt.Errorf("title must be %d-%d characters, got %d", titleMinLen, titleMaxLen, l)
	}
	if l := utf8.RuneCountInString(d.Subtitle); l > subtitleMaxLen {
		return fmt.Errorf("subtitle must be at most %d characters, got %d", subtitleMaxLen, l)
	}
	if l := utf8.RuneCountInString(d.Narrative); l > narrativeMaxLen {
		return fmt.Errorf("narrative must be at most %d characters, got %d", narrativeMaxLen, l)
	}
	if _, err := ParseMemoryType(string(d.Type)); err != nil {
		return err
	}
	if d.Source != "" {
		if _, err := ParseMemorySource(string(d.Source)); err != nil {
			return err
		}
	}
	if d.Confidence != nil && (*d.Confidence < 0.0 || *d.Confidence > 1.0) {
		return fmt.Errorf("confidence must be between 0.0 and 1.0, got %g", *d.Confidence)
	}
	return nil
}

// UpdateRecordData holds a field-level partial patch. Nil fields are
// left unchanged; nil slices are left unchanged, empty slices clear.
type UpdateRecordData struct {
	Title      *string
	Subtitle   *string
	Narrative  *string
	Type       *MemoryType
	Confidence *float64
	Source     *MemorySource
	Facts      []string
	Concepts   []string
	Entities   []string
	Project    *string
	OccurredAt *time.Time
}

func (d *UpdateRecordData) empty() bool {
	return d.Title == nil && d.Subtitle == nil && d.Narrative == nil &&
		d.Type == nil && d.Confidence == nil && d.Source == nil &&
		d.Facts == nil && d.Concepts == nil && d.Entities == nil &&
		d.Project == nil && d.OccurredAt == nil
}

func (d *UpdateRecordData) validate() error {
	if d.Title != nil {
		if l := utf8.RuneCountInString(*d.Title); l < titleMinLen || l > titleMaxLen {
			return fmt.Errorf("title must be %d-%d characters, got %d", titleMinLen, titleMaxLen, l)
		}
	}
	if d.Subtitle != nil {
		if l := utf8.RuneCountInString(*d.Subtitle); l > subtitleMaxLen {
			return fmt.Errorf("subtitle must be at most %d characters, got %d", subtitleMaxLen, l)
		}
	}
	if d.Narrative != nil {
		if l := utf8.RuneCountInString(*d.Narrative); l > narrativeMaxLen {
			return fmt.Errorf("narrative must be at most %d characters, got %d", narrativeMaxLen, l)
		}
	}
	if d.Type != nil {
		if _, err := ParseMemoryType(string(*d.Type)); err != nil {
			return err
		}
	}
	if d.Source != nil {
		if _, err := ParseMemorySource(string(*d.Source)); err != nil {
			return err
		}
	}
	if d.Confidence != nil && (*d.Confidence < 0.0 || *d.Confidence > 1.0) {
		return fmt.Errorf("confidence must be between 0.0 and 1.0, got %g", *d.Confidence)
	}
	return nil
}

// newRecordID generates an id like "mem_V1StGXR8_Z5jdHi6B-myT".
func newRecordID() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate record id: %w", err)
	}
	return "mem_" + id, nil
}
