package records

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the pipeline position of a video record.
type Status string

const (
	StatusCollected    Status = "collected"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusEditing      Status = "editing"
	StatusEdited       Status = "edited"
	StatusCaptioning   Status = "captioning"
	StatusCaptioned    Status = "captioned"
	StatusPublishing   Status = "publishing"
	StatusPublished    Status = "published"
	StatusFailed       Status = "failed"
	// StatusDeleted is logical only: reaching it removes the row.
	StatusDeleted Status = "deleted"
)

var allStatuses = []Status{
	StatusCollected,
	StatusTranscribing,
	StatusTranscribed,
	StatusEditing,
	StatusEdited,
	StatusCaptioning,
	StatusCaptioned,
	StatusPublishing,
	StatusPublished,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var allowedNext = map[Status]Status{
	StatusCollected:   StatusTranscribed,
	StatusTranscribed: StatusEdited,
	StatusEdited:      StatusCaptioned,
	StatusCaptioned:   StatusPublished,
	StatusPublished:   StatusDeleted,
}

var processingMarkers = map[Status]Status{
	StatusCollected:   StatusTranscribing,
	StatusTranscribed: StatusEditing,
	StatusEdited:      StatusCaptioning,
	StatusCaptioned:   StatusPublishing,
}

var stableForProcessing = func() map[Status]Status {
	out := make(map[Status]Status, len(processingMarkers))
	for stable, processing := range processingMarkers {
		out[processing] = stable
	}
	return out
}()

// AllStatuses returns the stored statuses in pipeline order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts raw text into a known status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// AllowedNext returns the only status a record in s may advance to.
func AllowedNext(s Status) (Status, bool) {
	next, ok := allowedNext[s]
	return next, ok
}

// ProcessingFor returns the claim marker held while a stage works on a record
// whose stable status is s.
func ProcessingFor(s Status) (Status, bool) {
	marker, ok := processingMarkers[s]
	return marker, ok
}

// StableFor returns the stable status a processing marker was claimed from.
func StableFor(processing Status) (Status, bool) {
	stable, ok := stableForProcessing[processing]
	return stable, ok
}

// IsProcessing reports whether the status is a claim marker.
func (s Status) IsProcessing() bool {
	_, ok := stableForProcessing[s]
	return ok
}

// IsTerminal reports whether no stage will ever select the record again.
func (s Status) IsTerminal() bool {
	return s == StatusFailed || s == StatusDeleted
}

func (s Status) String() string { return string(s) }

// Word is a single timed token from speech recognition. Times are seconds.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the persisted speech recognition payload.
type Transcript struct {
	Words    []Word `json:"words"`
	Language string `json:"language"`
}

// EmptyTranscript is stored for clips without usable speech.
func EmptyTranscript(language string) Transcript {
	if language == "" {
		language = "en"
	}
	return Transcript{Words: []Word{}, Language: language}
}

// ParseTranscript decodes the transcription column.
func ParseTranscript(raw string) (Transcript, error) {
	var t Transcript
	if strings.TrimSpace(raw) == "" {
		return t, fmt.Errorf("empty transcription")
	}
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return t, fmt.Errorf("decode transcription: %w", err)
	}
	if t.Words == nil {
		t.Words = []Word{}
	}
	return t, nil
}

// Encode renders the transcript for storage.
func (t Transcript) Encode() (string, error) {
	if t.Words == nil {
		t.Words = []Word{}
	}
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode transcription: %w", err)
	}
	return string(data), nil
}

// Text joins the recognized words into plain text.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Words))
	for _, w := range t.Words {
		if word := strings.TrimSpace(w.Word); word != "" {
			parts = append(parts, word)
		}
	}
	return strings.Join(parts, " ")
}

// Video is a persisted pipeline record.
type Video struct {
	ID            string     `json:"id"`
	SourcePath    string     `json:"sourcePath"`
	Status        Status     `json:"status"`
	Title         string     `json:"title,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	Transcription string     `json:"transcription,omitempty"`
	Description   string     `json:"description,omitempty"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"lastError,omitempty"`
	FailedFrom    Status     `json:"failedFrom,omitempty"`
	ClaimToken    string     `json:"-"`
	ClaimedAt     *time.Time `json:"claimedAt,omitempty"`
}

// Transcript decodes the stored transcription.
func (v *Video) Transcript() (Transcript, error) {
	if v == nil {
		return Transcript{}, fmt.Errorf("nil video")
	}
	return ParseTranscript(v.Transcription)
}

// DisplayTitle returns the title or the id when no title was captured.
func (v *Video) DisplayTitle() string {
	if v == nil {
		return ""
	}
	if t := strings.TrimSpace(v.Title); t != "" {
		return t
	}
	return v.ID
}
