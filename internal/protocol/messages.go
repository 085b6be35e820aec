package protocol

import "time"

// EventType labels entries on a story stream.
type EventType string

const (
	EventMetadata EventType = "metadata"
	EventText     EventType = "text"
	EventAudio    EventType = "audio"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// StoryMetadata carries the chosen elements announced at stream start.
type StoryMetadata struct {
	Universe    string   `json:"universe"`
	Setting     string   `json:"setting"`
	Theme       string   `json:"theme"`
	Characters  []string `json:"characters"`
	StoryLength string   `json:"story_length"`
	ChildName   string   `json:"child_name"`
	Provider    string   `json:"provider,omitempty"`
}

// StreamEvent is one entry on a streaming story generation.
type StreamEvent struct {
	Type      EventType      `json:"type"`
	Metadata  *StoryMetadata `json:"metadata,omitempty"`
	Text      string         `json:"text,omitempty"`
	Audio     []byte         `json:"audio,omitempty"`
	Sequence  int            `json:"sequence,omitempty"`
	Group     int            `json:"group,omitempty"`
	StoryID   int64          `json:"story_id,omitempty"`
	Title     string         `json:"title,omitempty"`
	AudioPath string         `json:"audio_path,omitempty"`

	// Total durations, reported once on the complete event.
	GenerationMS int64 `json:"generation_ms,omitempty"`
	SynthesisMS  int64 `json:"synthesis_ms,omitempty"`

	Error string `json:"error,omitempty"`
}

// StoryRequest asks for a new story, typically from a bedside device button.
type StoryRequest struct {
	RequestID string    `json:"request_id"`
	Device    string    `json:"device,omitempty"`
	Universe  string    `json:"universe,omitempty"`
	Setting   string    `json:"setting,omitempty"`
	Theme     string    `json:"theme,omitempty"`
	ChildName string    `json:"child_name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StoryReady announces a finished story for playback integrations.
type StoryReady struct {
	RequestID string    `json:"request_id"`
	StoryID   int64     `json:"story_id"`
	Title     string    `json:"title"`
	AudioPath string    `json:"audio_path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StoryBusy reports a dropped request because a generation was in flight.
type StoryBusy struct {
	RequestID string    `json:"request_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectStoryRequest = "hush.story.request"
	SubjectStoryEvents  = "hush.story.events"
	SubjectStoryReady   = "hush.story.ready"
	SubjectStoryBusy    = "hush.story.busy"
)
