// Package chunk defines the structured text unit shared by the parser, the
// derived streams and the retrieval layer, plus its newline-delimited JSON
// stream format.
package chunk

import (
	"regexp"
	"strings"
)

// Type is the kind of text a chunk carries.
type Type string

const (
	TypeSpeech         Type = "speech"
	TypeNarration      Type = "narration"
	TypeStageDirection Type = "stage_direction"
	TypeSceneContext   Type = "scene_context"
	TypeContextWindow  Type = "context_window"
	TypeExplanation    Type = "explanation"
)

// Stream names used for persisted chunk files and stored collections.
const (
	StreamSpeaker     = "speaker"
	StreamContext     = "context"
	StreamScene       = "scene"
	StreamExplanation = "explanation"
)

// Streams lists every stream in the order they are produced.
var Streams = []string{StreamSpeaker, StreamContext, StreamScene, StreamExplanation}

// Chunk is an immutable structured text unit. Act, Scene and Speaker are nil
// when unknown and serialize as JSON null.
type Chunk struct {
	ID         string  `json:"id"`
	Act        *string `json:"act"`
	Scene      *string `json:"scene"`
	Speaker    *string `json:"speaker"`
	Type       Type    `json:"type"`
	Text       string  `json:"text"`
	TextLength int     `json:"textLength"`
	WordCount  int     `json:"wordCount"`
	WindowID   *int    `json:"window_id,omitempty"`
}

var wordRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

// CountWords counts alphanumeric tokens.
func CountWords(text string) int {
	return len(wordRe.FindAllStringIndex(text, -1))
}

// New builds a chunk from already-stripped text and fills the derived length
// fields. It returns false when text is empty so callers never emit an empty chunk.
func New(id string, typ Type, act, scene, speaker *string, text string) (Chunk, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Chunk{}, false
	}
	return Chunk{
		ID:         id,
		Act:        act,
		Scene:      scene,
		Speaker:    speaker,
		Type:       typ,
		Text:       text,
		TextLength: len(text),
		WordCount:  CountWords(text),
	}, true
}

// IsDialogue reports whether the chunk belongs to the speech/narration stream
// that the derived streams are built from.
func (c Chunk) IsDialogue() bool {
	return c.Type == TypeSpeech || c.Type == TypeNarration
}

// Dialogue filters chunks down to speech and narration, preserving order.
func Dialogue(chunks []Chunk) []Chunk {
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.IsDialogue() {
			out = append(out, c)
		}
	}
	return out
}

// Str returns a pointer to s. Handy for building optional fields.
func Str(s string) *string {
	return &s
}

// Value dereferences an optional field, returning "" for nil.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CountByType tallies chunks per type.
func CountByType(chunks []Chunk) map[Type]int {
	counts := make(map[Type]int)
	for _, c := range chunks {
		counts[c.Type]++
	}
	return counts
}
