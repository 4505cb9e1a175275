// Package parse turns raw extracted play lines into typed chunks. A pure
// Classifier maps each line segment to an Event; an Assembler consumes the
// events in order, tracking act, scene and speaker state.
package parse

import (
	"regexp"
	"strings"
)

// DefaultTitle is the running page header of the bundled play.
const DefaultTitle = "Julius Caesar"

// EventKind tags a classified line segment.
type EventKind int

const (
	EventBlank EventKind = iota
	EventAct
	EventScene
	EventSpeaker
	EventStageCue
	EventBody
)

func (k EventKind) String() string {
	switch k {
	case EventBlank:
		return "blank"
	case EventAct:
		return "act"
	case EventScene:
		return "scene"
	case EventSpeaker:
		return "speaker"
	case EventStageCue:
		return "stage_cue"
	case EventBody:
		return "body"
	default:
		return "unknown"
	}
}

// Event is the result of classifying one segment.
//
//	EventAct, EventScene: Value holds the marker id ("I", "2").
//	EventSpeaker:         Value holds the name, Text any speech on the same segment.
//	EventStageCue:        Text holds the cleaned cue line.
//	EventBody:            Text holds the cleaned body text.
type Event struct {
	Kind  EventKind
	Value string
	Text  string
}

// StageCues are the words that open a stage direction.
var StageCues = []string{
	"Enter", "Exit", "Exeunt", "Flourish", "Thunder",
	"Sennet", "Re-enter", "Trumpet", "Alarum",
}

// nonSpeakerPrefixes reject cue-shaped lines that are not character names.
var nonSpeakerPrefixes = []string{
	"ACT", "SCENE", "EPILOGUE", "PROLOGUE", "CHORUS", "CONTENTS",
	"THE END", "FINIS", "DRAMATIS PERSONAE", "PERSONS REPRESENTED",
	"INDUCTION", "ARGUMENT", "ENTER", "EXIT", "EXEUNT", "ALARUM",
	"FLOURISH", "SENNET", "HAUTBOYS", "TRUMPETS", "DRUMS",
}

// nonSpeakerNames are exact tokens left behind by page furniture.
var nonSpeakerNames = map[string]bool{
	"SC":   true,
	"FTLN": true,
}

var (
	actRe          = regexp.MustCompile(`(?i)^ACT\s+([IVXLC\d]+)\.?$`)
	sceneRe        = regexp.MustCompile(`(?i)^SCENE\s+([IVXLC\d]+)\.?$`)
	markerIDRe     = regexp.MustCompile(`^[IVXLC\d]+\.?$`)
	standaloneNum  = regexp.MustCompile(`^\d+$`)
	ftlnRe         = regexp.MustCompile(`\bFTLN\s*\d+\b`)
	trailingNumRe  = regexp.MustCompile(`\s+\d{1,4}$`)
	spaceRunRe     = regexp.MustCompile(`\s+`)
	actScHeaderRe  = regexp.MustCompile(`\bACT\s*\d+\s*\.\s*SC\.\s*\d+\b`)
	actScTailRe    = regexp.MustCompile(`\s*\bACT\s*\d*\s*\.\s*SC\.\s*\d*\s*$`)
	speakerShapeRe = regexp.MustCompile(`^[A-Z][A-Z\s,'.-]*$`)
	romanRe        = regexp.MustCompile(`^[IVXLC]+$`)
)

// Classifier holds the compiled title patterns for one work. It is immutable
// after construction and safe for concurrent use.
type Classifier struct {
	title        string
	headerLineRe *regexp.Regexp
	headerInRe   *regexp.Regexp
	titleTailRe  *regexp.Regexp
}

// NewClassifier builds a classifier for a work whose running page header is title.
func NewClassifier(title string) *Classifier {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	t := strings.Join(strings.Fields(regexp.QuoteMeta(title)), `\s+`)
	return &Classifier{
		title:        title,
		headerLineRe: regexp.MustCompile(`(?i)^\d*\s*` + t + `\b`),
		headerInRe:   regexp.MustCompile(`(?i)\s*\d*\s*\b` + t + `\s+ACT\s*\d+\s*\.\s*SC\.\s*\d+\b`),
		titleTailRe:  regexp.MustCompile(`(?i)\s*\d*\s*\b` + t + `(\s+ACT\s*\S*\s*\.?\s*SC\.\s*\S*)?\s*$`),
	}
}

// Title returns the running header the classifier strips.
func (c *Classifier) Title() string {
	return c.title
}

// Clean removes page noise from a raw line: running headers, FTLN line
// references, a trailing line number, and whitespace runs.
func (c *Classifier) Clean(line string) string {
	line = c.headerInRe.ReplaceAllString(line, " ")
	line = actScHeaderRe.ReplaceAllString(line, " ")
	line = ftlnRe.ReplaceAllString(line, " ")
	line = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
	return stripLineNumber(line)
}

// stripLineNumber drops a trailing margin line number. A number that follows
// ACT or SCENE is a marker id and stays.
func stripLineNumber(line string) string {
	loc := trailingNumRe.FindStringIndex(line)
	if loc == nil {
		return line
	}
	head := strings.Fields(line[:loc[0]])
	if n := len(head); n > 0 && (head[n-1] == "ACT" || head[n-1] == "SCENE") {
		return line
	}
	return strings.TrimSpace(line[:loc[0]])
}

// StripTrailingHeader removes a running header left at the end of
// accumulated text.
func (c *Classifier) StripTrailingHeader(text string) string {
	text = c.titleTailRe.ReplaceAllString(text, "")
	text = actScTailRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// isNoise reports lines that carry no content at all: page numbers and
// running headers.
func (c *Classifier) isNoise(line string) bool {
	return standaloneNum.MatchString(line) || c.headerLineRe.MatchString(line)
}

// Classify maps a single segment to an event. It never fails: anything
// unrecognized becomes EventBody.
func (c *Classifier) Classify(segment string) Event {
	s := strings.TrimSpace(segment)
	if s == "" || c.isNoise(s) {
		return Event{Kind: EventBlank}
	}
	if m := actRe.FindStringSubmatch(s); m != nil {
		return Event{Kind: EventAct, Value: strings.ToUpper(m[1])}
	}
	if m := sceneRe.FindStringSubmatch(s); m != nil {
		return Event{Kind: EventScene, Value: strings.ToUpper(m[1])}
	}

	cleaned := c.Clean(s)
	if cleaned == "" {
		return Event{Kind: EventBlank}
	}
	if IsStageCue(cleaned) {
		return Event{Kind: EventStageCue, Text: cleaned}
	}

	tokens := strings.Fields(cleaned)
	if name, end, ok := speakerRun(tokens, 0); ok {
		return Event{Kind: EventSpeaker, Value: name, Text: strings.Join(tokens[end:], " ")}
	}
	return Event{Kind: EventBody, Text: cleaned}
}

// ClassifyLine splits a raw line into segments and classifies each one, left
// to right. Page noise yields a single blank event.
func (c *Classifier) ClassifyLine(line string) []Event {
	s := strings.TrimSpace(line)
	if s == "" || c.isNoise(s) {
		return []Event{{Kind: EventBlank}}
	}
	if actRe.MatchString(s) || sceneRe.MatchString(s) {
		return []Event{c.Classify(s)}
	}

	segments := c.Split(c.Clean(s))
	if len(segments) == 0 {
		return []Event{{Kind: EventBlank}}
	}
	events := make([]Event, 0, len(segments))
	for _, seg := range segments {
		events = append(events, c.Classify(seg))
	}
	return events
}

// Split breaks a line that packs several logical lines together (a column
// merge) into segments. Split points are placed before an embedded ACT/SCENE
// marker, after it, and before an upper-case run that forms a speaker name.
// Once a segment opens with a stage cue the rest of the line belongs to it.
func (c *Classifier) Split(line string) []string {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil
	}

	var segments []string
	start := 0
	for i := 0; i < len(tokens); {
		if i == start && isCueToken(tokens[i]) {
			break
		}
		if n := markerLen(tokens, i); n > 0 {
			if i > start {
				segments = append(segments, strings.Join(tokens[start:i], " "))
				start = i
			}
			i += n
			if i < len(tokens) {
				segments = append(segments, strings.Join(tokens[start:i], " "))
				start = i
			}
			continue
		}
		if i > start && runStarts(tokens, i) {
			if _, _, ok := speakerRun(tokens, i); ok {
				segments = append(segments, strings.Join(tokens[start:i], " "))
				start = i
			}
		}
		i++
	}
	return append(segments, strings.Join(tokens[start:], " "))
}

// IsStageCue reports whether text opens with a stage-direction cue word.
func IsStageCue(text string) bool {
	text = strings.TrimSpace(text)
	for _, cue := range StageCues {
		if strings.HasPrefix(text, cue) {
			return true
		}
	}
	return false
}

func isCueToken(tok string) bool {
	return IsStageCue(tok)
}

// IsSpeakerName applies the speaker-cue rules to a candidate name whose
// trailing period has already been removed.
func IsSpeakerName(name string) bool {
	if len(name) < 2 || len(name) > 49 {
		return false
	}
	if !speakerShapeRe.MatchString(name) {
		return false
	}
	if standaloneNum.MatchString(name) || romanRe.MatchString(name) || nonSpeakerNames[name] {
		return false
	}
	for _, prefix := range nonSpeakerPrefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	return true
}

// isCapsToken reports a token that can be part of a speaker name: at least
// two letters, all upper case, with only apostrophes, hyphens or a single
// trailing period besides.
func isCapsToken(tok string) bool {
	tok = strings.TrimSuffix(tok, ".")
	letters := 0
	for _, r := range tok {
		switch {
		case r >= 'A' && r <= 'Z':
			letters++
		case r == '\'' || r == '-':
		default:
			return false
		}
	}
	return letters >= 2
}

// runStarts reports whether tokens[i] opens a new upper-case run rather than
// continuing the previous one.
func runStarts(tokens []string, i int) bool {
	if !isCapsToken(tokens[i]) {
		return false
	}
	if i == 0 {
		return true
	}
	prev := tokens[i-1]
	return !isCapsToken(prev) || strings.HasSuffix(prev, ".")
}

// speakerRun collects the upper-case run starting at tokens[i]. The run ends
// after a token with a trailing period. It returns the name, the index of the
// first token after the run, and whether the name is a valid speaker.
func speakerRun(tokens []string, i int) (string, int, bool) {
	end := i
	for end < len(tokens) && isCapsToken(tokens[end]) {
		end++
		if strings.HasSuffix(tokens[end-1], ".") {
			break
		}
	}
	if end == i {
		return "", i, false
	}
	name := strings.TrimSuffix(strings.Join(tokens[i:end], " "), ".")
	if !IsSpeakerName(name) {
		return "", i, false
	}
	return name, end, true
}

// markerLen returns 2 when an upper-case ACT/SCENE marker starts at tokens[i].
// "ACT 1. SC. 2" page furniture is not a marker.
func markerLen(tokens []string, i int) int {
	if i+1 >= len(tokens) {
		return 0
	}
	if tokens[i] != "ACT" && tokens[i] != "SCENE" {
		return 0
	}
	if !markerIDRe.MatchString(tokens[i+1]) {
		return 0
	}
	if i+2 < len(tokens) && strings.HasPrefix(tokens[i+2], "SC.") {
		return 0
	}
	return 2
}
