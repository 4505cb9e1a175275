package parse

import (
	"strconv"
	"strings"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

// State is the assembler's position in the speech state machine.
type State int

const (
	// StateIdle means no speech is open.
	StateIdle State = iota
	// StateInSpeech means a speaker's turn is accumulating.
	StateInSpeech
	// StateInStageDirection means lines are being captured into a stage direction.
	StateInStageDirection
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInSpeech:
		return "in_speech"
	case StateInStageDirection:
		return "in_stage_direction"
	default:
		return "unknown"
	}
}

// Options controls a whole-document parse.
type Options struct {
	// Title is the running page header to strip. Defaults to DefaultTitle.
	Title string
	// FrontMatterPages is the number of leading pages to skip.
	FrontMatterPages int
}

// Assembler consumes lines in document order and emits speech, narration and
// stage-direction chunks. Act and scene markers persist across pages until
// the next marker. An Assembler is single-use and not safe for concurrent use.
type Assembler struct {
	classifier *Classifier

	act     *string
	scene   *string
	speaker *string
	state   State

	buffer []string
	stage  []string

	nextID int
	chunks []chunk.Chunk
}

// NewAssembler creates an assembler using classifier c.
func NewAssembler(c *Classifier) *Assembler {
	if c == nil {
		c = NewClassifier(DefaultTitle)
	}
	return &Assembler{classifier: c}
}

// State returns the current machine state.
func (a *Assembler) State() State {
	return a.state
}

// FeedLine classifies one raw line and applies its events. While a stage
// direction is open, lines are captured verbatim until one opens with a
// speaker, act or scene marker; that line is then processed normally.
func (a *Assembler) FeedLine(line string) {
	events := a.classifier.ClassifyLine(line)

	if a.state == StateInStageDirection {
		switch events[0].Kind {
		case EventSpeaker, EventAct, EventScene:
			a.endStage()
		default:
			if text := a.classifier.Clean(line); text != "" && !allBlank(events) {
				a.stage = append(a.stage, text)
			}
			return
		}
	}

	for _, ev := range events {
		a.apply(ev)
	}
}

// apply advances the state machine by one event.
func (a *Assembler) apply(ev Event) {
	switch ev.Kind {
	case EventAct:
		a.flush()
		a.act = chunk.Str(ev.Value)
		a.scene = nil
	case EventScene:
		a.flush()
		a.scene = chunk.Str(ev.Value)
	case EventSpeaker:
		a.flush()
		a.speaker = chunk.Str(ev.Value)
		a.state = StateInSpeech
		if ev.Text != "" {
			a.buffer = append(a.buffer, ev.Text)
		}
	case EventStageCue:
		a.flush()
		a.state = StateInStageDirection
		a.stage = append(a.stage[:0], ev.Text)
	case EventBody:
		if a.state == StateInStageDirection {
			a.stage = append(a.stage, ev.Text)
			return
		}
		a.buffer = append(a.buffer, ev.Text)
	case EventBlank:
	}
}

// flush emits the accumulated speech or narration, if any.
func (a *Assembler) flush() {
	if len(a.buffer) == 0 {
		return
	}
	text := a.classifier.StripTrailingHeader(strings.Join(a.buffer, " "))
	a.buffer = a.buffer[:0]

	typ := chunk.TypeNarration
	if a.speaker != nil {
		typ = chunk.TypeSpeech
	}
	a.emit(typ, a.speaker, text)
}

// endStage emits the captured stage direction and returns to idle.
func (a *Assembler) endStage() {
	text := a.classifier.StripTrailingHeader(strings.Join(a.stage, " "))
	a.stage = a.stage[:0]
	a.emit(chunk.TypeStageDirection, nil, text)
	a.speaker = nil
	a.state = StateIdle
}

func (a *Assembler) emit(typ chunk.Type, speaker *string, text string) {
	c, ok := chunk.New(strconv.Itoa(a.nextID), typ, a.act, a.scene, speaker, text)
	if !ok {
		return
	}
	a.nextID++
	a.chunks = append(a.chunks, c)
}

// Finish closes any open stage direction or speech and returns every chunk
// emitted so far, in order.
func (a *Assembler) Finish() []chunk.Chunk {
	if a.state == StateInStageDirection {
		a.endStage()
	}
	a.flush()
	return a.chunks
}

// Parse runs the whole pipeline over extracted pages. The first
// opts.FrontMatterPages pages are skipped; marker state carries across the
// remaining page boundaries.
func Parse(pages [][]string, opts Options) []chunk.Chunk {
	a := NewAssembler(NewClassifier(opts.Title))
	for i, page := range pages {
		if i < opts.FrontMatterPages {
			continue
		}
		for _, line := range page {
			a.FeedLine(line)
		}
	}
	return a.Finish()
}

func allBlank(events []Event) bool {
	for _, ev := range events {
		if ev.Kind != EventBlank {
			return false
		}
	}
	return true
}
