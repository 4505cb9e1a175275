// Package derive builds the coarser chunk streams from the dialogue stream:
// one scene_context chunk per (act, scene), overlapping context windows, and
// LLM-written scene explanations.
package derive

import (
	"strconv"
	"strings"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

// SceneKey identifies a scene. Either part may be nil when the source chunk
// was read before any marker.
type SceneKey struct {
	Act   *string
	Scene *string
}

// id keeps a missing marker apart from an empty one.
func (k SceneKey) id() string {
	return markerID(k.Act) + " " + markerID(k.Scene)
}

func markerID(s *string) string {
	if s == nil {
		return "nil"
	}
	return strconv.Quote(*s)
}

// SceneGroup is the ordered membership of one scene.
type SceneGroup struct {
	Key    SceneKey
	Chunks []chunk.Chunk
}

// Text joins the member texts with a single space in original order.
func (g SceneGroup) Text() string {
	parts := make([]string, 0, len(g.Chunks))
	for _, c := range g.Chunks {
		parts = append(parts, c.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// GroupByScene groups chunks by (act, scene) in first-seen order. The map
// only indexes the slice, so output order never depends on map iteration.
func GroupByScene(chunks []chunk.Chunk) []SceneGroup {
	index := make(map[string]int)
	var groups []SceneGroup
	for _, c := range chunks {
		key := SceneKey{Act: c.Act, Scene: c.Scene}
		i, ok := index[key.id()]
		if !ok {
			i = len(groups)
			index[key.id()] = i
			groups = append(groups, SceneGroup{Key: key})
		}
		groups[i].Chunks = append(groups[i].Chunks, c)
	}
	return groups
}

// Scenes emits one scene_context chunk per distinct (act, scene), in
// first-seen order. IDs are the group's position.
func Scenes(chunks []chunk.Chunk) []chunk.Chunk {
	groups := GroupByScene(chunks)
	out := make([]chunk.Chunk, 0, len(groups))
	for i, g := range groups {
		c, ok := chunk.New(strconv.Itoa(i), chunk.TypeSceneContext, g.Key.Act, g.Key.Scene, nil, g.Text())
		if ok {
			out = append(out, c)
		}
	}
	return out
}

func valueOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
