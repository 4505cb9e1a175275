package derive

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

func speech(id int, act, scene, speaker, text string) chunk.Chunk {
	var sp *string
	if speaker != "" {
		sp = chunk.Str(speaker)
	}
	c, _ := chunk.New(strconv.Itoa(id), chunk.TypeSpeech, chunk.Str(act), chunk.Str(scene), sp, text)
	return c
}

func TestScenes_ConcatenatesInOrder(t *testing.T) {
	in := []chunk.Chunk{
		speech(0, "1", "2", "CASSIUS", "A"),
		speech(1, "1", "2", "BRUTUS", "B"),
		speech(2, "1", "2", "CASSIUS", "C"),
	}

	out := Scenes(in)
	require.Len(t, out, 1)
	assert.Equal(t, "A B C", out[0].Text)
	assert.Equal(t, chunk.TypeSceneContext, out[0].Type)
	assert.Nil(t, out[0].Speaker)
	assert.Equal(t, "1", chunk.Value(out[0].Act))
	assert.Equal(t, "2", chunk.Value(out[0].Scene))
	assert.Equal(t, 5, out[0].TextLength)
	assert.Equal(t, 3, out[0].WordCount)
}

func TestScenes_FirstSeenOrder(t *testing.T) {
	in := []chunk.Chunk{
		speech(0, "2", "1", "BRUTUS", "orchard"),
		speech(1, "1", "1", "FLAVIUS", "street"),
		speech(2, "2", "1", "LUCIUS", "taper"),
		speech(3, "1", "2", "CAESAR", "Calpurnia"),
	}

	for run := 0; run < 20; run++ {
		out := Scenes(in)
		require.Len(t, out, 3)
		assert.Equal(t, "orchard taper", out[0].Text)
		assert.Equal(t, "street", out[1].Text)
		assert.Equal(t, "Calpurnia", out[2].Text)
	}
}

func TestScenes_NilMarkers(t *testing.T) {
	pre, _ := chunk.New("0", chunk.TypeNarration, nil, nil, nil, "Dramatis personae")
	out := Scenes([]chunk.Chunk{pre, speech(1, "1", "1", "FLAVIUS", "Hence!")})

	require.Len(t, out, 2)
	assert.Nil(t, out[0].Act)
	assert.Nil(t, out[0].Scene)
}

func TestScenes_NilAndEmptyMarkersDiffer(t *testing.T) {
	none, _ := chunk.New("0", chunk.TypeNarration, nil, chunk.Str("1"), nil, "before any act")
	empty, _ := chunk.New("1", chunk.TypeNarration, chunk.Str(""), chunk.Str("1"), nil, "empty act")

	groups := GroupByScene([]chunk.Chunk{none, empty, none})
	require.Len(t, groups, 2)
	assert.Nil(t, groups[0].Key.Act)
	require.NotNil(t, groups[1].Key.Act)
	assert.Equal(t, "", *groups[1].Key.Act)
	assert.Len(t, groups[0].Chunks, 2)

	assert.NotEqual(t, SceneKey{Act: nil, Scene: chunk.Str("")}.id(), SceneKey{Act: chunk.Str(""), Scene: nil}.id())
}

func TestWindows_Starts(t *testing.T) {
	var in []chunk.Chunk
	for i := 0; i < 7; i++ {
		in = append(in, speech(i, "1", "1", "", fmt.Sprintf("line%d", i)))
	}

	out, err := Windows(in, DefaultWindowOptions())
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "line0 line1 line2 line3 line4", out[0].Text)
	assert.Equal(t, "line3 line4 line5 line6", out[1].Text)
	assert.Equal(t, "line6", out[2].Text)
	for i, w := range out {
		require.NotNil(t, w.WindowID)
		assert.Equal(t, i, *w.WindowID)
		assert.Equal(t, chunk.TypeContextWindow, w.Type)
		assert.Nil(t, w.Speaker)
	}
}

func TestWindows_RenderAndInherit(t *testing.T) {
	in := []chunk.Chunk{
		speech(0, "3", "1", "CASCA", "Speak, hands, for me!"),
		speech(1, "3", "2", "", "The Forum."),
	}

	out, err := Windows(in, WindowOptions{Size: 5, Step: 5})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "CASCA: Speak, hands, for me! The Forum.", out[0].Text)
	assert.Equal(t, "1", chunk.Value(out[0].Scene))
}

func TestWindows_InvalidOptions(t *testing.T) {
	_, err := Windows(nil, WindowOptions{Size: 5, Step: 0})
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Windows(nil, WindowOptions{Size: 0, Step: 3})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestWindows_Empty(t *testing.T) {
	out, err := Windows(nil, DefaultWindowOptions())
	require.NoError(t, err)
	assert.Empty(t, out)
}

type funcExplainer func(ctx context.Context, act, scene, text string) (string, error)

func (f funcExplainer) Explain(ctx context.Context, act, scene, text string) (string, error) {
	return f(ctx, act, scene, text)
}

func TestExplanations_OrderAndIDs(t *testing.T) {
	in := []chunk.Chunk{
		speech(0, "1", "1", "FLAVIUS", "Hence!"),
		speech(1, "1", "2", "CAESAR", "Calpurnia!"),
		speech(2, "1", "1", "MARULLUS", "Wherefore rejoice?"),
	}
	var calls atomic.Int32
	explainer := funcExplainer(func(_ context.Context, act, scene, text string) (string, error) {
		calls.Add(1)
		return fmt.Sprintf("Act %s Scene %s: %s", act, scene, text), nil
	})

	out, err := Explanations(context.Background(), explainer, in, 4)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int32(2), calls.Load())

	assert.Equal(t, "1_1", out[0].ID)
	assert.Equal(t, "Act 1 Scene 1: Hence! Wherefore rejoice?", out[0].Text)
	assert.Equal(t, "1_2", out[1].ID)
	assert.Equal(t, chunk.TypeExplanation, out[1].Type)
	assert.Nil(t, out[1].Speaker)
}

func TestExplanations_FailureAborts(t *testing.T) {
	in := []chunk.Chunk{speech(0, "1", "1", "FLAVIUS", "Hence!")}
	boom := errors.New("quota exceeded")
	explainer := funcExplainer(func(context.Context, string, string, string) (string, error) {
		return "", boom
	})

	_, err := Explanations(context.Background(), explainer, in, 2)
	assert.ErrorIs(t, err, ErrExplainFailed)
	assert.ErrorIs(t, err, boom)
}

func TestExplanations_NilExplainer(t *testing.T) {
	_, err := Explanations(context.Background(), nil, nil, 1)
	assert.ErrorIs(t, err, ErrExplainFailed)
}
