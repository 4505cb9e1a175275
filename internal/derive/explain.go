package derive

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/Yates-Labs/scholar/internal/chunk"
)

var ErrExplainFailed = errors.New("scene explanation failed")

// Explainer writes an analytical explanation of one scene.
type Explainer interface {
	Explain(ctx context.Context, act, scene, sceneText string) (string, error)
}

// Explanations asks the explainer about every scene of the dialogue stream,
// running at most concurrency requests at once. Output follows scene order
// and each chunk's ID is "{act}_{scene}". The first failure cancels the rest.
func Explanations(ctx context.Context, explainer Explainer, chunks []chunk.Chunk, concurrency int) ([]chunk.Chunk, error) {
	if explainer == nil {
		return nil, fmt.Errorf("%w: explainer is required", ErrExplainFailed)
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	groups := GroupByScene(chunks)
	texts := make([]string, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			act, scene := valueOr(group.Key.Act, "-"), valueOr(group.Key.Scene, "-")
			text, err := explainer.Explain(gctx, act, scene, group.Text())
			if err != nil {
				return fmt.Errorf("%w: %w", ErrExplainFailed, err)
			}
			texts[i] = text
			log.Printf("[Explain] Generated explanation for Act %s, Scene %s", act, scene)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]chunk.Chunk, 0, len(groups))
	for i, group := range groups {
		id := valueOr(group.Key.Act, "-") + "_" + valueOr(group.Key.Scene, "-")
		c, ok := chunk.New(id, chunk.TypeExplanation, group.Key.Act, group.Key.Scene, nil, texts[i])
		if !ok {
			log.Printf("[Explain] Empty explanation for %s, skipping", id)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
