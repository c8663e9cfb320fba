package generation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/elicit/internal/backend"
	"github.com/dusk-indust/elicit/internal/graph"
	"github.com/dusk-indust/elicit/internal/logfields"
	"github.com/dusk-indust/elicit/internal/sequencer"
)

// DefaultAIStoryLimit caps how many content items one AI run extracts from.
const DefaultAIStoryLimit = 70

// AIStages are the AI pipeline's stages in order.
var AIStages = []sequencer.Stage{
	{Name: "AI Processing", Description: "Aggregating sources, cleaning content, and extracting stories"},
	{Name: "Finalizing Stories", Description: "Structuring and mapping evidence"},
	{Name: "Generating Use Cases", Description: "Creating system interactions and diagrams"},
}

// ShuffleFunc reorders items in place before the AI story limit applies.
type ShuffleFunc func(items []backend.ContentItem)

// RandomShuffle is the default ShuffleFunc.
func RandomShuffle(items []backend.ContentItem) {
	rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
}

type aiPipeline struct {
	api     requirementsAPI
	result  *Result
	limit   int
	shuffle ShuffleFunc
	graph   graph.Store
	logger  *slog.Logger
}

func (p *aiPipeline) funcs() []sequencer.StageFunc {
	return []sequencer.StageFunc{p.process, p.finalize, p.useCases}
}

// process gathers every source's content, samples up to the limit and asks
// the AI extractor for a persisted story from each item.
func (p *aiPipeline) process(ctx context.Context, sc *sequencer.StageContext) error {
	projectID := sc.ProjectID()
	items, err := p.gather(ctx, projectID)
	if err != nil {
		return err
	}
	p.shuffle(items)
	if len(items) > p.limit {
		items = items[:p.limit]
	}
	sc.Logger().Debug("Selected content for AI extraction", slog.Int("items", len(items)))

	sc.ForEachItem(ctx, len(items), func(ctx context.Context, i int) error {
		item := items[i]
		text, err := cleanItem(ctx, p.api, item)
		if err != nil {
			return err
		}
		return p.api.ExtractAIStory(ctx, backend.AIExtractRequest{
			ProjectID:   projectID,
			ContentType: item.Source(),
			ContentID:   item.ItemID(),
			Content:     text,
			Persist:     true,
		})
	})
	return nil
}

// gather fetches reviews, news and tweets concurrently. Any failure fails
// the stage.
func (p *aiPipeline) gather(ctx context.Context, projectID string) ([]backend.ContentItem, error) {
	var (
		reviews []backend.Review
		news    []backend.NewsArticle
		tweets  []backend.Tweet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		reviews, err = p.api.Reviews(gctx, projectID)
		return err
	})
	g.Go(func() (err error) {
		news, err = p.api.News(gctx, projectID)
		return err
	})
	g.Go(func() (err error) {
		tweets, err = p.api.Tweets(gctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate sources: %w", err)
	}

	items := make([]backend.ContentItem, 0, len(reviews)+len(news)+len(tweets))
	for i := range reviews {
		items = append(items, &reviews[i])
	}
	for i := range news {
		items = append(items, &news[i])
	}
	for i := range tweets {
		items = append(items, &tweets[i])
	}
	if err := backend.ValidateItems(items); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *aiPipeline) finalize(ctx context.Context, sc *sequencer.StageContext) error {
	stories, err := p.api.AIStories(ctx, sc.ProjectID())
	if err != nil {
		return fmt.Errorf("load AI stories: %w", err)
	}
	p.result.setAIStories(stories)
	return p.api.UpdateFetchState(ctx, sc.ProjectID(), backend.FetchState{AIUserStories: true})
}

func (p *aiPipeline) useCases(ctx context.Context, sc *sequencer.StageContext) error {
	projectID := sc.ProjectID()
	uc, err := p.api.GenerateAIUseCases(ctx, projectID)
	if err != nil {
		return fmt.Errorf("generate AI use cases: %w", err)
	}
	if uc != nil {
		p.result.setUseCases(uc)
		if err := p.api.UpdateFetchState(ctx, projectID, backend.FetchState{AIUseCase: true}); err != nil {
			return err
		}
	}
	return p.loadClusters(ctx, projectID)
}

// resume loads the AI stories and clusters (and use cases, when generated)
// if the project already has them.
func (p *aiPipeline) resume(ctx context.Context, projectID string) (bool, error) {
	state, err := p.api.FetchState(ctx, projectID)
	if err != nil {
		return false, err
	}
	if state == nil || !state.AIUserStories {
		return false, nil
	}
	stories, err := p.api.AIStories(ctx, projectID)
	if err != nil {
		return false, err
	}
	p.result.setAIStories(stories)
	if err := p.loadClusters(ctx, projectID); err != nil {
		return false, err
	}
	if state.AIUseCase {
		uc, err := p.api.AIUseCases(ctx, projectID)
		if err != nil {
			return false, err
		}
		p.result.setUseCases(uc)
	}
	return true, nil
}

// loadClusters fetches the clustered stories and indexes them into the
// graph when one is attached. Indexing failures are logged only.
func (p *aiPipeline) loadClusters(ctx context.Context, projectID string) error {
	clusters, err := p.api.AIClusters(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load clusters: %w", err)
	}
	if clusters == nil {
		return nil
	}
	p.result.setClusters(clusters)
	if p.graph == nil {
		return nil
	}
	n, err := graph.IndexClusters(ctx, p.graph, clusters)
	if err != nil {
		p.logger.Warn("Cluster indexing failed", logfields.ProjectID(projectID), logfields.Error(err))
		return nil
	}
	p.logger.Debug("Indexed clusters", logfields.ProjectID(projectID), slog.Int("clusters", n))
	return nil
}
