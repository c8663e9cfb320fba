package generation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dusk-indust/elicit/internal/backend"
	"github.com/dusk-indust/elicit/internal/sequencer"
)

// Collection defaults.
const (
	DefaultAppCount       = 5
	DefaultReviewsPerApp  = 20
	DefaultNewsPerQuery   = 20
	DefaultTweetsPerQuery = 20
)

// CollectionStages are the collection pipeline's stages in order.
var CollectionStages = []sequencer.Stage{
	{Name: "Collecting App Reviews", Description: "Finding related apps and scraping their reviews"},
	{Name: "Collecting Industry News", Description: "Searching news articles for each project query"},
	{Name: "Collecting Social Media", Description: "Gathering social posts for each project query"},
}

// CollectOptions sizes a collection run.
type CollectOptions struct {
	AppCount       int
	ReviewsPerApp  int
	NewsPerQuery   int
	TweetsPerQuery int
}

func (o CollectOptions) withDefaults() CollectOptions {
	if o.AppCount <= 0 {
		o.AppCount = DefaultAppCount
	}
	if o.ReviewsPerApp <= 0 {
		o.ReviewsPerApp = DefaultReviewsPerApp
	}
	if o.NewsPerQuery <= 0 {
		o.NewsPerQuery = DefaultNewsPerQuery
	}
	if o.TweetsPerQuery <= 0 {
		o.TweetsPerQuery = DefaultTweetsPerQuery
	}
	return o
}

type collectionAPI interface {
	backend.Collection
	backend.Collector
	ProjectQueries(ctx context.Context, projectID string) ([]string, error)
}

type collectionPipeline struct {
	api  collectionAPI
	opts CollectOptions
}

func (p *collectionPipeline) funcs() []sequencer.StageFunc {
	return []sequencer.StageFunc{p.appReviews, p.news, p.social}
}

// appReviews discovers apps and scrapes reviews, one item per app. The
// flags are only set when the stage ran to the end.
func (p *collectionPipeline) appReviews(ctx context.Context, sc *sequencer.StageContext) error {
	projectID := sc.ProjectID()
	apps, err := p.api.SearchApps(ctx, projectID, p.opts.AppCount)
	if err != nil {
		return fmt.Errorf("search apps: %w", err)
	}
	sc.ForEachItem(ctx, len(apps), func(ctx context.Context, i int) error {
		app := apps[i]
		reviews, err := p.api.FetchAppReviews(ctx, projectID, app.Store, app.StoreAppID(), p.opts.ReviewsPerApp)
		if err != nil {
			return fmt.Errorf("reviews for %s: %w", app.Name, err)
		}
		sc.Logger().Debug("Collected reviews", slog.String("app", app.Name), slog.Int("reviews", len(reviews)))
		return nil
	})
	if sc.Cancelled() {
		return nil
	}
	return p.api.UpdateFetchState(ctx, projectID, backend.FetchState{AppStores: true, Reviews: true})
}

func (p *collectionPipeline) news(ctx context.Context, sc *sequencer.StageContext) error {
	return p.perQuery(ctx, sc, backend.FetchState{News: true}, func(ctx context.Context, q string) (int, error) {
		articles, err := p.api.FetchNewsArticles(ctx, sc.ProjectID(), q, p.opts.NewsPerQuery)
		return len(articles), err
	})
}

func (p *collectionPipeline) social(ctx context.Context, sc *sequencer.StageContext) error {
	return p.perQuery(ctx, sc, backend.FetchState{SocialMedia: true}, func(ctx context.Context, q string) (int, error) {
		tweets, err := p.api.FetchTweets(ctx, sc.ProjectID(), q, p.opts.TweetsPerQuery)
		return len(tweets), err
	})
}

// perQuery runs fetch once per project query, then records done.
func (p *collectionPipeline) perQuery(ctx context.Context, sc *sequencer.StageContext, done backend.FetchState,
	fetch func(ctx context.Context, query string) (int, error)) error {
	queries, err := p.api.ProjectQueries(ctx, sc.ProjectID())
	if err != nil {
		return fmt.Errorf("load queries: %w", err)
	}
	sc.ForEachItem(ctx, len(queries), func(ctx context.Context, i int) error {
		n, err := fetch(ctx, queries[i])
		if err != nil {
			return fmt.Errorf("query %q: %w", queries[i], err)
		}
		sc.Logger().Debug("Collected content", slog.String("query", queries[i]), slog.Int("items", n))
		return nil
	})
	if sc.Cancelled() {
		return nil
	}
	return p.api.UpdateFetchState(ctx, sc.ProjectID(), done)
}

func (p *collectionPipeline) resume(ctx context.Context, projectID string) (bool, error) {
	state, err := p.api.FetchState(ctx, projectID)
	if err != nil {
		return false, err
	}
	return state != nil && state.Reviews && state.News && state.SocialMedia, nil
}
