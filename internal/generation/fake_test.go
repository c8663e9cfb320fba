package generation

import (
	"context"
	"errors"
	"sync"

	"github.com/dusk-indust/elicit/internal/backend"
)

// fakeBackend is an in-memory backend. Unimplemented methods panic through
// the nil embedded interface.
type fakeBackend struct {
	backend.Backend

	mu      sync.Mutex
	state   backend.FetchState
	reviews []backend.Review
	news    []backend.NewsArticle
	tweets  []backend.Tweet
	cleaned map[string]string // content ID -> cleaned text; missing means ""
	failIDs map[string]bool   // content IDs whose extraction fails

	stories   []backend.Story
	aiStories []backend.AIStory
	clusters  *backend.ClusteringData
	useCases  *backend.UseCaseGeneration

	apps    []backend.App
	queries []string

	fetchStateErr error
	reviewsErr    error

	extracted   []backend.ExtractRequest
	aiExtracted []backend.AIExtractRequest
	updates     []backend.FetchState
	calls       map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		cleaned: make(map[string]string),
		failIDs: make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (f *fakeBackend) called(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) FetchState(context.Context, string) (*backend.FetchState, error) {
	f.called("FetchState")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchStateErr != nil {
		return nil, f.fetchStateErr
	}
	st := f.state
	return &st, nil
}

func (f *fakeBackend) UpdateFetchState(_ context.Context, _ string, st backend.FetchState) error {
	f.called("UpdateFetchState")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, st)
	f.state.AppStores = f.state.AppStores || st.AppStores
	f.state.Reviews = f.state.Reviews || st.Reviews
	f.state.News = f.state.News || st.News
	f.state.SocialMedia = f.state.SocialMedia || st.SocialMedia
	f.state.UserStories = f.state.UserStories || st.UserStories
	f.state.UseCase = f.state.UseCase || st.UseCase
	f.state.AIUserStories = f.state.AIUserStories || st.AIUserStories
	f.state.AIUseCase = f.state.AIUseCase || st.AIUseCase
	return nil
}

func (f *fakeBackend) Items(ctx context.Context, projectID string, source backend.Source) ([]backend.ContentItem, error) {
	f.called("Items")
	var items []backend.ContentItem
	switch source {
	case backend.SourceReview:
		for i := range f.reviews {
			items = append(items, &f.reviews[i])
		}
	case backend.SourceNews:
		for i := range f.news {
			items = append(items, &f.news[i])
		}
	case backend.SourceTweet:
		for i := range f.tweets {
			items = append(items, &f.tweets[i])
		}
	}
	return items, nil
}

func (f *fakeBackend) Reviews(context.Context, string) ([]backend.Review, error) {
	f.called("Reviews")
	return f.reviews, f.reviewsErr
}

func (f *fakeBackend) News(context.Context, string) ([]backend.NewsArticle, error) {
	f.called("News")
	return f.news, nil
}

func (f *fakeBackend) Tweets(context.Context, string) ([]backend.Tweet, error) {
	f.called("Tweets")
	return f.tweets, nil
}

func (f *fakeBackend) CleanContent(_ context.Context, contentID string, _ backend.Source) (string, error) {
	f.called("CleanContent")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleaned[contentID], nil
}

func (f *fakeBackend) ExtractStory(_ context.Context, req backend.ExtractRequest) error {
	f.called("ExtractStory")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[req.SourceID] {
		return errors.New("extractor rejected content")
	}
	f.extracted = append(f.extracted, req)
	return nil
}

func (f *fakeBackend) ExtractAIStory(_ context.Context, req backend.AIExtractRequest) error {
	f.called("ExtractAIStory")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[req.ContentID] {
		return errors.New("extractor rejected content")
	}
	f.aiExtracted = append(f.aiExtracted, req)
	return nil
}

func (f *fakeBackend) Stories(context.Context, string) ([]backend.Story, error) {
	f.called("Stories")
	return f.stories, nil
}

func (f *fakeBackend) AIStories(context.Context, string) ([]backend.AIStory, error) {
	f.called("AIStories")
	return f.aiStories, nil
}

func (f *fakeBackend) AIClusters(context.Context, string) (*backend.ClusteringData, error) {
	f.called("AIClusters")
	return f.clusters, nil
}

func (f *fakeBackend) GenerateUseCases(context.Context, string) (*backend.UseCaseGeneration, error) {
	f.called("GenerateUseCases")
	return f.useCases, nil
}

func (f *fakeBackend) UseCases(context.Context, string) (*backend.UseCaseGeneration, error) {
	f.called("UseCases")
	return f.useCases, nil
}

func (f *fakeBackend) GenerateAIUseCases(context.Context, string) (*backend.UseCaseGeneration, error) {
	f.called("GenerateAIUseCases")
	return f.useCases, nil
}

func (f *fakeBackend) AIUseCases(context.Context, string) (*backend.UseCaseGeneration, error) {
	f.called("AIUseCases")
	return f.useCases, nil
}

func (f *fakeBackend) SearchApps(_ context.Context, _ string, limit int) ([]backend.App, error) {
	f.called("SearchApps")
	if limit < len(f.apps) {
		return f.apps[:limit], nil
	}
	return f.apps, nil
}

func (f *fakeBackend) FetchAppReviews(_ context.Context, _ string, _ backend.Store, appID string, _ int) ([]backend.Review, error) {
	f.called("FetchAppReviews")
	if appID == "broken" {
		return nil, errors.New("scraper blocked")
	}
	return []backend.Review{{ID: "r-" + appID}}, nil
}

func (f *fakeBackend) FetchNewsArticles(context.Context, string, string, int) ([]backend.NewsArticle, error) {
	f.called("FetchNewsArticles")
	return []backend.NewsArticle{{ID: "n"}}, nil
}

func (f *fakeBackend) FetchTweets(context.Context, string, string, int) ([]backend.Tweet, error) {
	f.called("FetchTweets")
	return []backend.Tweet{{ID: "t"}}, nil
}

func (f *fakeBackend) ProjectQueries(context.Context, string) ([]string, error) {
	f.called("ProjectQueries")
	return f.queries, nil
}
