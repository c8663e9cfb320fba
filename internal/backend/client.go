package backend

import "context"

// Collection reads and updates what has been collected for a project.
type Collection interface {
	// FetchState returns the persisted completion flags for a project.
	FetchState(ctx context.Context, projectID string) (*FetchState, error)

	// UpdateFetchState merges the true flags in state into the persisted record.
	UpdateFetchState(ctx context.Context, projectID string, state FetchState) error

	// Items returns the collected content of one source.
	Items(ctx context.Context, projectID string, source Source) ([]ContentItem, error)

	Apps(ctx context.Context, projectID string) ([]App, error)
	Reviews(ctx context.Context, projectID string) ([]Review, error)
	News(ctx context.Context, projectID string) ([]NewsArticle, error)
	Tweets(ctx context.Context, projectID string) ([]Tweet, error)
}

// Extraction turns collected content into stories.
type Extraction interface {
	// CleanContent returns the cleaned text of one item, or "" when the
	// backend has nothing usable for it.
	CleanContent(ctx context.Context, contentID string, source Source) (string, error)

	// ExtractStory persists a rule-based story. Not idempotent.
	ExtractStory(ctx context.Context, req ExtractRequest) error

	// ExtractAIStory persists an AI story. Not idempotent.
	ExtractAIStory(ctx context.Context, req AIExtractRequest) error
}

// Aggregation fetches and generates project-level artifacts.
type Aggregation interface {
	Stories(ctx context.Context, projectID string) ([]Story, error)
	AIStories(ctx context.Context, projectID string) ([]AIStory, error)

	// AIClusters returns nil when the backend has not clustered the project.
	AIClusters(ctx context.Context, projectID string) (*ClusteringData, error)

	// GenerateUseCases triggers diagram generation. A nil result means the
	// backend produced nothing. Not idempotent.
	GenerateUseCases(ctx context.Context, projectID string) (*UseCaseGeneration, error)
	UseCases(ctx context.Context, projectID string) (*UseCaseGeneration, error)
	GenerateAIUseCases(ctx context.Context, projectID string) (*UseCaseGeneration, error)
	AIUseCases(ctx context.Context, projectID string) (*UseCaseGeneration, error)
}

// Collector triggers collection of new content from external sources.
type Collector interface {
	SearchApps(ctx context.Context, projectID string, limit int) ([]App, error)
	FetchAppReviews(ctx context.Context, projectID string, store Store, appID string, count int) ([]Review, error)
	FetchNewsArticles(ctx context.Context, projectID, query string, limit int) ([]NewsArticle, error)
	FetchTweets(ctx context.Context, projectID, query string, count int) ([]Tweet, error)
}

// Projects manages elicitation projects.
type Projects interface {
	CreateProject(ctx context.Context, name, caseStudy string) (*NewProject, error)
	Project(ctx context.Context, projectID string) (*Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	UpdateProjectConfig(ctx context.Context, projectID string, queries []string, sources DataSources) error
	ProjectQueries(ctx context.Context, projectID string) ([]string, error)
}

// Backend is the full remote surface.
type Backend interface {
	Collection
	Extraction
	Aggregation
	Collector
	Projects
	Analytics
}
