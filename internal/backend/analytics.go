package backend

import (
	"context"
	"net/url"
	"strings"
)

// Analytics reads cross-project statistics. Every overview call accepts a
// list of project ids to leave out, fed from the local blacklist.
type Analytics interface {
	ProjectsOverview(ctx context.Context, exclude []string) (*ProjectsOverview, error)
	DataCollectionStats(ctx context.Context, projectID string) (*DataCollectionStats, error)
	RequirementsStats(ctx context.Context, projectID string) (*RequirementsStats, error)
	NFRAnalysis(ctx context.Context, projectID string) (*NFRAnalysis, error)
	RatingsDistribution(ctx context.Context, projectID string) (*RatingsDistribution, error)
	EngagementMetrics(ctx context.Context, projectID string) (*EngagementMetrics, error)
	ClusterStats(ctx context.Context, projectID string) (*ClusterStats, error)
	Comparison(ctx context.Context, projectIDs, exclude []string) (*Comparison, error)
}

// ProjectSummary is one row of the projects overview.
type ProjectSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	CreatedAt *string `json:"created_at"`
}

// ProjectsOverview summarizes every project on the backend.
type ProjectsOverview struct {
	TotalProjects      int              `json:"total_projects"`
	StatusDistribution map[string]int   `json:"status_distribution"`
	DataSourcesUsage   map[string]int   `json:"data_sources_usage"`
	Projects           []ProjectSummary `json:"projects"`
}

// DataCollectionStats counts collected content for one project.
type DataCollectionStats struct {
	ProjectID string `json:"project_id"`
	Apps      int    `json:"apps"`
	Reviews   int    `json:"reviews"`
	News      int    `json:"news"`
	Tweets    int    `json:"tweets"`
	Total     int    `json:"total"`
}

// ScoreRange is an avg/min/max triple.
type ScoreRange struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// RequirementsStats counts generated stories for one project.
type RequirementsStats struct {
	ProjectID   string `json:"project_id"`
	UserStories struct {
		Total            int            `json:"total"`
		BySource         map[string]int `json:"by_source"`
		WithInsights     int            `json:"with_insights"`
		SimilarityScores ScoreRange     `json:"similarity_scores"`
	} `json:"user_stories"`
	AIStories struct {
		Total            int            `json:"total"`
		BySentiment      map[string]int `json:"by_sentiment"`
		ConfidenceScores ScoreRange     `json:"confidence_scores"`
	} `json:"ai_stories"`
}

// NFRAnalysis counts non-functional requirements named by AI insights.
type NFRAnalysis struct {
	ProjectID           string         `json:"project_id"`
	TotalStoriesWithNFR int            `json:"total_stories_with_nfr"`
	NFRFrequency        map[string]int `json:"nfr_frequency"`
	UniqueNFRs          int            `json:"unique_nfrs"`
}

// RatingsDistribution counts app reviews per star rating.
type RatingsDistribution struct {
	ProjectID     string      `json:"project_id"`
	TotalReviews  int         `json:"total_reviews"`
	Distribution  map[int]int `json:"distribution"`
	AverageRating float64     `json:"average_rating"`
}

// Engagement totals tweet interactions.
type Engagement struct {
	Retweets int `json:"retweets"`
	Replies  int `json:"replies"`
	Likes    int `json:"likes"`
	Quotes   int `json:"quotes"`
	Total    int `json:"total,omitempty"`
}

// EngagementMetrics summarizes social engagement for one project.
type EngagementMetrics struct {
	ProjectID   string     `json:"project_id"`
	TotalTweets int        `json:"total_tweets"`
	Engagement  Engagement `json:"engagement"`
	// AveragePerTweet leaves Total at zero.
	AveragePerTweet struct {
		Retweets float64 `json:"retweets"`
		Replies  float64 `json:"replies"`
		Likes    float64 `json:"likes"`
		Quotes   float64 `json:"quotes"`
	} `json:"average_per_tweet"`
}

// ClusterStats counts the stories available for clustering.
type ClusterStats struct {
	ProjectID        string `json:"project_id"`
	UserStoriesCount int    `json:"user_stories_count"`
	AIStoriesCount   int    `json:"ai_stories_count"`
	Message          string `json:"message"`
}

// ComparisonProject is one column of a project comparison.
type ComparisonProject struct {
	ProjectID      string         `json:"project_id"`
	ProjectName    string         `json:"project_name"`
	Status         string         `json:"status"`
	DataCollection map[string]int `json:"data_collection"`
	Requirements   map[string]int `json:"requirements"`
}

// Comparison compares several projects side by side.
type Comparison struct {
	Projects []ComparisonProject `json:"projects"`
	Count    int                 `json:"count"`
}

// ProjectsOverview fetches the cross-project overview.
func (c *HTTPClient) ProjectsOverview(ctx context.Context, exclude []string) (*ProjectsOverview, error) {
	var out ProjectsOverview
	if err := c.get(ctx, "/analytics/projects/overview", excludeQuery(nil, exclude), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DataCollectionStats fetches collection counts for a project.
func (c *HTTPClient) DataCollectionStats(ctx context.Context, projectID string) (*DataCollectionStats, error) {
	return projectStats[DataCollectionStats](ctx, c, projectID, "data-collection")
}

// RequirementsStats fetches story counts for a project.
func (c *HTTPClient) RequirementsStats(ctx context.Context, projectID string) (*RequirementsStats, error) {
	return projectStats[RequirementsStats](ctx, c, projectID, "requirements")
}

// NFRAnalysis fetches the NFR frequency table for a project.
func (c *HTTPClient) NFRAnalysis(ctx context.Context, projectID string) (*NFRAnalysis, error) {
	return projectStats[NFRAnalysis](ctx, c, projectID, "nfr")
}

// RatingsDistribution fetches the review rating histogram for a project.
func (c *HTTPClient) RatingsDistribution(ctx context.Context, projectID string) (*RatingsDistribution, error) {
	return projectStats[RatingsDistribution](ctx, c, projectID, "ratings")
}

// EngagementMetrics fetches tweet engagement totals for a project.
func (c *HTTPClient) EngagementMetrics(ctx context.Context, projectID string) (*EngagementMetrics, error) {
	return projectStats[EngagementMetrics](ctx, c, projectID, "engagement")
}

// ClusterStats fetches the clustering story counts for a project.
func (c *HTTPClient) ClusterStats(ctx context.Context, projectID string) (*ClusterStats, error) {
	return projectStats[ClusterStats](ctx, c, projectID, "clusters")
}

// projectStats GETs /analytics/projects/{id}/{section}.
func projectStats[T any](ctx context.Context, c *HTTPClient, projectID, section string) (*T, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	var out T
	if err := c.get(ctx, "/analytics/projects/"+url.PathEscape(projectID)+"/"+section, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Comparison compares the given projects.
func (c *HTTPClient) Comparison(ctx context.Context, projectIDs, exclude []string) (*Comparison, error) {
	q := url.Values{}
	q.Set("project_ids", strings.Join(projectIDs, ","))
	var out Comparison
	if err := c.get(ctx, "/analytics/comparison", excludeQuery(q, exclude), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// excludeQuery adds exclude_projects to q when exclude is non-empty.
func excludeQuery(q url.Values, exclude []string) url.Values {
	if len(exclude) == 0 {
		return q
	}
	if q == nil {
		q = url.Values{}
	}
	q.Set("exclude_projects", strings.Join(exclude, ","))
	return q
}
