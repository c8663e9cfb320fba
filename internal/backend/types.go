package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

// --- Enums ---

// Source identifies the kind of collected content an item or story came from.
type Source string

const (
	SourceReview Source = "review"
	SourceNews   Source = "news"
	SourceTweet  Source = "tweet"
)

// Sources lists every content source in collection order.
var Sources = []Source{SourceReview, SourceNews, SourceTweet}

// ParseSource validates s as a content source. The backend labels tweets
// "social" in some cluster payloads; that alias maps to SourceTweet.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "review":
		return SourceReview, nil
	case "news":
		return SourceNews, nil
	case "tweet", "social":
		return SourceTweet, nil
	}
	return "", fmt.Errorf("backend: unknown content source %q", s)
}

// UnmarshalJSON rejects sources outside the known set.
func (s *Source) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("backend: decode source: %w", err)
	}
	parsed, err := ParseSource(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Store identifies an app marketplace.
type Store string

const (
	StoreApple  Store = "apple"
	StoreGoogle Store = "google"
)

// --- Collected content ---

// ContentItem is one unit of collected content fed to extraction. The
// concrete type is one of *Review, *NewsArticle or *Tweet.
type ContentItem interface {
	ItemID() string
	Source() Source
	Text() string
}

var (
	_ ContentItem = (*Review)(nil)
	_ ContentItem = (*NewsArticle)(nil)
	_ ContentItem = (*Tweet)(nil)
)

// Review is an app store review.
type Review struct {
	ID       string  `json:"_id"`
	Reviewer string  `json:"reviewer"`
	Rating   float64 `json:"rating"`
	Body     string  `json:"review"`
	AppID    string  `json:"app_id"`
	Store    Store   `json:"store"`
}

func (r *Review) ItemID() string { return r.ID }
func (r *Review) Source() Source { return SourceReview }
func (r *Review) Text() string   { return r.Body }

// NewsArticle is an industry news article.
type NewsArticle struct {
	ID          string `json:"_id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Query       string `json:"query"`
}

func (n *NewsArticle) ItemID() string { return n.ID }
func (n *NewsArticle) Source() Source { return SourceNews }
func (n *NewsArticle) Text() string   { return n.Content }

// Tweet is a social media post.
type Tweet struct {
	ID           string      `json:"_id"`
	TweetID      string      `json:"tweet_id"`
	URL          string      `json:"url"`
	Body         string      `json:"text"`
	RetweetCount int         `json:"retweet_count"`
	ReplyCount   int         `json:"reply_count"`
	LikeCount    int         `json:"like_count"`
	QuoteCount   int         `json:"quote_count"`
	CreatedAt    string      `json:"created_at"`
	Lang         string      `json:"lang"`
	Author       TweetAuthor `json:"author"`
	Query        string      `json:"query"`
}

func (t *Tweet) ItemID() string { return t.ID }
func (t *Tweet) Source() Source { return SourceTweet }
func (t *Tweet) Text() string   { return t.Body }

// TweetAuthor is the author block embedded in a Tweet.
type TweetAuthor struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Followers int    `json:"followers"`
	Following int    `json:"following"`
	Verified  bool   `json:"is_blue_verified"`
}

// App is a marketplace app discovered for a project.
type App struct {
	ID          string          `json:"_id"`
	Name        string          `json:"appName"`
	AppID       json.RawMessage `json:"appId"`
	Developer   string          `json:"developer"`
	Icon        string          `json:"icon"`
	URL         string          `json:"url"`
	RatingScore float64         `json:"ratingScore"`
	Description string          `json:"app_desc"`
	Store       Store           `json:"store"`
}

// StoreAppID returns the marketplace identifier as a string. Apple ids
// arrive as numbers and Google ids as package names.
func (a App) StoreAppID() string {
	var s string
	if err := json.Unmarshal(a.AppID, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(a.AppID))
}

// --- Fetch state ---

// FetchState is the persisted per-project record of completed pipeline
// stages. Only true flags are sent on update; the backend merges them.
type FetchState struct {
	AppStores     bool `json:"appStores,omitempty"`
	Reviews       bool `json:"reviews,omitempty"`
	News          bool `json:"news,omitempty"`
	SocialMedia   bool `json:"socialMedia,omitempty"`
	UserStories   bool `json:"userStories,omitempty"`
	UseCase       bool `json:"useCase,omitempty"`
	AIUserStories bool `json:"aiUserStories,omitempty"`
	AIUseCase     bool `json:"aiUseCase,omitempty"`
}

// --- Stories ---

// StorySource describes the content a rule-based story was derived from.
type StorySource struct {
	Type    Source   `json:"type"`
	Title   string   `json:"title"`
	Author  string   `json:"author,omitempty"`
	Content string   `json:"content"`
	Link    string   `json:"link,omitempty"`
	Rating  *float64 `json:"rating,omitempty"`
}

// Story is a rule-based who/what/why requirement.
type Story struct {
	ID      string      `json:"_id"`
	Title   string      `json:"title"`
	Who     string      `json:"who"`
	What    string      `json:"what"`
	Why     *string     `json:"why"`
	Sources StorySource `json:"sources"`
}

// FieldInsight carries the AI extractor's analysis of a story.
type FieldInsight struct {
	NFR            []string  `json:"nfr"`
	BusinessImpact string    `json:"business_impact"`
	PainPointJTBD  string    `json:"pain_point_jtbd"`
	FitScore       *FitScore `json:"fit_score,omitempty"`
}

// FitScore rates how well a story fits its cluster.
type FitScore struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// AIStory is a story produced by the AI extractor.
type AIStory struct {
	ID           string        `json:"_id"`
	ProjectID    string        `json:"project_id"`
	Who          string        `json:"who"`
	What         string        `json:"what"`
	Why          *string       `json:"why"`
	Sentence     string        `json:"as_a_i_want_so_that"`
	Evidence     string        `json:"evidence"`
	Sentiment    string        `json:"sentiment"`
	Confidence   float64       `json:"confidence"`
	ContentID    string        `json:"content_id"`
	ContentType  Source        `json:"content_type"`
	CreatedAt    string        `json:"created_at"`
	FieldInsight *FieldInsight `json:"field_insight,omitempty"`
	SourceData   *StorySource  `json:"source_data,omitempty"`
}

// ClusterStory is an AI story placed in a cluster.
type ClusterStory struct {
	ID              string        `json:"_id"`
	ProjectID       string        `json:"project_id"`
	Who             string        `json:"who"`
	What            string        `json:"what"`
	Why             *string       `json:"why"`
	FullSentence    string        `json:"full_sentence"`
	SimilarityScore float64       `json:"similarity_score"`
	Source          Source        `json:"source"`
	SourceID        string        `json:"source_id"`
	Insight         *FieldInsight `json:"insight,omitempty"`
}

// Cluster groups semantically similar stories around a representative.
type Cluster struct {
	ID             int            `json:"cluster_id"`
	Representative ClusterStory   `json:"representative_story"`
	Stories        []ClusterStory `json:"stories"`
	Size           int            `json:"size"`
	Sources        []string       `json:"sources"`
}

// ClusteringData is the clustered view of a project's AI stories.
type ClusteringData struct {
	ProjectID string    `json:"project_id"`
	Clusters  []Cluster `json:"clusters"`
}

// rawCluster is the wire shape of a cluster: its stories arrive as AI
// stories and are converted with ClusterStoryFromAI.
type rawCluster struct {
	ID             int       `json:"cluster_id"`
	Representative AIStory   `json:"representative_story"`
	Stories        []AIStory `json:"stories"`
	Size           int       `json:"size"`
	Sources        []string  `json:"sources"`
}

type rawClusteringData struct {
	ProjectID string       `json:"project_id"`
	Clusters  []rawCluster `json:"clusters"`
}

// ClusterStoryFromAI derives the cluster view of an AI story. The story's
// confidence doubles as its similarity and fit score.
func ClusterStoryFromAI(s AIStory) ClusterStory {
	cs := ClusterStory{
		ID:              s.ID,
		ProjectID:       s.ProjectID,
		Who:             s.Who,
		What:            s.What,
		Why:             s.Why,
		FullSentence:    s.Sentence,
		SimilarityScore: s.Confidence,
		Source:          s.ContentType,
		SourceID:        s.ContentID,
	}
	if s.FieldInsight != nil {
		insight := *s.FieldInsight
		insight.FitScore = &FitScore{
			Score:       s.Confidence,
			Explanation: "Derived from story confidence score.",
		}
		cs.Insight = &insight
	}
	return cs
}

func (r rawClusteringData) convert() ClusteringData {
	out := ClusteringData{
		ProjectID: r.ProjectID,
		Clusters:  make([]Cluster, 0, len(r.Clusters)),
	}
	for _, rc := range r.Clusters {
		c := Cluster{
			ID:             rc.ID,
			Representative: ClusterStoryFromAI(rc.Representative),
			Stories:        make([]ClusterStory, 0, len(rc.Stories)),
			Size:           rc.Size,
			Sources:        rc.Sources,
		}
		for _, s := range rc.Stories {
			c.Stories = append(c.Stories, ClusterStoryFromAI(s))
		}
		out.Clusters = append(out.Clusters, c)
	}
	return out
}

// UseCaseGeneration is the result of diagram generation.
type UseCaseGeneration struct {
	ProjectID   string   `json:"project_id,omitempty"`
	DiagramURLs []string `json:"diagrams_url"`
}

// --- Projects ---

// DataSources selects which collectors a project uses.
type DataSources struct {
	AppStores   bool `json:"appStores"`
	News        bool `json:"news"`
	SocialMedia bool `json:"socialMedia"`
}

// Project is a configured elicitation project.
type Project struct {
	ID          string      `json:"_id"`
	Name        string      `json:"name"`
	CaseStudy   string      `json:"case_study"`
	Queries     []string    `json:"queries"`
	DataSources DataSources `json:"dataSources"`
	Status      string      `json:"status,omitempty"`
}

// NewProject is the backend's reply to project creation.
type NewProject struct {
	SessionID string   `json:"session_id"`
	Queries   []string `json:"queries"`
}

// --- Requests ---

// ExtractRequest asks the rule-based extractor for a story.
type ExtractRequest struct {
	ProjectID string `json:"project_id"`
	Source    Source `json:"source"`
	SourceID  string `json:"source_id"`
	Content   string `json:"content"`
}

// AIExtractRequest asks the AI extractor for a story.
type AIExtractRequest struct {
	ProjectID   string `json:"project_id"`
	ContentType Source `json:"content_type"`
	ContentID   string `json:"content_id"`
	Content     string `json:"content"`
	Persist     bool   `json:"persist"`
}
