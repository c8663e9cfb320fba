package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Compile-time interface check.
var _ Backend = (*HTTPClient)(nil)

// ErrEmptyProjectID is returned by project-scoped calls made without a project.
var ErrEmptyProjectID = errors.New("backend: empty project id")

// ErrInvalidPayload is wrapped by errors for responses that decode but fail
// validation.
var ErrInvalidPayload = errors.New("backend: invalid payload")

// HTTPClient implements Backend over the elicitation service's REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// NewHTTPClient creates a client rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ---------- Collection ----------

// FetchState returns the persisted completion flags for a project.
func (c *HTTPClient) FetchState(ctx context.Context, projectID string) (*FetchState, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	var st FetchState
	if err := c.get(ctx, "/get-fetch-data-state", projectQuery(projectID), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// UpdateFetchState merges the true flags of state into the persisted record.
func (c *HTTPClient) UpdateFetchState(ctx context.Context, projectID string, state FetchState) error {
	if projectID == "" {
		return ErrEmptyProjectID
	}
	body := struct {
		ProjectID string `json:"project_id"`
		FetchState
	}{projectID, state}
	return c.send(ctx, http.MethodPost, "/update-fetch-data-state", body, nil)
}

// Items returns the collected content of one source as ContentItems.
func (c *HTTPClient) Items(ctx context.Context, projectID string, source Source) ([]ContentItem, error) {
	var items []ContentItem
	switch source {
	case SourceReview:
		reviews, err := c.Reviews(ctx, projectID)
		if err != nil {
			return nil, err
		}
		for i := range reviews {
			items = append(items, &reviews[i])
		}
	case SourceNews:
		news, err := c.News(ctx, projectID)
		if err != nil {
			return nil, err
		}
		for i := range news {
			items = append(items, &news[i])
		}
	case SourceTweet:
		tweets, err := c.Tweets(ctx, projectID)
		if err != nil {
			return nil, err
		}
		for i := range tweets {
			items = append(items, &tweets[i])
		}
	default:
		return nil, fmt.Errorf("backend: unknown content source %q", source)
	}
	if err := ValidateItems(items); err != nil {
		return nil, err
	}
	return items, nil
}

// ValidateItems checks that every item carries an id.
func ValidateItems(items []ContentItem) error {
	for i, it := range items {
		if it.ItemID() == "" {
			return fmt.Errorf("%w: %s item %d has no _id", ErrInvalidPayload, it.Source(), i)
		}
	}
	return nil
}

// Apps returns the apps collected for a project.
func (c *HTTPClient) Apps(ctx context.Context, projectID string) ([]App, error) {
	return getList[App](ctx, c, "/get-project-apps", projectID)
}

// Reviews returns the app reviews collected for a project.
func (c *HTTPClient) Reviews(ctx context.Context, projectID string) ([]Review, error) {
	return getList[Review](ctx, c, "/get-project-reviews", projectID)
}

// News returns the news articles collected for a project.
func (c *HTTPClient) News(ctx context.Context, projectID string) ([]NewsArticle, error) {
	return getList[NewsArticle](ctx, c, "/get-project-news", projectID)
}

// Tweets returns the social posts collected for a project.
func (c *HTTPClient) Tweets(ctx context.Context, projectID string) ([]Tweet, error) {
	return getList[Tweet](ctx, c, "/get-project-tweets", projectID)
}

// ---------- Extraction ----------

// CleanContent returns the cleaned text of one item.
func (c *HTTPClient) CleanContent(ctx context.Context, contentID string, source Source) (string, error) {
	var path, param string
	switch source {
	case SourceReview:
		path, param = "/clean-app-review", "review_id"
	case SourceNews:
		path, param = "/clean-news", "news_id"
	case SourceTweet:
		path, param = "/clean-tweet", "tweet_id"
	default:
		return "", nil
	}
	var text *string
	if err := c.get(ctx, path, url.Values{param: {contentID}}, &text); err != nil {
		return "", err
	}
	if text == nil {
		return "", nil
	}
	return *text, nil
}

// ExtractStory persists a rule-based story derived from one item.
func (c *HTTPClient) ExtractStory(ctx context.Context, req ExtractRequest) error {
	if req.ProjectID == "" {
		return ErrEmptyProjectID
	}
	return c.send(ctx, http.MethodPost, "/extract-user-story", req, nil)
}

// ExtractAIStory persists an AI story derived from one item.
func (c *HTTPClient) ExtractAIStory(ctx context.Context, req AIExtractRequest) error {
	if req.ProjectID == "" {
		return ErrEmptyProjectID
	}
	return c.send(ctx, http.MethodPost, "/extract-user-story-ai", req, nil)
}

// ---------- Aggregation ----------

// Stories returns the rule-based stories of a project.
func (c *HTTPClient) Stories(ctx context.Context, projectID string) ([]Story, error) {
	return getList[Story](ctx, c, "/get-project-user-stories", projectID)
}

// AIStories returns the AI stories of a project.
func (c *HTTPClient) AIStories(ctx context.Context, projectID string) ([]AIStory, error) {
	return getList[AIStory](ctx, c, "/get-project-user-stories-ai", projectID)
}

// AIClusters returns the clustered AI stories, or nil if none exist yet.
func (c *HTTPClient) AIClusters(ctx context.Context, projectID string) (*ClusteringData, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	var raw *rawClusteringData
	if err := c.get(ctx, "/get-clustered-ai-user-stories", projectQuery(projectID), &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	data := raw.convert()
	return &data, nil
}

// GenerateUseCases triggers rule-based diagram generation.
func (c *HTTPClient) GenerateUseCases(ctx context.Context, projectID string) (*UseCaseGeneration, error) {
	return c.useCases(ctx, http.MethodPost, "/usecases/diagram", projectID)
}

// UseCases fetches previously generated rule-based diagrams.
func (c *HTTPClient) UseCases(ctx context.Context, projectID string) (*UseCaseGeneration, error) {
	return c.useCases(ctx, http.MethodGet, "/usecases/diagram", projectID)
}

// GenerateAIUseCases triggers AI diagram generation.
func (c *HTTPClient) GenerateAIUseCases(ctx context.Context, projectID string) (*UseCaseGeneration, error) {
	return c.useCases(ctx, http.MethodPost, "/usecases/ai-diagram", projectID)
}

// AIUseCases fetches previously generated AI diagrams.
func (c *HTTPClient) AIUseCases(ctx context.Context, projectID string) (*UseCaseGeneration, error) {
	return c.useCases(ctx, http.MethodGet, "/usecases/ai-diagram", projectID)
}

// useCases POSTs {project_id} to path, or GETs path/{project_id}.
func (c *HTTPClient) useCases(ctx context.Context, method, path, projectID string) (*UseCaseGeneration, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	var out *UseCaseGeneration
	var err error
	if method == http.MethodPost {
		err = c.send(ctx, method, path, map[string]string{"project_id": projectID}, &out)
	} else {
		err = c.get(ctx, path+"/"+url.PathEscape(projectID), nil, &out)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ---------- Collector ----------

// SearchApps discovers marketplace apps matching the project's case study.
func (c *HTTPClient) SearchApps(ctx context.Context, projectID string, limit int) ([]App, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	q := projectQuery(projectID)
	q.Set("limit", strconv.Itoa(limit))
	var out []App
	if err := c.get(ctx, "/get-apps", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchAppReviews scrapes reviews for one app.
func (c *HTTPClient) FetchAppReviews(ctx context.Context, projectID string, store Store, appID string, count int) ([]Review, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	q := projectQuery(projectID)
	q.Set("store", string(store))
	q.Set("app_id", appID)
	q.Set("count", strconv.Itoa(count))
	var out []Review
	if err := c.get(ctx, "/get-reviews", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchNewsArticles collects news articles for one query.
func (c *HTTPClient) FetchNewsArticles(ctx context.Context, projectID, query string, limit int) ([]NewsArticle, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	q := projectQuery(projectID)
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	var out []NewsArticle
	if err := c.get(ctx, "/get-news", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchTweets collects social posts for one query.
func (c *HTTPClient) FetchTweets(ctx context.Context, projectID, query string, count int) ([]Tweet, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	q := projectQuery(projectID)
	q.Set("query", query)
	q.Set("count", strconv.Itoa(count))
	var out []Tweet
	if err := c.get(ctx, "/get-tweets", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------- Projects ----------

// CreateProject registers a new project and returns its session id.
func (c *HTTPClient) CreateProject(ctx context.Context, name, caseStudy string) (*NewProject, error) {
	body := map[string]string{"name": name, "case_study": caseStudy}
	var out NewProject
	if err := c.send(ctx, http.MethodPost, "/create-new-project", body, &out); err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		return nil, fmt.Errorf("%w: create-new-project returned no session_id", ErrInvalidPayload)
	}
	return &out, nil
}

// Project returns one project's configuration.
func (c *HTTPClient) Project(ctx context.Context, projectID string) (*Project, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	var out Project
	if err := c.get(ctx, "/get-project-data", url.Values{"id": {projectID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProjects returns every project on the backend.
func (c *HTTPClient) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := c.get(ctx, "/get-projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProjectConfig replaces a project's queries and data sources.
func (c *HTTPClient) UpdateProjectConfig(ctx context.Context, projectID string, queries []string, sources DataSources) error {
	if projectID == "" {
		return ErrEmptyProjectID
	}
	body := struct {
		ID          string      `json:"id"`
		Queries     []string    `json:"queries"`
		DataSources DataSources `json:"dataSources"`
	}{projectID, queries, sources}
	return c.send(ctx, http.MethodPatch, "/update-project-config", body, nil)
}

// ProjectQueries returns the search queries configured for a project.
func (c *HTTPClient) ProjectQueries(ctx context.Context, projectID string) ([]string, error) {
	return getList[string](ctx, c, "/get-project-queries", projectID)
}

// ---------- Transport ----------

func projectQuery(projectID string) url.Values {
	return url.Values{"project_id": {projectID}}
}

// getList GETs path?project_id=... and decodes a JSON array. A null body
// decodes to an empty list.
func getList[T any](ctx context.Context, c *HTTPClient, path, projectID string) ([]T, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	var out []T
	if err := c.get(ctx, path, projectQuery(projectID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, result any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil, result)
}

func (c *HTTPClient) send(ctx context.Context, method, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("backend: marshal %s %s: %w", method, path, err)
	}
	return c.do(ctx, method, path, data, result)
}

// do executes one request and decodes the JSON response into result.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, result any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("backend: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode}
		if json.Valid(respBody) {
			apiErr.Payload = respBody
		}
		return apiErr
	}

	if result == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	return nil
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Payload json.RawMessage
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s %s failed (%d)", e.Method, e.Path, e.Status)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
