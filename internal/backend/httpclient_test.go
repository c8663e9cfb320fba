package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonHandler writes body as a JSON response after running check.
func jsonHandler(t *testing.T, check func(r *http.Request), body string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestFetchState_DecodesFlags(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/get-fetch-data-state", r.URL.Path)
		assert.Equal(t, "p1", r.URL.Query().Get("project_id"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
	}, `{"reviews":true,"userStories":true,"aiUseCase":false}`))
	defer ts.Close()

	st, err := NewHTTPClient(ts.URL).FetchState(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, st.Reviews)
	assert.True(t, st.UserStories)
	assert.False(t, st.AIUseCase)
	assert.False(t, st.News)
}

func TestUpdateFetchState_SendsOnlyTrueFlags(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/update-fetch-data-state", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}, `{}`))
	defer ts.Close()

	err := NewHTTPClient(ts.URL).UpdateFetchState(context.Background(), "p1", FetchState{UserStories: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"project_id": "p1", "userStories": true}, got)
}

func TestItems_SumTypeBySource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /get-project-reviews", jsonHandler(t, nil,
		`[{"_id":"r1","reviewer":"ann","rating":4,"review":"slow sync","app_id":"a","store":"google"}]`))
	mux.HandleFunc("GET /get-project-news", jsonHandler(t, nil,
		`[{"_id":"n1","title":"t","content":"market shift"}]`))
	mux.HandleFunc("GET /get-project-tweets", jsonHandler(t, nil,
		`[{"_id":"t1","tweet_id":"99","text":"love it","author":{"username":"bob"}}]`))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewHTTPClient(ts.URL)
	ctx := context.Background()

	reviews, err := c.Items(ctx, "p1", SourceReview)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	r, ok := reviews[0].(*Review)
	require.True(t, ok, "review items should be *Review")
	assert.Equal(t, "r1", r.ItemID())
	assert.Equal(t, SourceReview, r.Source())
	assert.Equal(t, "slow sync", r.Text())

	news, err := c.Items(ctx, "p1", SourceNews)
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.IsType(t, &NewsArticle{}, news[0])
	assert.Equal(t, SourceNews, news[0].Source())

	tweets, err := c.Items(ctx, "p1", SourceTweet)
	require.NoError(t, err)
	require.Len(t, tweets, 1)
	tw := tweets[0].(*Tweet)
	assert.Equal(t, "bob", tw.Author.Username)
	assert.Equal(t, "love it", tw.Text())
}

func TestItems_RejectsMissingID(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, nil, `[{"_id":"n1"},{"title":"no id"}]`))
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL).Items(context.Background(), "p1", SourceNews)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestCleanContent_EndpointPerSource(t *testing.T) {
	tests := []struct {
		source Source
		path   string
		param  string
	}{
		{SourceReview, "/clean-app-review", "review_id"},
		{SourceNews, "/clean-news", "news_id"},
		{SourceTweet, "/clean-tweet", "tweet_id"},
	}
	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			ts := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				assert.Equal(t, "c1", r.URL.Query().Get(tt.param))
			}, `"cleaned text"`))
			defer ts.Close()

			text, err := NewHTTPClient(ts.URL).CleanContent(context.Background(), "c1", tt.source)
			require.NoError(t, err)
			assert.Equal(t, "cleaned text", text)
		})
	}
}

func TestCleanContent_NullAndUnknownSource(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, nil, `null`))
	defer ts.Close()
	c := NewHTTPClient(ts.URL)

	text, err := c.CleanContent(context.Background(), "c1", SourceNews)
	require.NoError(t, err)
	assert.Empty(t, text)

	text, err = c.CleanContent(context.Background(), "c1", Source("podcast"))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestExtractStory_PostsBody(t *testing.T) {
	var got ExtractRequest
	ts := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/extract-user-story", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}, `{"ok":true}`))
	defer ts.Close()

	req := ExtractRequest{ProjectID: "p1", Source: SourceTweet, SourceID: "t1", Content: "hello"}
	require.NoError(t, NewHTTPClient(ts.URL).ExtractStory(context.Background(), req))
	assert.Equal(t, req, got)
}

func TestAPIError_CarriesStatusAndPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"project not found"}`)
	}))
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL).Stories(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, http.MethodGet, apiErr.Method)
	assert.JSONEq(t, `{"detail":"project not found"}`, string(apiErr.Payload))
	assert.Contains(t, err.Error(), "failed (404)")
	assert.True(t, IsNotFound(err))
}

func TestEmptyProjectID_ShortCircuits(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1")
	ctx := context.Background()

	_, err := c.FetchState(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyProjectID)
	_, err = c.Stories(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyProjectID)
	assert.ErrorIs(t, c.ExtractAIStory(ctx, AIExtractRequest{}), ErrEmptyProjectID)
	_, err = c.GenerateUseCases(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyProjectID)
}

func TestUseCases_GenerateAndFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /usecases/diagram", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "p1", body["project_id"])
		_, _ = io.WriteString(w, `{"diagrams_url":["u1","u2"]}`)
	})
	mux.HandleFunc("GET /usecases/diagram/p1", jsonHandler(t, nil, `{"diagrams_url":["u1"]}`))
	mux.HandleFunc("POST /usecases/ai-diagram", jsonHandler(t, nil, `null`))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewHTTPClient(ts.URL)
	ctx := context.Background()

	gen, err := c.GenerateUseCases(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, gen)
	assert.Equal(t, []string{"u1", "u2"}, gen.DiagramURLs)

	got, err := c.UseCases(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, got.DiagramURLs)

	none, err := c.GenerateAIUseCases(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestAIClusters_TransformsStories(t *testing.T) {
	body := `{
		"project_id": "p1",
		"clusters": [{
			"cluster_id": 3,
			"size": 2,
			"sources": ["review", "tweet"],
			"representative_story": {
				"_id": "s1", "who": "commuter", "what": "offline maps",
				"as_a_i_want_so_that": "As a commuter I want offline maps",
				"confidence": 0.9, "content_id": "r1", "content_type": "review",
				"field_insight": {"nfr": ["availability"], "business_impact": "retention", "pain_point_jtbd": "no signal"}
			},
			"stories": [
				{"_id": "s1", "who": "commuter", "what": "offline maps", "confidence": 0.9, "content_id": "r1", "content_type": "review"},
				{"_id": "s2", "who": "driver", "what": "voice", "confidence": 0.4, "content_id": "t1", "content_type": "social"}
			]
		}]
	}`
	ts := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		assert.Equal(t, "/get-clustered-ai-user-stories", r.URL.Path)
	}, body))
	defer ts.Close()

	data, err := NewHTTPClient(ts.URL).AIClusters(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, data)
	require.Len(t, data.Clusters, 1)

	c := data.Clusters[0]
	assert.Equal(t, 3, c.ID)
	rep := c.Representative
	assert.Equal(t, "As a commuter I want offline maps", rep.FullSentence)
	assert.InDelta(t, 0.9, rep.SimilarityScore, 1e-9)
	assert.Equal(t, SourceReview, rep.Source)
	assert.Equal(t, "r1", rep.SourceID)
	require.NotNil(t, rep.Insight)
	require.NotNil(t, rep.Insight.FitScore)
	assert.InDelta(t, 0.9, rep.Insight.FitScore.Score, 1e-9)
	assert.Equal(t, "Derived from story confidence score.", rep.Insight.FitScore.Explanation)

	require.Len(t, c.Stories, 2)
	assert.Equal(t, SourceTweet, c.Stories[1].Source, "social maps to tweet")
	assert.Nil(t, c.Stories[1].Insight)
}

func TestProjects_CreateAndConfigure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /create-new-project", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Transit", body["name"])
		assert.Equal(t, "ride sharing", body["case_study"])
		_, _ = io.WriteString(w, `{"session_id":"p9","queries":["ride app"]}`)
	})
	mux.HandleFunc("PATCH /update-project-config", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ID          string      `json:"id"`
			Queries     []string    `json:"queries"`
			DataSources DataSources `json:"dataSources"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "p9", body.ID)
		assert.Equal(t, []string{"q1"}, body.Queries)
		assert.True(t, body.DataSources.News)
		w.WriteHeader(http.StatusNoContent)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewHTTPClient(ts.URL)
	np, err := c.CreateProject(context.Background(), "Transit", "ride sharing")
	require.NoError(t, err)
	assert.Equal(t, "p9", np.SessionID)
	assert.Equal(t, []string{"ride app"}, np.Queries)

	err = c.UpdateProjectConfig(context.Background(), "p9", []string{"q1"}, DataSources{News: true})
	require.NoError(t, err)
}

func TestAnalytics_ExcludeProjects(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		assert.Equal(t, "/analytics/projects/overview", r.URL.Path)
		assert.Equal(t, "a,b", r.URL.Query().Get("exclude_projects"))
	}, `{"total_projects":2,"projects":[{"id":"c","name":"C","status":"done"}]}`))
	defer ts.Close()

	ov, err := NewHTTPClient(ts.URL).ProjectsOverview(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, ov.TotalProjects)
	require.Len(t, ov.Projects, 1)
	assert.Equal(t, "C", ov.Projects[0].Name)
}

func TestAnalytics_ProjectSections(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, func(r *http.Request) {
		assert.Equal(t, "/analytics/projects/p1/ratings", r.URL.Path)
	}, `{"project_id":"p1","total_reviews":3,"distribution":{"1":1,"5":2},"average_rating":3.67}`))
	defer ts.Close()

	rd, err := NewHTTPClient(ts.URL).RatingsDistribution(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, rd.TotalReviews)
	assert.Equal(t, map[int]int{1: 1, 5: 2}, rd.Distribution)

	_, err = NewHTTPClient(ts.URL).ClusterStats(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyProjectID)
}

func TestWithTimeout_AppliesToRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL, WithTimeout(20*time.Millisecond)).Stories(context.Background(), "p1")
	require.Error(t, err)
}

func TestParseSource(t *testing.T) {
	for in, want := range map[string]Source{"review": SourceReview, "News": SourceNews, "social": SourceTweet, " tweet ": SourceTweet} {
		got, err := ParseSource(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseSource("forum")
	assert.Error(t, err)
}

func TestApp_StoreAppID(t *testing.T) {
	var apps []App
	require.NoError(t, json.Unmarshal([]byte(`[{"appId":"com.example.app"},{"appId":12345}]`), &apps))
	assert.Equal(t, "com.example.app", apps[0].StoreAppID())
	assert.Equal(t, "12345", apps[1].StoreAppID())
}
