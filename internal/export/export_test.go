package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/elicit/internal/backend"
	"github.com/dusk-indust/elicit/internal/graph"
	"github.com/dusk-indust/elicit/internal/sequencer"
)

func strPtr(s string) *string { return &s }

func TestStoriesCSV(t *testing.T) {
	stories := []backend.Story{
		{
			ID: "s1", Title: "Traffic", Who: "driver", What: "see traffic, live", Why: strPtr("avoid jams"),
			Sources: backend.StorySource{Type: backend.SourceReview, Title: "Waze", Link: "https://example.com/r1"},
		},
		{ID: "s2", Who: "commuter", What: "reroutes"},
	}

	var buf bytes.Buffer
	require.NoError(t, StoriesCSV(&buf, stories))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, storyHeader, rows[0])
	assert.Equal(t, []string{"s1", "Traffic", "driver", "see traffic, live", "avoid jams", "review", "Waze", "https://example.com/r1"}, rows[1])
	assert.Equal(t, "", rows[2][4], "nil why")
}

func TestAIStoriesCSV(t *testing.T) {
	stories := []backend.AIStory{{
		ID: "a1", Who: "driver", What: "offline maps", Sentence: "As a driver, I want offline maps",
		ContentType: backend.SourceNews, ContentID: "n1", Sentiment: "negative", Confidence: 0.875,
		Evidence: "\"no signal\" in tunnels",
	}}

	var buf bytes.Buffer
	require.NoError(t, AIStoriesCSV(&buf, stories))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, aiStoryHeader, rows[0])
	assert.Equal(t, "0.88", rows[1][8])
	assert.Equal(t, "\"no signal\" in tunnels", rows[1][9])
}

func TestRunJSON(t *testing.T) {
	p := sequencer.Progress{
		ProjectID:  "p1",
		Pipeline:   "requirements",
		RunID:      "r1",
		State:      sequencer.StateComplete,
		IsComplete: true,
		Percent:    100,
		Steps:      []sequencer.Stage{{Name: "Processing Reviews"}, {Name: "Generating Use Cases"}},
		StepErrors: []string{"", "boom"},
		StepStats:  []sequencer.Counters{{Processed: 3, Failed: 1}, {}},
	}
	data, err := RunJSON(p, Artifacts{
		Stories:  []backend.Story{{ID: "s1", Who: "driver"}},
		UseCases: &backend.UseCaseGeneration{DiagramURLs: []string{"https://example.com/d1.png"}},
	})
	require.NoError(t, err)

	var got RunExport
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "complete", got.Outcome)
	require.Len(t, got.Stages, 2)
	assert.Equal(t, StageExport{Stage: 1, Name: "Processing Reviews", Status: "complete", Processed: 3, Failed: 1}, got.Stages[0])
	assert.Equal(t, "error", got.Stages[1].Status)
	assert.Equal(t, "boom", got.Stages[1].Error)
	assert.Len(t, got.Stories, 1)
	assert.Nil(t, got.AIStories)
	assert.Equal(t, []string{"https://example.com/d1.png"}, got.UseCases.DiagramURLs)
	assert.NotEmpty(t, got.ExportedAt)
}

func TestClustersMermaid(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemStore()
	require.NoError(t, store.InitSchema(ctx))
	_, err := graph.IndexClusters(ctx, store, &backend.ClusteringData{
		ProjectID: "p1",
		Clusters: []backend.Cluster{{
			ID:   0,
			Size: 2,
			Representative: backend.ClusterStory{
				ID: "s1", Who: "Driver", What: "see traffic", FullSentence: `As a "driver", I want traffic`,
				SimilarityScore: 0.9,
			},
			Stories: []backend.ClusterStory{
				{ID: "s1", Who: "Driver", What: "see traffic", FullSentence: `As a "driver", I want traffic`, SimilarityScore: 0.9},
				{ID: "s2", Who: "commuter", What: "reroutes", SimilarityScore: 0.7},
			},
		}},
	})
	require.NoError(t, err)

	got, err := ClustersMermaid(ctx, store, "p1")
	require.NoError(t, err)

	want := strings.Join([]string{
		"graph TD",
		`  subgraph N0["Cluster 0 (2)"]`,
		`    N1["Driver: see traffic"]`,
		`    N2["commuter: reroutes"]`,
		"  end",
		`  N3(["As a 'driver', I want traffic"])`,
		"  N1 --> N3",
		"",
	}, "\n")
	assert.Equal(t, want, got)

	empty, err := ClustersMermaid(ctx, store, "other")
	require.NoError(t, err)
	assert.Equal(t, "graph TD\n", empty)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "a (b)", label("a [b]", 10))
	assert.Equal(t, "abcdefg...", label("abcdefghijklmnop", 10))
}

type memUploader struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (m *memUploader) Put(_ context.Context, key string, body io.Reader, size int64, contentType string) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func TestPublish(t *testing.T) {
	up := &memUploader{objects: map[string][]byte{}, types: map[string]string{}}
	key := ObjectKey("p/1", "ai", "stories.csv")
	assert.Equal(t, "p_1/ai/stories.csv", key)

	require.NoError(t, Publish(context.Background(), up, key, []byte("id\n")))
	assert.Equal(t, []byte("id\n"), up.objects[key])
	assert.Equal(t, "text/csv", up.types[key])

	up.err = errors.New("bucket gone")
	err := Publish(context.Background(), up, key, nil)
	assert.ErrorContains(t, err, "export: publish p_1/ai/stories.csv: bucket gone")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", ContentType("a/run.json"))
	assert.Equal(t, "text/vnd.mermaid", ContentType("clusters.mmd"))
	assert.Equal(t, "application/octet-stream", ContentType("blob"))
	assert.Equal(t, "_/_/_", ObjectKey("", " ", ""))
}
