package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/dusk-indust/elicit/internal/backend"
)

var (
	storyHeader   = []string{"id", "title", "who", "what", "why", "source", "source_title", "link"}
	aiStoryHeader = []string{"id", "who", "what", "why", "sentence", "source", "content_id", "sentiment", "confidence", "evidence"}
)

// StoriesCSV writes rule-based stories as CSV with a header row.
func StoriesCSV(w io.Writer, stories []backend.Story) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(storyHeader); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, s := range stories {
		rec := []string{
			s.ID, s.Title, s.Who, s.What, deref(s.Why),
			string(s.Sources.Type), s.Sources.Title, s.Sources.Link,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: write story %s: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AIStoriesCSV writes AI stories as CSV with a header row.
func AIStoriesCSV(w io.Writer, stories []backend.AIStory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(aiStoryHeader); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, s := range stories {
		rec := []string{
			s.ID, s.Who, s.What, deref(s.Why), s.Sentence,
			string(s.ContentType), s.ContentID, s.Sentiment,
			strconv.FormatFloat(s.Confidence, 'f', 2, 64), s.Evidence,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: write story %s: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
