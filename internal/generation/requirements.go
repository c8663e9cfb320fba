package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/elicit/internal/backend"
	"github.com/dusk-indust/elicit/internal/sequencer"
)

// errNoContent marks an item whose cleaned text is empty.
var errNoContent = errors.New("no usable content after cleaning")

// RequirementsStages are the rule-based pipeline's stages in order.
var RequirementsStages = []sequencer.Stage{
	{Name: "Analyzing App Data", Description: "Processing collected app reviews and features"},
	{Name: "Processing News Articles", Description: "Extracting insights from industry trends"},
	{Name: "Analyzing Social Media", Description: "Understanding user sentiment and discussions"},
	{Name: "Generating User Stories", Description: "Creating user-centered requirements"},
	{Name: "Creating Use Cases", Description: "Defining system interactions and workflows"},
}

// requirementsAPI is what the rule-based pipeline calls.
type requirementsAPI interface {
	backend.Collection
	backend.Extraction
	backend.Aggregation
}

type requirementsPipeline struct {
	api    requirementsAPI
	result *Result
}

func (p *requirementsPipeline) funcs() []sequencer.StageFunc {
	return []sequencer.StageFunc{
		p.extract(backend.SourceReview),
		p.extract(backend.SourceNews),
		p.extract(backend.SourceTweet),
		p.userStories,
		p.useCases,
	}
}

// extract cleans every collected item of one source and asks the rule-based
// extractor for a story from it.
func (p *requirementsPipeline) extract(source backend.Source) sequencer.StageFunc {
	return func(ctx context.Context, sc *sequencer.StageContext) error {
		projectID := sc.ProjectID()
		items, err := p.api.Items(ctx, projectID, source)
		if err != nil {
			return fmt.Errorf("load %s items: %w", source, err)
		}
		sc.ForEachItem(ctx, len(items), func(ctx context.Context, i int) error {
			text, err := cleanItem(ctx, p.api, items[i])
			if err != nil {
				return err
			}
			return p.api.ExtractStory(ctx, backend.ExtractRequest{
				ProjectID: projectID,
				Source:    source,
				SourceID:  items[i].ItemID(),
				Content:   text,
			})
		})
		return nil
	}
}

func (p *requirementsPipeline) userStories(ctx context.Context, sc *sequencer.StageContext) error {
	stories, err := p.api.Stories(ctx, sc.ProjectID())
	if err != nil {
		return fmt.Errorf("load user stories: %w", err)
	}
	p.result.setStories(stories)
	return p.api.UpdateFetchState(ctx, sc.ProjectID(), backend.FetchState{UserStories: true})
}

func (p *requirementsPipeline) useCases(ctx context.Context, sc *sequencer.StageContext) error {
	uc, err := p.api.GenerateUseCases(ctx, sc.ProjectID())
	if err != nil {
		return fmt.Errorf("generate use cases: %w", err)
	}
	if uc == nil {
		return nil
	}
	p.result.setUseCases(uc)
	return p.api.UpdateFetchState(ctx, sc.ProjectID(), backend.FetchState{UseCase: true})
}

// resume loads the finished stories (and use cases, when generated) if the
// project already has them.
func (p *requirementsPipeline) resume(ctx context.Context, projectID string) (bool, error) {
	state, err := p.api.FetchState(ctx, projectID)
	if err != nil {
		return false, err
	}
	if state == nil || !state.UserStories {
		return false, nil
	}
	stories, err := p.api.Stories(ctx, projectID)
	if err != nil {
		return false, err
	}
	p.result.setStories(stories)
	if state.UseCase {
		uc, err := p.api.UseCases(ctx, projectID)
		if err != nil {
			return false, err
		}
		p.result.setUseCases(uc)
	}
	return true, nil
}

// cleanItem returns the item's cleaned text, failing when nothing usable
// remains.
func cleanItem(ctx context.Context, api backend.Extraction, item backend.ContentItem) (string, error) {
	text, err := api.CleanContent(ctx, item.ItemID(), item.Source())
	if err != nil {
		return "", fmt.Errorf("clean %s %s: %w", item.Source(), item.ItemID(), err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("clean %s %s: %w", item.Source(), item.ItemID(), errNoContent)
	}
	return text, nil
}
