package stages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/petrijr/auraflow/pkg/api"
)

const (
	DefaultSource     = "SideProject"
	DefaultTopicLimit = 15
)

// ErrNoTopics is returned when the feed yields no candidates.
var ErrNoTopics = errors.New("feed returned no topics")

// Discovery chooses a niche for a new venture.
type Discovery struct {
	Feed      FeedReader
	Completer Completer

	// Source is the feed to read; empty means DefaultSource.
	Source string
	// Limit caps the number of topics; <= 0 means DefaultTopicLimit.
	Limit int
	Model string

	Logger zerolog.Logger
}

var _ api.StageExecutor = (*Discovery)(nil)

func (d *Discovery) Execute(ctx context.Context, in api.StageInput) (any, error) {
	source := d.Source
	if source == "" {
		source = DefaultSource
	}
	limit := d.Limit
	if limit <= 0 {
		limit = DefaultTopicLimit
	}

	topics, err := d.Feed.FetchTopics(ctx, source, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch topics from %s: %w", source, err)
	}
	topics = nonEmpty(topics)
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTopics, source)
	}
	d.Logger.Info().
		Str("venture_id", in.Venture.ID).
		Str("source", source).
		Int("topics", len(topics)).
		Msg("fetched candidate topics")

	completion, err := d.Completer.Complete(ctx, nichePrompt(source, topics), d.Model)
	if err != nil {
		return nil, fmt.Errorf("analyze topics: %w", err)
	}

	var idea api.NicheIdea
	if err := decodeCompletion(completion, &idea); err != nil {
		return nil, fmt.Errorf("parse niche idea: %w", err)
	}
	if strings.TrimSpace(idea.ChosenTopic) == "" {
		return nil, errors.New("parse niche idea: chosen_topic is empty")
	}

	d.Logger.Info().
		Str("venture_id", in.Venture.ID).
		Str("topic", idea.ChosenTopic).
		Msg("niche selected")
	return idea, nil
}

func nichePrompt(source string, topics []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Below are raw ideas collected from r/%s. Pick the single most promising one to turn into a short, practical e-book.\n", source)
	b.WriteString("A good pick has a clear audience, solves a concrete problem and is something people would pay for. ")
	b.WriteString("Ignore vague, highly technical or hard to monetize ideas.\n\nIdeas:\n")
	for _, t := range topics {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	b.WriteString(`
Answer with a JSON object only, using these keys:
{"chosen_topic": "...", "target_audience": "...", "reasoning": "one sentence"}`)
	return b.String()
}

func nonEmpty(in []string) []string {
	out := in[:0:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
