// Package answer composes generated answers from retrieved chunks.
package answer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/papercomputeco/shelf/pkg/errs"
	"github.com/papercomputeco/shelf/pkg/llm"
	"github.com/papercomputeco/shelf/pkg/retrieval"
	"github.com/papercomputeco/shelf/pkg/telemetry"
	"github.com/papercomputeco/shelf/pkg/utils"
)

const (
	DefaultMaxContextChars = 1000

	// FallbackAnswer is shown to callers when generation fails.
	FallbackAnswer = "Sorry, something went wrong while answering your question."

	// ContextSeparator sits between labelled contexts in the prompt.
	ContextSeparator = "\n\n---\n\n"

	PlaceholderContext = "{context}"
	PlaceholderQuery   = "{query}"
)

// DefaultSystemPrompt keeps the model inside the knowledge base.
const DefaultSystemPrompt = `You are an assistant that answers questions using the knowledge base provided.
Use the relevant context to give an accurate, informative answer.
If the context does not contain the information, say that it is not in the knowledge base.`

// DefaultUserTemplate must contain PlaceholderContext and PlaceholderQuery.
const DefaultUserTemplate = `Context from the knowledge base:
{context}

Question: {query}

Give a clear and accurate answer based on the context above.`

// Answer is the outcome of one composition.
type Answer struct {
	Text           string  `json:"answer"`
	RelevanceScore float64 `json:"relevance_score"`
	SourcesUsed    int     `json:"sources_used"`
	Model          string  `json:"model_used"`
	Failed         bool    `json:"failed,omitempty"`
}

// Config configures a Composer.
type Config struct {
	Generator llm.Generator

	// SystemPrompt defaults to DefaultSystemPrompt.
	SystemPrompt string

	// UserTemplate defaults to DefaultUserTemplate.
	UserTemplate string

	// MaxContextChars caps each context in runes. Defaults to
	// DefaultMaxContextChars.
	MaxContextChars int

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Composer fills the prompt template and delegates to a generator.
type Composer struct {
	generator       llm.Generator
	systemPrompt    string
	userTemplate    string
	maxContextChars int
	metrics         *telemetry.Metrics
	logger          *slog.Logger
}

func NewComposer(cfg Config) (*Composer, error) {
	if cfg.Generator == nil {
		return nil, errs.New(errs.KindConfiguration, "composer requires a generator")
	}

	c := &Composer{
		generator:       cfg.Generator,
		systemPrompt:    cfg.SystemPrompt,
		userTemplate:    cfg.UserTemplate,
		maxContextChars: cfg.MaxContextChars,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
	}
	if c.systemPrompt == "" {
		c.systemPrompt = DefaultSystemPrompt
	}
	if c.userTemplate == "" {
		c.userTemplate = DefaultUserTemplate
	}
	if err := ValidateTemplate(c.userTemplate); err != nil {
		return nil, err
	}
	if c.maxContextChars < 0 {
		return nil, errs.New(errs.KindConfiguration, "max context chars must not be negative")
	}
	if c.maxContextChars == 0 {
		c.maxContextChars = DefaultMaxContextChars
	}
	if c.metrics == nil {
		c.metrics = telemetry.Nop()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	c.logger = c.logger.With("component", "answer")

	return c, nil
}

// ValidateTemplate requires both placeholders.
func ValidateTemplate(tmpl string) error {
	for _, p := range []string{PlaceholderContext, PlaceholderQuery} {
		if !strings.Contains(tmpl, p) {
			return errs.Newf(errs.KindConfiguration, "user prompt template is missing %s", p)
		}
	}
	return nil
}

// Model returns the generator's model name.
func (c *Composer) Model() string {
	return c.generator.Model()
}

// Compose generates an answer to query grounded in contexts. On generation
// failure it returns an Answer carrying FallbackAnswer together with an
// external service error.
func (c *Composer) Compose(ctx context.Context, query string, contexts []retrieval.Result) (*Answer, error) {
	relevance := Relevance(contexts)
	if len(contexts) == 0 {
		c.logger.Warn("composing answer without retrieved context", "query_chars", len([]rune(query)))
	}

	prompt := c.BuildPrompt(query, contexts)
	text, err := c.generator.Generate(ctx, c.systemPrompt, prompt)
	if err != nil {
		c.logger.Error("answer generation failed", "model", c.generator.Model(), "error", err)
		c.metrics.ObserveAnswer(true, relevance)
		return &Answer{
			Text:           FallbackAnswer,
			RelevanceScore: relevance,
			SourcesUsed:    len(contexts),
			Model:          c.generator.Model(),
			Failed:         true,
		}, errs.Wrap(errs.KindExternalService, FallbackAnswer, err)
	}

	c.metrics.ObserveAnswer(false, relevance)
	c.logger.Debug("answer generated",
		"model", c.generator.Model(),
		"sources", len(contexts),
		"relevance", relevance,
	)

	return &Answer{
		Text:           strings.TrimSpace(text),
		RelevanceScore: relevance,
		SourcesUsed:    len(contexts),
		Model:          c.generator.Model(),
	}, nil
}

// BuildPrompt renders the user prompt for query and contexts.
func (c *Composer) BuildPrompt(query string, contexts []retrieval.Result) string {
	parts := make([]string, 0, len(contexts))
	for _, r := range contexts {
		parts = append(parts, "["+r.Filename+"]\n"+utils.Clip(r.Content, c.maxContextChars))
	}

	return strings.NewReplacer(
		PlaceholderContext, strings.Join(parts, ContextSeparator),
		PlaceholderQuery, query,
	).Replace(c.userTemplate)
}

// Relevance is the mean of 1/(1+distance) over contexts, or 0 when empty.
func Relevance(contexts []retrieval.Result) float64 {
	if len(contexts) == 0 {
		return 0
	}
	var sum float64
	for _, r := range contexts {
		sum += 1 / (1 + r.Distance)
	}
	return sum / float64(len(contexts))
}
