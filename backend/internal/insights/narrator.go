// Package insights turns analysis results into a short investigator-facing
// narrative using an OpenAI-compatible chat endpoint.
package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"fraudgraph/backend/internal/community"
	"fraudgraph/backend/internal/linkpred"
	apperrors "fraudgraph/backend/pkg/errors"
	"fraudgraph/backend/pkg/logger"
)

const systemPrompt = `You are a graph analyst supporting fraud and influence investigations.
You are given summary statistics of a network, its largest communities and the
node pairs an embedding model considers most likely to be linked but are not.
Write at most five sentences for an investigator: what the structure suggests,
which communities deserve attention, and which predicted links to check first.
Do not invent numbers that are not in the brief.`

// Brief is the compact view of one analysis handed to the model
type Brief struct {
	Flavor         string
	TotalNodes     int
	TotalEdges     int
	AvgDegree      float64
	Density        float64
	NumCommunities int
	Modularity     float64
	Communities    []community.Group
	Links          []linkpred.Link
	// Extra holds flavor-specific metrics such as influencer counts
	Extra map[string]float64
}

// Narrator writes narratives for analysis briefs
type Narrator struct {
	client     *openai.Client
	model      string
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewNarrator creates a narrator talking to baseURL. An empty apiKey is
// replaced with a placeholder, which LiteLLM style proxies accept.
func NewNarrator(baseURL, apiKey, modelID string) *Narrator {
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"

	return &Narrator{
		client:     openai.NewClientWithConfig(config),
		model:      modelID,
		maxRetries: 3,
		backoff:    time.Second,
		logger:     logger.Named("insights"),
	}
}

// Model returns the model id requests are sent with
func (n *Narrator) Model() string {
	return n.model
}

// Summarize returns a narrative for b
func (n *Narrator) Summarize(ctx context.Context, b Brief) (string, error) {
	if b.TotalNodes == 0 {
		return "", apperrors.ErrEmptyGraph
	}

	req := openai.ChatCompletionRequest{
		Model: n.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Render(b)},
		},
		Temperature: 0.3,
		MaxTokens:   400,
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt < n.maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * n.backoff
			n.logger.Warn("Retrying insights request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", wait),
			)
			select {
			case <-ctx.Done():
				return "", apperrors.NewInsightsFailed(n.model, ctx.Err())
			case <-time.After(wait):
			}
		}

		resp, err = n.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}
		n.logger.Error("Insights request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", n.model),
		)
	}
	if err != nil {
		return "", apperrors.NewInsightsFailed(n.model, fmt.Errorf("after %d attempts: %w", n.maxRetries, err))
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.NewInsightsFailed(n.model, fmt.Errorf("no choices in response"))
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	n.logger.Debug("Insights generated",
		zap.String("model", n.model),
		zap.Int("length", len(text)),
	)
	return text, nil
}

// Render formats b as the user message sent to the model
func Render(b Brief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analysis: %s network\n", b.Flavor)
	fmt.Fprintf(&sb, "Nodes: %d, edges: %d, average degree: %.2f, density: %.4f\n",
		b.TotalNodes, b.TotalEdges, b.AvgDegree, b.Density)
	fmt.Fprintf(&sb, "Communities: %d, modularity: %.3f\n", b.NumCommunities, b.Modularity)

	for _, key := range sortedKeys(b.Extra) {
		fmt.Fprintf(&sb, "%s: %.3f\n", key, b.Extra[key])
	}

	if len(b.Communities) > 0 {
		sb.WriteString("Largest communities:\n")
		for _, c := range b.Communities {
			fmt.Fprintf(&sb, "- community %d: %d members %v\n", c.ID, len(c.Members), c.Members)
		}
	}

	if len(b.Links) > 0 {
		sb.WriteString("Top predicted links:\n")
		for _, l := range b.Links {
			fmt.Fprintf(&sb, "- %d <-> %d (similarity %.3f)\n", l.Source, l.Target, l.Score)
		}
	}
	return sb.String()
}
