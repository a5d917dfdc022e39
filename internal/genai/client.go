package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/logging"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-1.5-flash-latest"

// geminiClient implements the LLMClient interface using the Google Gemini API.
type geminiClient struct {
	client *genai.Client
	cfg    Config
	logger *zap.Logger
}

// LLMClient defines the interface for interacting with a generative AI model.
type LLMClient interface {
	// GenerateQueries asks the model for up to n SQL queries over the schema described by
	// schemaJSON. Candidates are returned unvalidated.
	GenerateQueries(ctx context.Context, schemaJSON string, n int) ([]string, error)

	// IsAPIKeyValid checks if the configured API key is functional.
	IsAPIKeyValid(ctx context.Context) error

	// Close cleans up any resources used by the client.
	Close() error
}

// Config holds configuration for the GenAI client.
type Config struct {
	APIKey string
	Model  string
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (LLMClient, error) {
	logger = logging.OrNop(logger)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cannot create Gemini client: API key is missing")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
		logger.Info("Gemini model not specified, using default", zap.String("model", cfg.Model))
	}

	return &geminiClient{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Close cleans up the underlying Gemini client.
func (c *geminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAPIKeyValid checks if the Gemini API key is valid by listing models.
func (c *geminiClient) IsAPIKeyValid(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("gemini client not initialized (likely missing API key)")
	}

	modelIterator := c.client.ListModels(ctx)
	_, err := modelIterator.Next() // Attempt to list one model
	if err != nil {
		if st, ok := status.FromError(err); ok {
			if st.Code() == codes.Unauthenticated || st.Code() == codes.PermissionDenied {
				return fmt.Errorf("invalid Gemini API key or insufficient permissions: %w", err)
			}
		}
		return fmt.Errorf("failed to verify Gemini API key by listing models: %w", err)
	}
	return nil
}

// GenerateQueries prompts the model with the schema and returns the tagged SQL it produced.
func (c *geminiClient) GenerateQueries(ctx context.Context, schemaJSON string, n int) ([]string, error) {
	if c.client == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}
	if n <= 0 {
		return []string{}, nil
	}

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(0.7)
	model.SetMaxOutputTokens(1024)
	model.SetTopP(0.9)
	model.SetTopK(40)

	resp, err := model.GenerateContent(ctx, genai.Text(buildQueryPrompt(schemaJSON, n)))
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	text, err := getFirstTextPart(resp)
	if err != nil {
		return nil, err
	}

	queries := extractAllBetween(text, "<query>", "</query>")
	c.logger.Info("Generated queries from model",
		zap.String("model", c.cfg.Model),
		zap.Int("requested", n),
		zap.Int("returned", len(queries)))
	return queries, nil
}

func buildQueryPrompt(schemaJSON string, n int) string {
	return fmt.Sprintf(`
	You are an expert MySQL analyst. Write example SQL queries a user might ask against the database described below.

	********** Database Schema (JSON) **********
	%s
	********** End Database Schema **********

	**Instructions:**
	1. Write exactly %d distinct, read-only SELECT queries.
	2. Use ONLY the tables and columns listed in the schema. Do NOT invent names.
	3. Mix plain selects with WHERE, GROUP BY, HAVING, ORDER BY and LIMIT where they make sense.
	4. Use concrete literal values, never placeholders such as {value}.
	5. Output each query on its own, enclosed ONLY in <query></query> tags. No explanations.

	**Example Output:** <query>SELECT customer, SUM(amount) FROM orders GROUP BY customer</query>

	Begin:
	`, schemaJSON, n)
}

// getFirstTextPart extracts the first text part from a Gemini response.
func getFirstTextPart(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		safetyRatings := "none"
		if resp != nil && len(resp.Candidates) > 0 {
			finishReason = resp.Candidates[0].FinishReason.String()
			if resp.Candidates[0].SafetyRatings != nil {
				safetyRatings = fmt.Sprintf("%v", resp.Candidates[0].SafetyRatings)
			}
		}
		return "", fmt.Errorf("empty or incomplete response from Gemini API. FinishReason: %s, SafetyRatings: %s", finishReason, safetyRatings)
	}
	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type: %T", part)
	}
	return string(text), nil
}

// extractContentBetween extracts content between start and end tags from a string.
func extractContentBetween(text, startTag, endTag string) (string, bool) {
	startIndex := strings.Index(text, startTag)
	if startIndex == -1 {
		return "", false
	}
	startIndex += len(startTag)
	endIndex := strings.Index(text[startIndex:], endTag)
	if endIndex == -1 {
		return "", false
	}
	return strings.TrimSpace(text[startIndex : startIndex+endIndex]), true
}

// extractAllBetween returns every non-empty tagged section of text, in order.
func extractAllBetween(text, startTag, endTag string) []string {
	out := []string{}
	for {
		content, found := extractContentBetween(text, startTag, endTag)
		if !found {
			return out
		}
		if content != "" {
			out = append(out, content)
		}
		start := strings.Index(text, startTag) + len(startTag)
		text = text[start+strings.Index(text[start:], endTag)+len(endTag):]
	}
}
