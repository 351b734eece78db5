package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"
	openai "github.com/sashabaranov/go-openai"
)

//go:embed summary_schema.json
var summarySchemaJSON []byte

var (
	summarySchema     *jsonschema.Schema
	summarySchemaOnce sync.Once
	summarySchemaErr  error
)

const summarySystemPrompt = `You are an editor tasked with creating a concise summary and identifying topics. Your goal is to distill the main ideas into a brief, engaging format and provide relevant topic tags.

Follow these steps:
1. Create a brief introduction (2-3 sentences)
2. Extract 3-5 key points
3. Craft a brief ending (1-2 sentences)
4. Generate 5 follow-up questions
5. Generate 1-3 relevant topic tags that best categorize this content

Format your response as a JSON object with the following structure:
{
  "intro": "Brief introduction text",
  "key_points": ["point 1", "point 2", "point 3"],
  "ending": "Brief conclusion text",
  "follow_up_questions": ["question 1", "question 2", "question 3", "question 4", "question 5"],
  "tags": ["tag1", "tag2", "tag3"]
}`

// Summary is the structured summary produced for one content record.
type Summary struct {
	Intro             string   `json:"intro"`
	KeyPoints         []string `json:"key_points"`
	Ending            string   `json:"ending"`
	FollowUpQuestions []string `json:"follow_up_questions,omitempty"`
	Tags              []string `json:"tags,omitempty"`
}

// NarrationText concatenates the summary into the single string submitted
// to the text-to-speech service.
func (s *Summary) NarrationText() string {
	parts := make([]string, 0, len(s.KeyPoints)+2)
	parts = append(parts, s.Intro)
	parts = append(parts, s.KeyPoints...)
	parts = append(parts, s.Ending)
	return strings.Join(parts, ". ")
}

// Summarize submits content to the summarization model and returns the
// parsed, schema-validated summary. All failure modes (empty response,
// malformed JSON, schema violation) wrap ErrSummarization.
func (c *Client) Summarize(ctx context.Context, content string) (*Summary, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4o,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSummarization, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: no response from model", ErrSummarization)
	}

	raw := resp.Choices[0].Message.Content
	if err := validateSummaryJSON(raw); err != nil {
		return nil, err
	}

	var summary Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", ErrSummarization, err)
	}

	return &summary, nil
}

// validateSummaryJSON checks the model output against the summary schema
// before anything is persisted.
func validateSummaryJSON(raw string) error {
	summarySchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		summarySchema, summarySchemaErr = compiler.Compile(summarySchemaJSON)
	})
	if summarySchemaErr != nil {
		return fmt.Errorf("%w: failed to compile summary schema: %v", ErrSummarization, summarySchemaErr)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", ErrSummarization, err)
	}

	result := summarySchema.Validate(doc)
	if !result.IsValid() {
		var errorMessages []string
		for field, evalErr := range result.Errors {
			errorMessages = append(errorMessages, fmt.Sprintf("%s: %s", field, evalErr.Error()))
		}
		return fmt.Errorf("%w: schema validation failed: %s", ErrSummarization, strings.Join(errorMessages, "; "))
	}

	return nil
}
