package api

import (
	"context"
	"fmt"
	"net/http"
)

// Query types understood by the LLM service.
const (
	QueryTypeQuestion  = "question"
	QueryTypeRephrase  = "rephrase"
	QueryTypeSummarize = "summarize"
)

// LLMRequest is a query against a document's text.
type LLMRequest struct {
	Query     string `json:"query"`
	QueryType string `json:"query_type"`
	Prompt    string `json:"prompt"`
	Book      string `json:"book"`
}

type llmResponse struct {
	Response string `json:"response"`
}

// Ask sends a query to the LLM service and returns its answer.
func (c *Client) Ask(ctx context.Context, q LLMRequest) (string, error) {
	var lr llmResponse

	err := c.doJSON(ctx, &request{
		method: http.MethodPost,
		path:   "/llm/response",
		body:   q,
		auth:   true,
	}, &lr)
	if err != nil {
		return "", err
	}

	if lr.Response == "" {
		return "", fmt.Errorf("%w: empty LLM response", ErrInvalidResponse)
	}

	return lr.Response, nil
}
