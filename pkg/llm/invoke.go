package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/openai/openai-go"
)

// InvokeResponse is the spec-shaped result of one LLM call: raw
// assistant content plus token usage.
type InvokeResponse struct {
	Content string
	Tokens  Usage
}

// InvokeErrorKind classifies why Invoke failed, mirroring the
// exchange package's tagged-Kind convention rather than raw error
// strings the caller would have to sniff.
type InvokeErrorKind string

const (
	InvokeErrTransient InvokeErrorKind = "Transient" // network/5xx, already retried and exhausted
	InvokeErrClient    InvokeErrorKind = "Client"    // 4xx; only 408/429 are retried first
	InvokeErrTimeout   InvokeErrorKind = "Timeout"
)

// InvokeError wraps a failed Invoke call with its classification.
type InvokeError struct {
	Kind InvokeErrorKind
	Err  error
}

func (e *InvokeError) Error() string { return fmt.Sprintf("llm invoke: %s: %v", e.Kind, e.Err) }
func (e *InvokeError) Unwrap() error { return e.Err }

// Invoke is the LLM Client's (C7) consumer-facing call
// shape: a single chat completion under an enforced per-call timeout,
// with the client's own exponential-backoff retry already applied to
// transient failures. tokenBudget caps the response; 0 leaves the
// client/model default in place.
func (c *Client) Invoke(ctx context.Context, modelIdent, systemMessage, userMessage string, tokenBudget int, timeout time.Duration) (*InvokeResponse, error) {
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := &ChatRequest{
		Model: modelIdent,
		Messages: []Message{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: userMessage},
		},
	}
	if tokenBudget > 0 {
		req.MaxCompletionTokens = &tokenBudget
	}

	resp, err := c.Chat(callCtx, req)
	if err != nil {
		return nil, classifyInvokeError(err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	return &InvokeResponse{Content: content, Tokens: resp.Usage}, nil
}

func classifyInvokeError(err error) *InvokeError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &InvokeError{Kind: InvokeErrTimeout, Err: err}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return &InvokeError{Kind: InvokeErrClient, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.As(err, new(*net.OpError)) {
		return &InvokeError{Kind: InvokeErrTransient, Err: err}
	}
	if errors.As(err, &apiErr) && apiErr.StatusCode >= http.StatusInternalServerError {
		return &InvokeError{Kind: InvokeErrTransient, Err: err}
	}
	return &InvokeError{Kind: InvokeErrTransient, Err: err}
}
