// Package commitmsg asks a chat-completion endpoint for a commit message and
// cleans the reply.
package commitmsg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"convcommit/cli/internal/erruser"
	"convcommit/cli/internal/openai"
)

// ModelAuto selects the first model the endpoint lists. An empty model name
// means the same.
const ModelAuto = "auto"

// DefaultSpinnerText is shown while the completion request is in flight.
const DefaultSpinnerText = "Processing staged diff changes..."

// FailureHint is attached to completion errors.
const FailureHint = `This usually indicates that the input is too large
or that the max_tokens setting is too low.
Try reducing the input size (--max-bytes-in-diff) or increasing --max-tokens.
Remember you can always remove bigger changes from staging and evaluate them afterwards.`

// Progress is a cosmetic indicator shown around the blocking request.
type Progress interface {
	Start(text string)
	Stop()
}

// Request describes one generation.
type Request struct {
	Messages    []openai.Message
	Model       string // "" or ModelAuto selects the first listed model
	Temperature float64
	MaxTokens   int
	// Notify receives the "Selected model" line; nil discards it.
	Notify io.Writer
	// Progress is started just before the completion request; nil disables it.
	Progress    Progress
	SpinnerText string
}

// Result is a cleaned completion.
type Result struct {
	Message string
	Model   string
	Raw     string
}

// Suggest resolves the model, sends one completion request, and returns the
// cleaned first choice. Endpoint failures are returned with FailureHint
// attached; nothing partial is returned.
func Suggest(ctx context.Context, client *openai.Client, req Request) (*Result, error) {
	if client == nil {
		return nil, errors.New("commitmsg: nil client")
	}
	notify := req.Notify
	if notify == nil {
		notify = io.Discard
	}

	model := strings.TrimSpace(req.Model)
	if model == "" || strings.EqualFold(model, ModelAuto) {
		log.Debug().Msg("getting models list")
		id, err := client.FirstModel(ctx)
		if err != nil {
			return nil, erruser.WithHint("Could not select a model from the completion endpoint.", FailureHint, err)
		}
		model = id
	}
	fmt.Fprintf(notify, "Selected model: %s\n", model)

	if req.Progress != nil {
		text := req.SpinnerText
		if text == "" {
			text = DefaultSpinnerText
		}
		req.Progress.Start(text)
	}
	log.Debug().Str("model", model).Int("max_tokens", req.MaxTokens).Float64("temperature", req.Temperature).
		Msg("using chat completions API (no stream)")
	resp, err := client.CreateChatCompletion(ctx, openai.ChatRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if req.Progress != nil {
		req.Progress.Stop()
	}
	if err != nil {
		return nil, erruser.WithHint("AI responded with an error. :(", FailureHint, err)
	}
	raw, err := resp.Content()
	if err != nil {
		return nil, erruser.WithHint("AI responded with an error. :(", FailureHint, err)
	}
	log.Debug().Str("response", raw).Msg("completion")
	return &Result{Message: Clean(raw), Model: model, Raw: raw}, nil
}
