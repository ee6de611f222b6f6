package commitmsg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"convcommit/cli/internal/erruser"
	"convcommit/cli/internal/openai"
)

type fakeProgress struct {
	started, stopped int
	text             string
}

func (p *fakeProgress) Start(text string) { p.started++; p.text = text }
func (p *fakeProgress) Stop()             { p.stopped++ }

// newServer serves /models with the given ids and answers chat completions
// with reply. It records the model of the last completion request.
func newServer(t *testing.T, ids []string, reply string, lastModel *atomic.Value, modelCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			modelCalls.Add(1)
			data := make([]map[string]string, 0, len(ids))
			for _, id := range ids {
				data = append(data, map[string]string{"id": id})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		case "/chat/completions":
			var req openai.ChatRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			lastModel.Store(req.Model)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": reply}}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSuggest_nilClient_returnsError(t *testing.T) {
	t.Parallel()
	if _, err := Suggest(context.Background(), nil, Request{}); err == nil {
		t.Fatal("Suggest with nil client: want error, got nil")
	}
}

func TestSuggest_autoSelectsFirstModel(t *testing.T) {
	t.Parallel()
	var last atomic.Value
	var calls atomic.Int32
	srv := newServer(t, []string{"first-model", "second-model"}, "<think>hmm</think>\n\nfeat: add X", &last, &calls)

	var notify bytes.Buffer
	progress := &fakeProgress{}
	res, err := Suggest(context.Background(), openai.NewClient(srv.URL, "k", srv.Client()), Request{
		Messages: []openai.Message{{Role: "user", Content: "diff"}},
		Notify:   &notify,
		Progress: progress,
	})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if res.Message != "feat: add X" || res.Model != "first-model" {
		t.Errorf("Result = %+v", res)
	}
	if res.Raw != "<think>hmm</think>\n\nfeat: add X" {
		t.Errorf("Raw = %q", res.Raw)
	}
	if got := last.Load(); got != "first-model" {
		t.Errorf("completion model = %v", got)
	}
	if notify.String() != "Selected model: first-model\n" {
		t.Errorf("notify = %q", notify.String())
	}
	if progress.started != 1 || progress.stopped != 1 || progress.text != DefaultSpinnerText {
		t.Errorf("progress = %+v", progress)
	}
}

func TestSuggest_explicitModel_skipsListing(t *testing.T) {
	t.Parallel()
	var last atomic.Value
	var calls atomic.Int32
	srv := newServer(t, []string{"other"}, "fix: handle nil", &last, &calls)

	res, err := Suggest(context.Background(), openai.NewClient(srv.URL, "k", srv.Client()), Request{Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("model listing called %d times, want 0", calls.Load())
	}
	if res.Model != "gpt-4o-mini" || last.Load() != "gpt-4o-mini" {
		t.Errorf("model = %q / %v", res.Model, last.Load())
	}
}

func TestSuggest_autoKeyword(t *testing.T) {
	t.Parallel()
	var last atomic.Value
	var calls atomic.Int32
	srv := newServer(t, []string{"listed"}, "chore: x", &last, &calls)

	res, err := Suggest(context.Background(), openai.NewClient(srv.URL, "k", srv.Client()), Request{Model: "AUTO"})
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if res.Model != "listed" || calls.Load() != 1 {
		t.Errorf("model = %q, listing calls = %d", res.Model, calls.Load())
	}
}

func TestSuggest_endpointError_hasHintAndStopsProgress(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"context length exceeded","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	progress := &fakeProgress{}
	res, err := Suggest(context.Background(), openai.NewClient(srv.URL, "k", srv.Client()), Request{Model: "m", Progress: progress})
	if res != nil {
		t.Errorf("Result = %+v, want nil on failure", res)
	}
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("err = %v, want wrapped *openai.APIError", err)
	}
	if erruser.Hint(err) != FailureHint {
		t.Errorf("Hint = %q", erruser.Hint(err))
	}
	if progress.stopped != 1 {
		t.Errorf("progress stopped %d times, want 1", progress.stopped)
	}
}

func TestSuggest_emptyModelList(t *testing.T) {
	t.Parallel()
	var last atomic.Value
	var calls atomic.Int32
	srv := newServer(t, nil, "unused", &last, &calls)

	_, err := Suggest(context.Background(), openai.NewClient(srv.URL, "k", srv.Client()), Request{})
	if !errors.Is(err, openai.ErrNoModels) {
		t.Errorf("err = %v, want ErrNoModels", err)
	}
	if last.Load() != nil {
		t.Error("completion request sent despite model selection failure")
	}
}
