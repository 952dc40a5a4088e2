// Package router classifies a prompt into one typed action using a
// JSON-mode model call.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/rxrag/internal/metrics"
	"github.com/raphaelgruber/rxrag/internal/models"
)

// ErrRouting is wrapped by every routing failure.
var ErrRouting = errors.New("routing failed")

// RoutingError reports an unusable classifier reply. Raw holds the reply
// text, empty when the classifier produced nothing.
type RoutingError struct {
	Raw string
	Err error
}

func (e *RoutingError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("routing failed: %v", e.Err)
	}
	return fmt.Sprintf("routing failed: %v (raw reply: %s)", e.Err, e.Raw)
}

// Unwrap exposes both ErrRouting and the underlying cause.
func (e *RoutingError) Unwrap() []error {
	return []error{ErrRouting, e.Err}
}

// Classifier generates a JSON object for a prompt.
type Classifier interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Router turns prompts into actions. It makes exactly one classifier call
// per prompt and never retries.
type Router struct {
	classifier       Classifier
	defaultPatientID string
	logger           *slog.Logger
	metrics          *metrics.Collector
}

// New creates a router. mc may be nil.
func New(classifier Classifier, defaultPatientID string, logger *slog.Logger, mc *metrics.Collector) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		classifier:       classifier,
		defaultPatientID: defaultPatientID,
		logger:           logger,
		metrics:          mc,
	}
}

// Route classifies prompt into a FetchRecords, LookupDrug or Unknown action.
func (r *Router) Route(ctx context.Context, prompt string) (models.Action, error) {
	start := time.Now()
	raw, err := r.classifier.GenerateJSON(ctx, BuildInstruction(prompt, r.defaultPatientID))
	r.metrics.RecordTiming(metrics.OpRoute, time.Since(start))
	if err != nil {
		return nil, &RoutingError{Err: fmt.Errorf("classifier: %w", err)}
	}
	if strings.TrimSpace(raw) == "" {
		return nil, &RoutingError{Err: errors.New("empty classifier reply")}
	}

	action, err := Parse(raw, r.defaultPatientID)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("prompt routed", "action", fmt.Sprintf("%T", action), "duration_ms", time.Since(start).Milliseconds())
	return action, nil
}

type reply struct {
	Name      string          `json:"name"`
	Function  string          `json:"function"`
	Arguments json.RawMessage `json:"arguments"`
}

type fetchArgs struct {
	Patient    string     `json:"patient"`
	Categories stringList `json:"categories"`
}

type drugArgs struct {
	DrugName string `json:"drug_name"`
}

// stringList accepts either a JSON array of strings or a single string.
// Non-string array items are skipped.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*l = stringList{one}
		return nil
	}
	var many []any
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("categories: expected string or list")
	}
	out := make(stringList, 0, len(many))
	for _, v := range many {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// Parse decodes a classifier reply into an action. The function name may be
// given as "name" or "function". An unrecognized or missing name yields
// Unknown; a missing patient yields defaultPatientID.
func Parse(raw, defaultPatientID string) (models.Action, error) {
	body := stripFences(raw)

	var rep reply
	if err := json.Unmarshal([]byte(body), &rep); err != nil {
		return nil, &RoutingError{Raw: raw, Err: fmt.Errorf("decode reply: %w", err)}
	}

	name := strings.TrimSpace(rep.Name)
	if name == "" {
		name = strings.TrimSpace(rep.Function)
	}

	args, err := unquoteArguments(rep.Arguments)
	if err != nil {
		return nil, &RoutingError{Raw: raw, Err: err}
	}

	switch name {
	case models.FunctionFetchRecords:
		var a fetchArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, &RoutingError{Raw: raw, Err: err}
		}
		patient := strings.TrimSpace(a.Patient)
		if patient == "" {
			patient = defaultPatientID
		}
		return models.FetchRecords{PatientID: patient, Categories: models.ParseCategories(a.Categories)}, nil

	case models.FunctionLookupDrug:
		var a drugArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, &RoutingError{Raw: raw, Err: err}
		}
		return models.LookupDrug{DrugName: strings.TrimSpace(a.DrugName)}, nil

	default:
		return models.Unknown{}, nil
	}
}

func decodeArgs(args []byte, v any) error {
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// unquoteArguments unwraps arguments sent as a JSON-encoded string, as some
// providers do for function calls.
func unquoteArguments(args json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return trimmed, nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return []byte(s), nil
}

// stripFences removes a surrounding markdown code fence.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
