// Package service runs the question pipeline: route, retrieve, augment,
// generate and record.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/rxrag/internal/drug"
	"github.com/raphaelgruber/rxrag/internal/extract"
	"github.com/raphaelgruber/rxrag/internal/fhir"
	"github.com/raphaelgruber/rxrag/internal/llm"
	"github.com/raphaelgruber/rxrag/internal/memory"
	"github.com/raphaelgruber/rxrag/internal/metrics"
	"github.com/raphaelgruber/rxrag/internal/models"
)

// ErrGeneration wraps failures of the final answer call.
var ErrGeneration = errors.New("generation failed")

// Fixed replies that bypass generation.
const (
	NoDataFound      = "No data found."
	NoDrugName       = "No drug name provided."
	NotUnderstood    = "Sorry, I didn't understand your request."
	drugNotFoundText = "Sorry, I couldn't find info on '%s'."
)

// DefaultSession is used when a caller supplies no session id.
const DefaultSession = "default"

const slowRequest = 10 * time.Second

// Router turns a prompt into an action.
type Router interface {
	Route(ctx context.Context, prompt string) (models.Action, error)
}

// Generator produces the final answer from a prompt and retrieved context.
type Generator interface {
	Answer(ctx context.Context, req llm.AnswerRequest) (string, error)
}

// Matcher resolves medications to catalog entries, returning an error
// wrapping drug.ErrNoMatch when nothing matches.
type Matcher interface {
	MatchMedication(ctx context.Context, med *fhir.Medication) (*models.CatalogEntry, error)
	MatchName(ctx context.Context, name string) (*models.CatalogEntry, error)
}

// Knowledge returns formatted knowledge text for a catalog slug.
type Knowledge interface {
	Get(ctx context.Context, slug string) (string, error)
}

// Deps are the collaborators of an Assistant. Metrics, Logger and
// ExtractNames are optional.
type Deps struct {
	Router       Router
	Records      fhir.RecordSource
	Matcher      Matcher
	Knowledge    Knowledge
	Generator    Generator
	Sessions     *memory.Registry
	ExtractNames DrugNameExtractor
	Metrics      *metrics.Collector
	Logger       *slog.Logger
}

// Assistant answers patient questions. Safe for concurrent use; each
// session has its own memory.
type Assistant struct {
	router       Router
	records      fhir.RecordSource
	matcher      Matcher
	knowledge    Knowledge
	generator    Generator
	sessions     *memory.Registry
	extractNames DrugNameExtractor
	metrics      *metrics.Collector
	logger       *slog.Logger
}

// NewAssistant creates an assistant from its collaborators.
func NewAssistant(d Deps) *Assistant {
	a := &Assistant{
		router:       d.Router,
		records:      d.Records,
		matcher:      d.Matcher,
		knowledge:    d.Knowledge,
		generator:    d.Generator,
		sessions:     d.Sessions,
		extractNames: d.ExtractNames,
		metrics:      d.Metrics,
		logger:       d.Logger,
	}
	if a.extractNames == nil {
		a.extractNames = CapitalizedTokens
	}
	if a.sessions == nil {
		a.sessions = memory.NewRegistry(0, 0, d.Logger)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Infer runs the full pipeline for one prompt in the given session.
// Any failure aborts the request and leaves the session memory untouched.
func (a *Assistant) Infer(ctx context.Context, sessionID, prompt string) (models.Result, error) {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	start := time.Now()
	a.metrics.Incr(metrics.CountRequests)

	res, err := a.infer(ctx, a.sessions.Get(sessionID), prompt)

	elapsed := time.Since(start)
	a.metrics.RecordTiming(metrics.OpInference, elapsed)
	if err != nil {
		a.metrics.Incr(metrics.CountFailures)
		a.logger.Error("inference failed", "session", sessionID, "error", err)
		return models.Result{}, err
	}
	if elapsed > slowRequest {
		a.logger.Warn("slow inference", "session", sessionID, "duration_ms", elapsed.Milliseconds())
	}
	return res, nil
}

// ResetSession clears the memory of a session. Reports whether it existed.
func (a *Assistant) ResetSession(sessionID string) bool {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	return a.sessions.Reset(sessionID)
}

// Session describes a live session. Reports false if it does not exist.
func (a *Assistant) Session(sessionID string) (models.SessionResponse, bool) {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	mem, ok := a.sessions.Lookup(sessionID)
	if !ok {
		return models.SessionResponse{}, false
	}
	last := mem.Last()
	return models.SessionResponse{
		SessionID:    sessionID,
		Mentioned:    mem.Mentioned(),
		LastPrompt:   last.Prompt,
		LastResponse: last.Response,
	}, true
}

// DropSession forgets a session entirely. Reports whether it existed.
func (a *Assistant) DropSession(sessionID string) bool {
	return a.sessions.Drop(sessionID)
}

// Sessions returns the number of live sessions.
func (a *Assistant) Sessions() int {
	return a.sessions.Len()
}

func (a *Assistant) infer(ctx context.Context, mem *memory.Memory, prompt string) (models.Result, error) {
	action, err := a.router.Route(ctx, prompt)
	if err != nil {
		return models.Result{}, err
	}

	switch act := action.(type) {
	case models.FetchRecords:
		return a.fetchRecords(ctx, mem, prompt, act)
	case models.LookupDrug:
		return a.lookupDrug(ctx, mem, prompt, act)
	case models.Unknown:
		return models.Result{Source: models.SourceNone, Response: NotUnderstood}, nil
	default:
		return models.Result{}, fmt.Errorf("unhandled action %T", action)
	}
}

func (a *Assistant) fetchRecords(ctx context.Context, mem *memory.Memory, prompt string, act models.FetchRecords) (models.Result, error) {
	start := time.Now()
	bundle, err := a.records.LoadBundle(ctx, act.PatientID)
	a.metrics.RecordTiming(metrics.OpRecordLoad, time.Since(start))
	if err != nil {
		return models.Result{}, err
	}

	var parts []string
	for _, c := range act.Categories {
		text, err := extract.Summarize(bundle, c)
		if err != nil {
			return models.Result{}, err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	retrieved := strings.Join(parts, "\n\n")
	if retrieved == "" {
		retrieved = NoDataFound
	}

	var surfaced []string
	if IsMedicationRelated(prompt) {
		var section string
		section, surfaced, err = a.drugSection(ctx, mem, prompt, bundle)
		if err != nil {
			return models.Result{}, err
		}
		if section != "" {
			retrieved += "\n\n" + section
		}
	}

	a.logger.Debug("records retrieved",
		"patient", act.PatientID,
		"categories", len(act.Categories),
		"context_bytes", len(retrieved),
		"drugs", len(surfaced))

	answer, err := a.generate(ctx, mem, prompt, retrieved)
	if err != nil {
		return models.Result{}, err
	}
	for _, name := range surfaced {
		mem.Remember(name)
	}
	mem.Update(prompt, answer)
	return models.Result{Source: models.SourceFHIR, Response: answer}, nil
}

// drugSection builds knowledge blocks for the bundle's medications that the
// prompt names and the session has not seen yet. It returns the section
// text and the names it surfaced.
func (a *Assistant) drugSection(ctx context.Context, mem *memory.Memory, prompt string, bundle *fhir.Bundle) (string, []string, error) {
	candidates := candidateSet(a.extractNames(prompt))
	if len(candidates) == 0 {
		return "", nil, nil
	}

	var blocks, surfaced []string
	seen := make(map[string]bool)
	for _, med := range bundle.Medications() {
		entry, err := a.matcher.MatchMedication(ctx, med)
		if errors.Is(err, drug.ErrNoMatch) {
			continue
		}
		if err != nil {
			return "", nil, err
		}

		key := strings.ToLower(entry.Name)
		if !candidates[key] || seen[key] || mem.AlreadyMentioned(entry.Name) {
			continue
		}
		text, err := a.knowledge.Get(ctx, entry.Slug)
		if err != nil {
			return "", nil, err
		}
		seen[key] = true
		blocks = append(blocks, drug.Block(entry.Name, text))
		surfaced = append(surfaced, entry.Name)
	}
	return drug.Section(blocks), surfaced, nil
}

func (a *Assistant) lookupDrug(ctx context.Context, mem *memory.Memory, prompt string, act models.LookupDrug) (models.Result, error) {
	name := strings.TrimSpace(act.DrugName)
	if name == "" {
		return models.Result{Source: models.SourceDrug, Response: NoDrugName}, nil
	}

	entry, err := a.matcher.MatchName(ctx, name)
	if errors.Is(err, drug.ErrNoMatch) {
		return models.Result{Source: models.SourceDrug, Response: fmt.Sprintf(drugNotFoundText, name)}, nil
	}
	if err != nil {
		return models.Result{}, err
	}

	text, err := a.knowledge.Get(ctx, entry.Slug)
	if err != nil {
		return models.Result{}, err
	}

	answer, err := a.generate(ctx, mem, prompt, drug.Block(entry.Name, text))
	if err != nil {
		return models.Result{}, err
	}
	mem.Update(prompt, answer)
	return models.Result{Source: models.SourceDrug, Response: answer}, nil
}

func (a *Assistant) generate(ctx context.Context, mem *memory.Memory, prompt, retrieved string) (string, error) {
	answer, err := a.generator.Answer(ctx, llm.AnswerRequest{
		Prompt:    prompt,
		Context:   retrieved,
		Introduce: mem.Last() == memory.Exchange{},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return answer, nil
}
