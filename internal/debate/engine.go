package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawpanic/intelrun/internal/cache"
)

const (
	resultTTL       = 21600 * time.Second
	cooldownTTL     = 600 * time.Second
	lastKey         = "debate_last"
	refereeMargin   = 15.0
	defaultTimeout  = 8 * time.Second
	systemPrompt    = "You are a portfolio strategist. Respond ONLY with a JSON object matching the requested schema. Cite evidence by id."
)

// ProviderOutcome records one provider's run.
type ProviderOutcome struct {
	Provider string     `json:"provider"`
	Status   string     `json:"status"` // ok | fail | skipped
	Reason   string     `json:"reason,omitempty"`
	Score    float64    `json:"score"`
	Plan     *DebatePlan `json:"plan,omitempty"`
}

// Judgment is the referee's structured verdict.
type Judgment struct {
	Mode     string `json:"mode"` // judge | analyst
	Winner   string `json:"winner,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Override bool   `json:"override"`
}

// Result is the full cached debate outcome.
type Result struct {
	ContextHash string            `json:"context_hash"`
	Outcomes    []ProviderOutcome `json:"outcomes"`
	Winner      string            `json:"winner,omitempty"`
	Outcome     Outcome           `json:"outcome"`
	Judgment    *Judgment         `json:"judgment,omitempty"`
	Plan        *DebatePlan       `json:"plan,omitempty"`
	CreatedAt   time.Time         `json:"created_at_utc"`
	FromCache   bool              `json:"from_cache"`
	Cooldown    bool              `json:"cooldown,omitempty"`
}

// Engine runs and caches debates.
type Engine struct {
	a, b    Provider
	referee Provider // optional
	kv      *cache.KV
	timeout time.Duration
	budget  time.Duration

	mu       sync.Mutex
	inflight map[string]chan struct{}
	results  map[string]*Result

	now func() time.Time
	log zerolog.Logger
}

func NewEngine(a, b, referee Provider, kv *cache.KV, providerTimeout, budget time.Duration, log zerolog.Logger) *Engine {
	if providerTimeout <= 0 {
		providerTimeout = defaultTimeout
	}
	if budget <= 0 {
		budget = 10 * time.Second
	}
	return &Engine{
		a: a, b: b, referee: referee,
		kv:       kv,
		timeout:  providerTimeout,
		budget:   budget,
		inflight: make(map[string]chan struct{}),
		results:  make(map[string]*Result),
		now:      time.Now,
		log:      log.With().Str("component", "debate").Logger(),
	}
}

// Run executes a debate for the context, serving from cache when
// possible. Concurrent callers for the same key wait on one in-flight
// computation. force bypasses the cooldown but not the content cache.
func (e *Engine) Run(ctx context.Context, dctx *Context, force bool) (*Result, error) {
	key := dctx.CacheKey()

	var cached Result
	if e.kv.GetJSON(ctx, key, &cached) {
		cached.FromCache = true
		return &cached, nil
	}
	if !force {
		var gate string
		if e.kv.GetJSON(ctx, cooldownKey(dctx), &gate) {
			var last Result
			if e.kv.GetJSON(ctx, lastKey, &last) {
				last.FromCache = true
				last.Cooldown = true
				return &last, nil
			}
			return &Result{Outcome: OutcomeFail, Cooldown: true, CreatedAt: e.now()}, nil
		}
	}

	// Single-flight: the first caller computes, the rest wait.
	e.mu.Lock()
	if ch, ok := e.inflight[key]; ok {
		e.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		e.mu.Lock()
		r := e.results[key]
		e.mu.Unlock()
		if r != nil {
			return r, nil
		}
		return nil, fmt.Errorf("debate: in-flight computation failed")
	}
	ch := make(chan struct{})
	e.inflight[key] = ch
	e.mu.Unlock()

	result, err := e.compute(ctx, dctx)

	e.mu.Lock()
	delete(e.inflight, key)
	if err == nil {
		e.results[key] = result
	}
	close(ch)
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	_ = e.kv.SetJSON(ctx, key, result, resultTTL)
	_ = e.kv.SetJSON(ctx, lastKey, result, resultTTL)
	_ = e.kv.SetJSON(ctx, cooldownKey(dctx), "1", cooldownTTL)
	return result, nil
}

func cooldownKey(dctx *Context) string {
	return strings.Join([]string{"debate_cooldown", dctx.Base, dctx.Window, dctx.Horizon}, ":")
}

func (e *Engine) compute(ctx context.Context, dctx *Context) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.budget)
	defer cancel()

	prompt, err := renderPrompt(dctx)
	if err != nil {
		return nil, err
	}
	validIDs := dctx.ValidEvidenceIDs()

	outA := e.callProvider(ctx, e.a, prompt, validIDs, dctx)
	outB := e.callProvider(ctx, e.b, prompt, validIDs, dctx)

	// Both calls run concurrently.
	var wg sync.WaitGroup
	results := make([]ProviderOutcome, 2)
	for i, call := range []func() ProviderOutcome{outA, outB} {
		wg.Add(1)
		go func(idx int, f func() ProviderOutcome) {
			defer wg.Done()
			results[idx] = f()
		}(i, call)
	}
	wg.Wait()

	a, b := results[0], results[1]
	winnerIsA, outcome := Compare(a.Score, b.Score, a.Status == "ok", b.Status == "ok")

	r := &Result{
		ContextHash: dctx.Hash,
		Outcomes:    []ProviderOutcome{a, b},
		Outcome:     outcome,
		CreatedAt:   e.now(),
	}
	switch outcome {
	case OutcomeFail:
		// structured failure, still a valid response
	default:
		winner := b
		if winnerIsA {
			winner = a
		}
		r.Winner = winner.Provider
		r.Plan = winner.Plan
	}

	e.runReferee(ctx, r, a, b)
	return r, nil
}

// callProvider returns a closure so both transports start together.
func (e *Engine) callProvider(ctx context.Context, p Provider, prompt string, validIDs map[string]bool, dctx *Context) func() ProviderOutcome {
	return func() ProviderOutcome {
		if p == nil {
			return ProviderOutcome{Provider: "none", Status: "skipped", Reason: "not configured"}
		}
		out := ProviderOutcome{Provider: p.Name()}
		cctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		text, err := p.Generate(cctx, systemPrompt, prompt)
		if err != nil {
			out.Status = "fail"
			out.Reason = err.Error()
			return out
		}
		plan, err := ParsePlan([]byte(text), validIDs)
		if err != nil {
			out.Status = "fail"
			out.Reason = err.Error()
			return out
		}
		out.Status = "ok"
		out.Plan = &plan
		out.Score = ScorePlan(&plan, dctx)
		return out
	}
}

// runReferee invokes the optional third model: judge mode when the two
// scores disagree widely, analyst mode when only one provider
// delivered. The referee can override the winner but never the plan
// content.
func (e *Engine) runReferee(ctx context.Context, r *Result, a, b ProviderOutcome) {
	if e.referee == nil {
		return
	}
	var mode string
	switch {
	case r.Outcome == OutcomeSolo:
		mode = "analyst"
	case a.Status == "ok" && b.Status == "ok" && abs(a.Score-b.Score) >= refereeMargin:
		mode = "judge"
	default:
		return
	}

	prompt := refereePrompt(mode, a, b)
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	text, err := e.referee.Generate(cctx, systemPrompt, prompt)
	if err != nil {
		e.log.Debug().Err(err).Msg("referee skipped")
		return
	}
	var j Judgment
	if err := json.NewDecoder(newTrimmedReader([]byte(text))).Decode(&j); err != nil {
		return
	}
	j.Mode = mode
	r.Judgment = &j
	if j.Override && j.Winner != "" && j.Winner != r.Winner {
		for _, out := range r.Outcomes {
			if out.Provider == j.Winner && out.Status == "ok" {
				r.Winner = out.Provider
				r.Plan = out.Plan
				break
			}
		}
	}
}

func refereePrompt(mode string, a, b ProviderOutcome) string {
	raw, _ := json.Marshal(map[string]interface{}{
		"mode":    mode,
		"plans":   []ProviderOutcome{a, b},
		"request": "Return JSON {\"winner\":\"<provider>\",\"reason\":\"...\",\"override\":bool}",
	})
	return string(raw)
}

// renderPrompt serializes the context plus the schema contract.
func renderPrompt(dctx *Context) (string, error) {
	raw, err := json.Marshal(dctx)
	if err != nil {
		return "", fmt.Errorf("render context: %w", err)
	}
	var sb strings.Builder
	sb.WriteString("Context:\n")
	sb.Write(raw)
	sb.WriteString("\n\nProduce a JSON plan with fields: executiveSummary (max 5 strings), ")
	sb.WriteString("trimSignals (max 3, each {symbol, action: trim|add|hold, rationale, evidence_ids: 1-3 ids}), ")
	sb.WriteString("sectorFocus (max 3 strings), scenarios {base: max 3 strings, risk: max 3 strings}. ")
	sb.WriteString("Respect the hold state and turnover cap in constraints.")
	return sb.String(), nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
