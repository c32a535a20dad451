package debate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Plan schema limits.
const (
	maxSummaryLines    = 5
	maxTrimSignals     = 3
	minTrimEvidence    = 1
	maxTrimEvidence    = 3
	maxSectorFocus     = 3
	maxScenarioEntries = 3
)

// TrimSignal is one recommended position adjustment with citations.
type TrimSignal struct {
	Symbol      string   `json:"symbol"`
	Action      string   `json:"action"` // trim | add | hold
	Rationale   string   `json:"rationale"`
	EvidenceIDs []string `json:"evidence_ids"`
}

// Scenarios splits the outlook into base and risk paths.
type Scenarios struct {
	Base []string `json:"base"`
	Risk []string `json:"risk"`
}

// DebatePlan is the strict JSON contract both providers must satisfy.
type DebatePlan struct {
	ExecutiveSummary []string     `json:"executiveSummary"`
	TrimSignals      []TrimSignal `json:"trimSignals"`
	SectorFocus      []string     `json:"sectorFocus"`
	Scenarios        Scenarios    `json:"scenarios"`
}

// ParsePlan decodes and validates raw provider output against the
// schema and the context's evidence index. Any violation fails the
// whole plan; a provider with an invalid plan is treated as failed.
func ParsePlan(raw []byte, validIDs map[string]bool) (DebatePlan, error) {
	var p DebatePlan
	dec := json.NewDecoder(newTrimmedReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return DebatePlan{}, fmt.Errorf("plan schema: %w", err)
	}
	if err := p.validate(validIDs); err != nil {
		return DebatePlan{}, err
	}
	return p, nil
}

// newTrimmedReader strips the markdown code fences some models wrap
// around their JSON output.
func newTrimmedReader(raw []byte) io.Reader {
	s := strings.TrimSpace(string(raw))
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return bytes.NewReader([]byte(strings.TrimSpace(s)))
}

func (p *DebatePlan) validate(validIDs map[string]bool) error {
	if n := len(p.ExecutiveSummary); n == 0 || n > maxSummaryLines {
		return fmt.Errorf("executiveSummary must have 1..%d lines, got %d", maxSummaryLines, n)
	}
	if len(p.TrimSignals) > maxTrimSignals {
		return fmt.Errorf("trimSignals must have at most %d entries, got %d", maxTrimSignals, len(p.TrimSignals))
	}
	for i, ts := range p.TrimSignals {
		if ts.Symbol == "" {
			return fmt.Errorf("trimSignals[%d]: empty symbol", i)
		}
		switch ts.Action {
		case "trim", "add", "hold":
		default:
			return fmt.Errorf("trimSignals[%d]: invalid action %q", i, ts.Action)
		}
		if n := len(ts.EvidenceIDs); n < minTrimEvidence || n > maxTrimEvidence {
			return fmt.Errorf("trimSignals[%d]: need %d..%d evidence_ids, got %d", i, minTrimEvidence, maxTrimEvidence, n)
		}
		for _, id := range ts.EvidenceIDs {
			if !validIDs[id] {
				return fmt.Errorf("trimSignals[%d]: unknown evidence_id %q", i, id)
			}
		}
	}
	if len(p.SectorFocus) > maxSectorFocus {
		return fmt.Errorf("sectorFocus must have at most %d entries, got %d", maxSectorFocus, len(p.SectorFocus))
	}
	if len(p.Scenarios.Base) > maxScenarioEntries || len(p.Scenarios.Risk) > maxScenarioEntries {
		return fmt.Errorf("scenarios must have at most %d entries per path", maxScenarioEntries)
	}
	return nil
}
