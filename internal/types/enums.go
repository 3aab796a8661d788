package types

import (
	"fmt"
	"strings"
)

// Phase represents the coarse-grained stage of a research project
type Phase string

const (
	// PhaseDiscovery collects candidate papers into the pool
	PhaseDiscovery Phase = "DISCOVERY"
	// PhaseAnalysis scores and decides on every pooled paper
	PhaseAnalysis Phase = "ANALYSIS"
	// PhaseIdeation turns presented papers into product ideas (optional)
	PhaseIdeation Phase = "IDEATION"
	// PhaseComplete is terminal
	PhaseComplete Phase = "COMPLETE"
)

// AllPhases returns all valid phase values in lifecycle order
func AllPhases() []Phase {
	return []Phase{PhaseDiscovery, PhaseAnalysis, PhaseIdeation, PhaseComplete}
}

// IsValid checks if a phase value is valid
func (p Phase) IsValid() bool {
	for _, valid := range AllPhases() {
		if p == valid {
			return true
		}
	}
	return false
}

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// Order returns the position of the phase in the lifecycle, or -1 if invalid
func (p Phase) Order() int {
	for i, valid := range AllPhases() {
		if p == valid {
			return i
		}
	}
	return -1
}

// ParsePhase parses a phase case-insensitively ("Discovery" and "DISCOVERY" are equal)
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid phase %q (valid: DISCOVERY, ANALYSIS, IDEATION, COMPLETE)", s)
	}
	return p, nil
}

// PaperStatus represents where a paper is in the analysis pipeline
type PaperStatus string

const (
	// StatusPending indicates the paper has not been analyzed yet
	StatusPending PaperStatus = "pending"
	// StatusAnalyzing marks a paper claimed by the current iteration
	StatusAnalyzing PaperStatus = "analyzing"
	// StatusPresented is terminal: the paper scored high enough to present
	StatusPresented PaperStatus = "presented"
	// StatusRejected is terminal: the paper did not make the cut
	StatusRejected PaperStatus = "rejected"
	// StatusInsightsExtracted is terminal: insights were kept, the paper was not presented
	StatusInsightsExtracted PaperStatus = "insights_extracted"
)

// legacyInsightsStatus is written by older prompts and read as StatusInsightsExtracted
const legacyInsightsStatus = "extract_insights"

// AllPaperStatuses returns all valid paper status values
func AllPaperStatuses() []PaperStatus {
	return []PaperStatus{
		StatusPending, StatusAnalyzing,
		StatusPresented, StatusRejected, StatusInsightsExtracted,
	}
}

// IsValid checks if a paper status value is valid
func (s PaperStatus) IsValid() bool {
	for _, valid := range AllPaperStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// String returns the string representation of the paper status
func (s PaperStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status is one of the Done-* states
func (s PaperStatus) IsTerminal() bool {
	switch s {
	case StatusPresented, StatusRejected, StatusInsightsExtracted:
		return true
	case StatusPending, StatusAnalyzing:
		return false
	}
	return false
}

// CanTransition reports whether a paper may move from s to next.
// analyzing -> pending is reserved for crash recovery; terminal states never change.
func (s PaperStatus) CanTransition(next PaperStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusAnalyzing || next.IsTerminal()
	case StatusAnalyzing:
		return next == StatusPending || next.IsTerminal()
	case StatusPresented, StatusRejected, StatusInsightsExtracted:
		return false
	}
	return false
}

// ParsePaperStatus parses a status, accepting the legacy "extract_insights" spelling
func ParsePaperStatus(s string) (PaperStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == legacyInsightsStatus {
		return StatusInsightsExtracted, nil
	}
	status := PaperStatus(normalized)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid paper status %q (valid: pending, analyzing, presented, rejected, insights_extracted)", s)
	}
	return status, nil
}

// Agent names a supported executor backend
type Agent string

const (
	AgentClaude Agent = "claude"
	AgentAmp    Agent = "amp"
	AgentCodex  Agent = "codex"
)

// AllAgents returns all supported agent names
func AllAgents() []Agent {
	return []Agent{AgentClaude, AgentAmp, AgentCodex}
}

// IsValid checks if an agent name is supported
func (a Agent) IsValid() bool {
	for _, valid := range AllAgents() {
		if a == valid {
			return true
		}
	}
	return false
}

// String returns the string representation of the agent
func (a Agent) String() string {
	return string(a)
}
