// Package state owns rrd.json: loading, validation, atomic persistence,
// crash recovery, snapshots and reset.
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/daydemir/research-ralph/internal/types"
)

// DefaultIdeationArtifact is the file the ideation phase must produce
const DefaultIdeationArtifact = "product-ideas.json"

// State is the research project document. Only the fields the loop inspects
// are typed; every other member, at every level, round-trips untouched.
type State struct {
	Project      string
	Requirements Requirements
	Phase        types.Phase
	CreatedAt    string
	PapersPool   []Paper
	Insights     json.RawMessage // opaque array, nil when absent
	Statistics   Statistics
	Timing       Timing
	Handoff      *Handoff

	extra fields
	keys  []string
}

// Requirements holds the research goal. Only target_papers is typed.
type Requirements struct {
	TargetPapers int

	extra fields
	keys  []string
}

// Paper is one entry of papers_pool
type Paper struct {
	ID       string
	Status   types.PaperStatus
	Priority *int
	Score    *int

	extra fields
	keys  []string
}

// Statistics are the counters stored in the document. They are derived
// from paper statuses; see State.ReconcileStatistics.
type Statistics struct {
	TotalDiscovered        int
	TotalAnalyzed          int
	TotalPresented         int
	TotalRejected          int
	TotalInsightsExtracted int

	extra fields
	keys  []string
}

// PhaseTiming records when a phase ran. Timestamps are kept as the strings
// found on disk so foreign formats survive a round trip.
type PhaseTiming struct {
	StartedAt       string
	EndedAt         string
	DurationSeconds *int64

	// analysis only
	PapersAnalyzed     *int
	AvgSecondsPerPaper *float64

	extra fields
	keys  []string
}

// Timing holds per-phase timing metadata
type Timing struct {
	ResearchStartedAt string
	Discovery         PhaseTiming
	Analysis          PhaseTiming
	Ideation          PhaseTiming
	Complete          PhaseTiming

	extra fields
	keys  []string
}

// Handoff configures what happens after analysis
type Handoff struct {
	ProductIdeation *ProductIdeation

	extra fields
	keys  []string
}

// ProductIdeation controls the optional ideation phase
type ProductIdeation struct {
	Enabled        *bool
	OutputFilename string

	extra fields
	keys  []string
}

// New creates a fresh document in DISCOVERY
func New(project string, targetPapers int, now time.Time) *State {
	enabled := true
	return &State{
		Project:      project,
		Requirements: Requirements{TargetPapers: targetPapers},
		Phase:        types.PhaseDiscovery,
		CreatedAt:    FormatTimestamp(now),
		PapersPool:   []Paper{},
		Insights:     json.RawMessage("[]"),
		Handoff: &Handoff{ProductIdeation: &ProductIdeation{
			Enabled:        &enabled,
			OutputFilename: DefaultIdeationArtifact,
		}},
	}
}

// SetField sets an untyped root member, such as "description"
func (s *State) SetField(key string, v any) error {
	if s.extra == nil {
		s.extra = fields{}
	}
	return s.extra.put(key, v)
}

// Field returns the raw value of an untyped root member
func (s *State) Field(key string) (json.RawMessage, bool) {
	raw, ok := s.extra[key]
	return raw, ok
}

// Set sets an untyped requirements member, such as "focus_area"
func (r *Requirements) Set(key string, v any) error {
	if r.extra == nil {
		r.extra = fields{}
	}
	return r.extra.put(key, v)
}

// Field returns the raw value of an untyped paper member
func (p Paper) Field(key string) (json.RawMessage, bool) {
	raw, ok := p.extra[key]
	return raw, ok
}

// IdeationEnabled reports whether ANALYSIS hands off to IDEATION. Defaults to true.
func (s *State) IdeationEnabled() bool {
	if s.Handoff == nil || s.Handoff.ProductIdeation == nil || s.Handoff.ProductIdeation.Enabled == nil {
		return true
	}
	return *s.Handoff.ProductIdeation.Enabled
}

// IdeationArtifact is the file name whose existence completes IDEATION
func (s *State) IdeationArtifact() string {
	if s.Handoff == nil || s.Handoff.ProductIdeation == nil || s.Handoff.ProductIdeation.OutputFilename == "" {
		return DefaultIdeationArtifact
	}
	return s.Handoff.ProductIdeation.OutputFilename
}

// For returns the timing record of a phase
func (t *Timing) For(p types.Phase) *PhaseTiming {
	switch p {
	case types.PhaseDiscovery:
		return &t.Discovery
	case types.PhaseAnalysis:
		return &t.Analysis
	case types.PhaseIdeation:
		return &t.Ideation
	case types.PhaseComplete:
		return &t.Complete
	}
	return nil
}

// Clear drops every typed timing value, keeping unknown members
func (t *Timing) Clear() {
	*t = Timing{
		Discovery: PhaseTiming{extra: t.Discovery.extra, keys: t.Discovery.keys},
		Analysis:  PhaseTiming{extra: t.Analysis.extra, keys: t.Analysis.keys},
		Ideation:  PhaseTiming{extra: t.Ideation.extra, keys: t.Ideation.keys},
		Complete:  PhaseTiming{extra: t.Complete.extra, keys: t.Complete.keys},
		extra:     t.extra,
		keys:      t.keys,
	}
}

// FormatTimestamp is the timestamp format written by the controller
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTimestamp accepts RFC3339 and the zone-less ISO form older tools wrote
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// UnmarshalJSON implements json.Unmarshaler
func (s *State) UnmarshalJSON(data []byte) error {
	f, keys, err := decodeObject(data)
	if err != nil {
		return err
	}
	*s = State{}

	if _, err := take(f, "project", &s.Project); err != nil {
		return err
	}
	if _, err := take(f, "requirements", &s.Requirements); err != nil {
		return err
	}

	var phase string
	present, err := take(f, "phase", &phase)
	if err != nil {
		return err
	}
	s.Phase = types.PhaseDiscovery
	if present {
		p, err := types.ParsePhase(phase)
		if err != nil {
			return err
		}
		s.Phase = p
	}

	if _, err := take(f, "created_at", &s.CreatedAt); err != nil {
		return err
	}
	if _, err := take(f, "papers_pool", &s.PapersPool); err != nil {
		return err
	}
	if raw, ok := f["insights"]; ok {
		s.Insights = raw
		delete(f, "insights")
	}
	if _, err := take(f, "statistics", &s.Statistics); err != nil {
		return err
	}
	if _, err := take(f, "timing", &s.Timing); err != nil {
		return err
	}
	if _, err := take(f, "handoff", &s.Handoff); err != nil {
		return err
	}

	s.extra, s.keys = f, keys
	return nil
}

// MarshalJSON implements json.Marshaler
func (s State) MarshalJSON() ([]byte, error) {
	out := s.extra.clone()
	pool := s.PapersPool
	if pool == nil {
		pool = []Paper{}
	}
	if err := out.putAll(
		"project", s.Project,
		"requirements", s.Requirements,
		"phase", s.Phase,
		"papers_pool", pool,
		"statistics", s.Statistics,
		"timing", s.Timing,
	); err != nil {
		return nil, err
	}
	if s.CreatedAt != "" {
		if err := out.put("created_at", s.CreatedAt); err != nil {
			return nil, err
		}
	}
	if s.Insights != nil {
		out["insights"] = s.Insights
	}
	if s.Handoff != nil {
		if err := out.put("handoff", s.Handoff); err != nil {
			return nil, err
		}
	}
	return out.encode(s.keys)
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Requirements) UnmarshalJSON(data []byte) error {
	f, keys, err := decodeObject(data)
	if err != nil {
		return err
	}
	*r = Requirements{}
	if _, err := take(f, "target_papers", &r.TargetPapers); err != nil {
		return err
	}
	r.extra, r.keys = f, keys
	return nil
}

// MarshalJSON implements json.Marshaler
func (r Requirements) MarshalJSON() ([]byte, error) {
	out := r.extra.clone()
	if err := out.put("target_papers", r.TargetPapers); err != nil {
		return nil, err
	}
	return out.encode(r.keys)
}

// UnmarshalJSON implements json.Unmarshaler
func (p *Paper) UnmarshalJSON(data []byte) error {
	f, keys, err := decodeObject(data)
	if err != nil {
		return err
	}
	*p = Paper{}

	if _, err := take(f, "id", &p.ID); err != nil {
		return err
	}
	var status string
	present, err := take(f, "status", &status)
	if err != nil {
		return err
	}
	p.Status = types.StatusPending
	if present {
		st, err := types.ParsePaperStatus(status)
		if err != nil {
			return fmt.Errorf("paper %q: %w", p.ID, err)
		}
		p.Status = st
	}
	if _, err := take(f, "priority", &p.Priority); err != nil {
		return err
	}
	if _, err := take(f, "score", &p.Score); err != nil {
		return err
	}
	p.extra, p.keys = f, keys
	return nil
}

// MarshalJSON implements json.Marshaler
func (p Paper) MarshalJSON() ([]byte, error) {
	out := p.extra.clone()
	if err := out.putAll("id", p.ID, "status", p.Status); err != nil {
		return nil, err
	}
	if p.Priority != nil {
		if err := out.put("priority", *p.Priority); err != nil {
			return nil, err
		}
	}
	if p.Score != nil {
		if err := out.put("score", *p.Score); err != nil {
			return nil, err
		}
	}
	return out.encode(p.keys)
}

// UnmarshalJSON implements json.Unmarshaler
func (st *Statistics) UnmarshalJSON(data []byte) error {
	f, keys, err := decodeObject(data)
	if err != nil {
		return err
	}
	*st = Statistics{}
	for key, dst := range st.counters() {
		if _, err := take(f, key, dst); err != nil {
			return err
		}
	}
	st.extra, st.keys = f, keys
	return nil
}

// MarshalJSON implements json.Marshaler
func (st Statistics) MarshalJSON() ([]byte, error) {
	out := st.extra.clone()
	for key, v := range st.counters() {
		if err := out.put(key, *v); err != nil {
			return nil, err
		}
	}
	return out.encode(st.keys)
}

func (st *Statistics) counters() map[string]*int {
	return map[string]*int{
		"total_discovered":         &st.TotalDiscovered,
		"total_analyzed":           &st.TotalAnalyzed,
		"total_presented":          &st.TotalPresented,
		"total_rejected":           &st.TotalRejected,
		"total_insights_extracted": &st.TotalInsightsExtracted,
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (pt *PhaseTiming) UnmarshalJSON(data []byte) error {
	f, keys, err := decodeObject(data)
	if err != nil {
		return err
	}
	*pt = PhaseTiming{}

	var started, ended *string
	if _, err := take(f, "started_at", &started); err != nil {
		return err
	}
	if _, err := take(f, "ended_at", &ended); err != nil {
		return err
	}
	if started != nil {
		pt.StartedAt = *started
	}
	if ended != nil {
		pt.EndedAt = *ended
	}
	if _, err := take(f, "duration_seconds", &pt.DurationSeconds); err != nil {
		return err
	}
	if _, err := take(f, "papers_analyzed", &pt.PapersAnalyzed); err != nil {
		return err
	}
	if _, err := take(f, "avg_seconds_per_paper", &pt.AvgSecondsPerPaper); err != nil {
		return err
	}
	pt.extra, pt.keys = f, keys
	return nil
}

// MarshalJSON implements json.Marshaler
func (pt PhaseTiming) MarshalJSON() ([]byte, error) {
	out := pt.extra.clone()
	if err := out.putAll(
		"started_at", optionalString(pt.StartedAt),
		"ended_at", optionalString(pt.EndedAt),
		"duration_seconds", pt.DurationSeconds,
	); err != nil {
		return nil, err
	}
	if pt.PapersAnalyzed != nil {
		if err := out.put("papers_analyzed", *pt.PapersAnalyzed); err != nil {
			return nil, err
		}
	}
	if pt.AvgSecondsPerPaper != nil {
		if err := out.put("avg_seconds_per_paper", *pt.AvgSecondsPerPaper); err != nil {
			return nil, err
		}
	}
	return out.encode(pt.keys)
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timing) UnmarshalJSON(data []byte) error {
	f, keys, err := decodeObject(data)
	if err != nil {
		return err
	}
	*t = Timing{}

	var started *string
	if _, err := take(f, "research_started_at", &started); err != nil {
		return err
	}
	if started != nil {
		t.ResearchStartedAt = *started
	}
	for key, dst := range t.phases() {
		if _, err := take(f, key, dst); err != nil {
			return err
		}
	}
	t.extra, t.keys = f, keys
	return nil
}

// MarshalJSON implements json.Marshaler
func (t Timing) MarshalJSON() ([]byte, error) {
	out := t.extra.clone()
	if err := out.put("research_started_at", optionalString(t.ResearchStartedAt)); err != nil {
		return nil, err
	}
	for key, v := range t.phases() {
		if err := out.put(key, *v); err != nil {
			return nil, err
		}
	}
	return out.encode(t.keys)
}

func (t *Timing) phases() map[string]*PhaseTiming {
	return map[string]*PhaseTiming{
		"discovery": &t.Discovery,
		"analysis":  &t.Analysis,
		"ideation":  &t.Ideation,
		"complete":  &t.Complete,
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (h *Handoff) UnmarshalJSON(data []byte) error {
	f, keys, err := decodeObject(data)
	if err != nil {
		return err
	}
	*h = Handoff{}
	if _, err := take(f, "product_ideation", &h.ProductIdeation); err != nil {
		return err
	}
	h.extra, h.keys = f, keys
	return nil
}

// MarshalJSON implements json.Marshaler
func (h Handoff) MarshalJSON() ([]byte, error) {
	out := h.extra.clone()
	if h.ProductIdeation != nil {
		if err := out.put("product_ideation", h.ProductIdeation); err != nil {
			return nil, err
		}
	}
	return out.encode(h.keys)
}

// UnmarshalJSON implements json.Unmarshaler
func (pi *ProductIdeation) UnmarshalJSON(data []byte) error {
	f, keys, err := decodeObject(data)
	if err != nil {
		return err
	}
	*pi = ProductIdeation{}
	if _, err := take(f, "enabled", &pi.Enabled); err != nil {
		return err
	}
	if _, err := take(f, "output_filename", &pi.OutputFilename); err != nil {
		return err
	}
	pi.extra, pi.keys = f, keys
	return nil
}

// MarshalJSON implements json.Marshaler
func (pi ProductIdeation) MarshalJSON() ([]byte, error) {
	out := pi.extra.clone()
	if pi.Enabled != nil {
		if err := out.put("enabled", *pi.Enabled); err != nil {
			return nil, err
		}
	}
	if pi.OutputFilename != "" {
		if err := out.put("output_filename", pi.OutputFilename); err != nil {
			return nil, err
		}
	}
	return out.encode(pi.keys)
}
