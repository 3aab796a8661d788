package types

import (
	"testing"
)

func TestParsePhase(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Phase
		wantErr bool
	}{
		{name: "upper case", input: "DISCOVERY", want: PhaseDiscovery},
		{name: "title case", input: "Analysis", want: PhaseAnalysis},
		{name: "lower case with spaces", input: "  ideation ", want: PhaseIdeation},
		{name: "complete", input: "Complete", want: PhaseComplete},
		{name: "unknown", input: "REVIEW", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePhase(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParsePhase(%q) expected error, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePhase(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParsePhase(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestPhaseOrder(t *testing.T) {
	if PhaseDiscovery.Order() >= PhaseAnalysis.Order() {
		t.Error("DISCOVERY must come before ANALYSIS")
	}
	if PhaseIdeation.Order() >= PhaseComplete.Order() {
		t.Error("IDEATION must come before COMPLETE")
	}
	if Phase("nope").Order() != -1 {
		t.Error("invalid phase should have order -1")
	}
}

func TestParsePaperStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    PaperStatus
		wantErr bool
	}{
		{input: "pending", want: StatusPending},
		{input: "analyzing", want: StatusAnalyzing},
		{input: "PRESENTED", want: StatusPresented},
		{input: "rejected", want: StatusRejected},
		{input: "insights_extracted", want: StatusInsightsExtracted},
		{input: "extract_insights", want: StatusInsightsExtracted},
		{input: "done", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePaperStatus(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePaperStatus(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePaperStatus(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestPaperStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from PaperStatus
		to   PaperStatus
		want bool
	}{
		{"pending to analyzing", StatusPending, StatusAnalyzing, true},
		{"pending straight to terminal", StatusPending, StatusRejected, true},
		{"recovery analyzing to pending", StatusAnalyzing, StatusPending, true},
		{"analyzing to presented", StatusAnalyzing, StatusPresented, true},
		{"terminal never changes", StatusPresented, StatusRejected, false},
		{"terminal never reopens", StatusRejected, StatusPending, false},
		{"same status is a no-op", StatusInsightsExtracted, StatusInsightsExtracted, true},
		{"unknown target", StatusPending, PaperStatus("done"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := map[PaperStatus]bool{
		StatusPending:           false,
		StatusAnalyzing:         false,
		StatusPresented:         true,
		StatusRejected:          true,
		StatusInsightsExtracted: true,
	}
	for status, want := range terminal {
		if status.IsTerminal() != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, !want, want)
		}
	}
}

func TestAgentIsValid(t *testing.T) {
	for _, a := range AllAgents() {
		if !a.IsValid() {
			t.Errorf("%s should be valid", a)
		}
	}
	if Agent("gemini").IsValid() {
		t.Error("gemini is not a supported agent")
	}
}
