package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTestOutcome_Validate(t *testing.T) {
	tests := []struct {
		name    string
		outcome TestOutcome
		wantErr bool
	}{
		{
			name:    "passed without error",
			outcome: TestOutcome{TestID: "t1", Status: StatusPassed},
		},
		{
			name:    "failed with error",
			outcome: TestOutcome{TestID: "t2", Status: StatusFailed, Error: "element not found"},
		},
		{
			name:    "skipped with reason",
			outcome: TestOutcome{TestID: "t3", Status: StatusSkipped, Error: "precondition failed"},
		},
		{
			name:    "missing id",
			outcome: TestOutcome{Status: StatusPassed},
			wantErr: true,
		},
		{
			name:    "unknown status",
			outcome: TestOutcome{TestID: "t4", Status: "GREEN"},
			wantErr: true,
		},
		{
			name:    "passed with error",
			outcome: TestOutcome{TestID: "t5", Status: StatusPassed, Error: "boom"},
			wantErr: true,
		},
		{
			name:    "failed without error",
			outcome: TestOutcome{TestID: "t6", Status: StatusFailed},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.outcome.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTestOutcome_WithScreenshotCopies(t *testing.T) {
	original := TestOutcome{TestID: "t2", Status: StatusFailed, Error: "x"}
	updated := original.WithScreenshot("shots/t2.png")

	if original.Screenshot != "" {
		t.Errorf("original outcome mutated: %q", original.Screenshot)
	}
	if updated.Screenshot != "shots/t2.png" {
		t.Errorf("Screenshot = %q, want shots/t2.png", updated.Screenshot)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0.000 sec"},
		{1200 * time.Millisecond, "1.200 sec"},
		{59*time.Second + 999*time.Millisecond, "59.999 sec"},
		{time.Minute, "1 min 0 sec"},
		{2*time.Minute + 5*time.Second + 300*time.Millisecond, "2 min 5 sec"},
		{-time.Second, "0.000 sec"},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResultLine(t *testing.T) {
	tests := []struct {
		name    string
		outcome TestOutcome
		want    string
	}{
		{
			name:    "pass",
			outcome: TestOutcome{TestID: "t1", Status: StatusPassed, Duration: 1200 * time.Millisecond},
			want:    "[PASS] t1 (1.200 sec)",
		},
		{
			name:    "fail",
			outcome: TestOutcome{TestID: "t2", Name: "Search", Status: StatusFailed, Duration: 450 * time.Millisecond, Error: "element not found"},
			want:    "[FAIL] Search (0.450 sec)\n   ERROR: element not found",
		},
		{
			name:    "skip",
			outcome: TestOutcome{TestID: "t3", Status: StatusSkipped, Error: "precondition failed"},
			want:    "[SKIP] t3\n   REASON: precondition failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResultLine(tt.outcome); got != tt.want {
				t.Errorf("ResultLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunSummary_SuccessRate(t *testing.T) {
	tests := []struct {
		name    string
		summary RunSummary
		want    string
	}{
		{"empty run", RunSummary{}, "0.0%"},
		{"one of three", RunSummary{Total: 3, Passed: 1, Failed: 1, Skipped: 1}, "33.3%"},
		{"all passed", RunSummary{Total: 4, Passed: 4}, "100.0%"},
		{"skips lower the rate", RunSummary{Total: 2, Passed: 1, Skipped: 1}, "50.0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.summary.SuccessRateString(); got != tt.want {
				t.Errorf("SuccessRateString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSkipError(t *testing.T) {
	err := fmt.Errorf("setup: %w", Skip("precondition failed"))

	reason, ok := IsSkip(err)
	if !ok {
		t.Fatal("IsSkip should detect a wrapped SkipError")
	}
	if reason != "precondition failed" {
		t.Errorf("reason = %q, want %q", reason, "precondition failed")
	}

	if _, ok := IsSkip(errors.New("plain")); ok {
		t.Error("IsSkip should be false for plain errors")
	}
}

func TestNarrative_RecordsStepsInOrder(t *testing.T) {
	n := NewNarrative()
	n.Step("open **home** page")
	n.Action("click %s", "search")
	n.Verify("title contains %q", "Shop")
	n.Pass("done")

	steps := n.Steps()
	if len(steps) != 4 {
		t.Fatalf("len(steps) = %d, want 4", len(steps))
	}
	wantKinds := []StepKind{StepStep, StepAction, StepVerification, StepPass}
	for i, k := range wantKinds {
		if steps[i].Kind != k {
			t.Errorf("steps[%d].Kind = %s, want %s", i, steps[i].Kind, k)
		}
	}
	if steps[1].Text != "click search" {
		t.Errorf("steps[1].Text = %q", steps[1].Text)
	}

	// Steps returns a copy
	steps[0].Text = "changed"
	if n.Steps()[0].Text != "open **home** page" {
		t.Error("Steps() must return a copy")
	}
}

func TestNarrative_NilIsSafe(t *testing.T) {
	var n *Narrative
	n.Info("ignored")
	if n.Steps() != nil {
		t.Error("nil narrative should return nil steps")
	}
}
