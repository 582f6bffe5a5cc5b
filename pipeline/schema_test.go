package pipeline

import (
	"encoding/json"
	"testing"
	"time"
)

func TestValidateReportAccepts(t *testing.T) {
	report := &Report{
		Target:     "myapp",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Verdict:    PartialSuccess,
		Stages: []StageResult{
			{Stage: "initial-build", Verdict: Succeeded},
			{Stage: "profile-collect", Verdict: Skipped, Cause: CauseCapability},
		},
	}
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}
	issues, err := ValidateReport(data)
	if err != nil {
		t.Fatalf("ValidateReport: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("valid report rejected: %v", issues)
	}
}

func TestValidateReportRejects(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"missing target", `{"started_at":"x","finished_at":"x","verdict":"success","stages":[]}`},
		{"bad verdict", `{"target":"a","started_at":"x","finished_at":"x","verdict":"great","stages":[]}`},
		{"bad stage verdict", `{"target":"a","started_at":"x","finished_at":"x","verdict":"success","stages":[{"stage":"s","verdict":"meh"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, err := ValidateReport([]byte(tt.json))
			if err != nil {
				t.Fatalf("ValidateReport: %v", err)
			}
			if len(issues) == 0 {
				t.Error("invalid report accepted")
			}
		})
	}
}

func TestValidateReportMalformedJSON(t *testing.T) {
	if _, err := ValidateReport([]byte("{not json")); err == nil {
		t.Error("malformed JSON should error")
	}
}
