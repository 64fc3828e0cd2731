package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestTaskFeedback_CloneKeepsEmptyLists(t *testing.T) {
	tests := []struct {
		name     string
		feedback TaskFeedback
		want     string
	}{
		{"empty", TaskFeedback{Strengths: []string{}, Improvements: []string{}}, `"strengths":[]`},
		{"nil", TaskFeedback{}, `"improvements":[]`},
		{"filled", TaskFeedback{Strengths: []string{"clear"}, Improvements: []string{}}, `"strengths":["clear"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(tt.feedback.Clone())
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if !strings.Contains(string(body), tt.want) {
				t.Errorf("Expected %s in %s", tt.want, body)
			}
		})
	}
}

func TestTaskFeedback_CloneIsIndependent(t *testing.T) {
	original := TaskFeedback{Strengths: []string{"clear"}, Improvements: []string{"depth"}}
	clone := original.Clone()
	clone.Strengths[0] = "changed"

	if original.Strengths[0] != "clear" {
		t.Errorf("Clone shares backing array with original: %v", original.Strengths)
	}
}

func TestFinalReport_CloneKeepsEmptyLists(t *testing.T) {
	report := FinalReport{
		TaskFeedbacks:        []TaskFeedback{{Strengths: []string{}}},
		OverallStrengths:     []string{},
		AreasToImprove:       []string{},
		StudyRecommendations: []string{},
	}

	body, err := json.Marshal(report.Clone())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, want := range []string{
		`"overall_strengths":[]`,
		`"areas_to_improve":[]`,
		`"study_recommendations":[]`,
		`"strengths":[]`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected %s in %s", want, body)
		}
	}
}
