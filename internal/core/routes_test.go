package core

import (
	"testing"

	"github.com/perts/copilot/pkg/models"
	"pgregory.net/rapid"
)

func TestShortAndLongUID(t *testing.T) {
	if got := ShortUID("Team_abc123"); got != "abc123" {
		t.Errorf("ShortUID = %q, want abc123", got)
	}
	if got := ShortUID("abc123"); got != "abc123" {
		t.Errorf("ShortUID without prefix = %q", got)
	}
	if got := LongUID("Team", "abc123"); got != "Team_abc123" {
		t.Errorf("LongUID = %q, want Team_abc123", got)
	}
	if got := LongUID("Team", "Team_abc123"); got != "Team_abc123" {
		t.Errorf("LongUID kept prefix = %q", got)
	}
}

func TestRouteBuilders(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{ToProgramSteps("Team_1"), "/teams/1/steps"},
		{ToProgramStep("Team_1", models.StepTypeSingle, "introduction"), "/teams/1/steps/single/introduction"},
		{ToProgramModule("Team_1", models.StepTypeCycle, "Cycle_9", "Survey"), "/teams/1/steps/cycle/Cycle_9/Survey"},
		{ToProgramModulePage("Team_1", models.StepTypeCycle, "Cycle_9", "Survey", 2, 4), "/teams/1/steps/cycle/Cycle_9/Survey/2/4"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("route = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseStepRoute_Errors(t *testing.T) {
	bad := []string{
		"",
		"/teams",
		"/teams//steps",
		"/users/1/steps",
		"/teams/1/steps/single",
		"/teams/1/steps/bogus/introduction",
		"/teams/1/steps/single/introduction/Welcome/2",
		"/teams/1/steps/single/introduction/Welcome/x/4",
		"/teams/1/steps/single/introduction/Welcome/2/y",
	}
	for _, path := range bad {
		if _, err := ParseStepRoute(path); err == nil {
			t.Errorf("ParseStepRoute(%q): expected error", path)
		}
	}
}

func TestParseStepRoute_StepsRoot(t *testing.T) {
	r, err := ParseStepRoute("/teams/1/steps")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TeamID != "Team_1" || r.ParentLabel != "" {
		t.Errorf("got %+v", r)
	}
}

func TestProperty_RouteRoundTrip(t *testing.T) {
	label := rapid.StringMatching(`[A-Za-z][A-Za-z0-9]{0,12}`)
	rapid.Check(t, func(rt *rapid.T) {
		teamID := "Team_" + label.Draw(rt, "team")
		stepType := rapid.SampledFrom([]models.StepType{models.StepTypeSingle, models.StepTypeCycle}).Draw(rt, "type")
		parent := label.Draw(rt, "parent")
		module := label.Draw(rt, "module")
		total := rapid.IntRange(2, 10).Draw(rt, "total")
		page := rapid.IntRange(1, total).Draw(rt, "page")

		r, err := ParseStepRoute(ToProgramModulePage(teamID, stepType, parent, module, page, total))
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		want := StepRoute{TeamID: teamID, StepType: stepType, ParentLabel: parent, ModuleLabel: module, Page: page, TotalPages: total}
		if r != want {
			rt.Fatalf("round trip = %+v, want %+v", r, want)
		}

		r, err = ParseStepRoute(ToProgramStep(teamID, stepType, parent))
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if r.ParentLabel != parent || r.StepType != stepType || r.ModuleLabel != "" {
			rt.Fatalf("step route round trip = %+v", r)
		}
	})
}
