package core

import (
	"fmt"
	"strings"

	"github.com/perts/copilot/pkg/models"
)

// View is a rendered display of a team's program. The set of views is
// closed: MenuView, TasklistView, TaskModuleView, SummaryView and
// RedirectView.
type View interface {
	view()
}

// StepStatus is one display step with its completion and route.
type StepStatus struct {
	Step     models.DisplayStep
	Route    string
	Complete bool
	Default  bool
}

// TaskStatus is one task of a step with the progress recorded for it.
type TaskStatus struct {
	Task     models.TaskDefinition
	Route    string
	Progress int
}

// MenuView lists every step with the default marked.
type MenuView struct {
	Steps []StepStatus
}

// TasklistView shows the tasks of one step.
type TasklistView struct {
	Step     StepStatus
	Tasks    []TaskStatus
	Previous string
	Next     string
}

// TaskModuleView shows one module task within a step.
type TaskModuleView struct {
	Step     StepStatus
	Task     models.TaskDefinition
	Response *models.Response
	// ContinuePage is the page to resume a paged module on.
	ContinuePage int
	Route        string
}

// SummaryView counts completed steps.
type SummaryView struct {
	Steps     []StepStatus
	Completed int
}

// RedirectView sends the caller to another route instead of rendering.
type RedirectView struct {
	To string
}

func (MenuView) view()       {}
func (TasklistView) view()   {}
func (TaskModuleView) view() {}
func (SummaryView) view()    {}
func (RedirectView) view()   {}

// BuildView renders display for the team. routeKey is either a bare step
// key or a full program route; the task module display also reads the
// module label and page from a full route.
func BuildView(display models.Display, tc *TeamContext, routeKey string) (View, error) {
	switch display {
	case models.DisplayMenu:
		return MenuView{Steps: stepStatuses(tc)}, nil

	case models.DisplaySummary:
		steps := stepStatuses(tc)
		completed := 0
		for _, s := range steps {
			if s.Complete {
				completed++
			}
		}
		return SummaryView{Steps: steps, Completed: completed}, nil

	case models.DisplayTasklist:
		route, err := parseRouteKey(tc.TeamID, routeKey)
		if err != nil {
			return nil, err
		}
		nav := tc.Navigator.Navigate(route.ParentLabel)
		if nav.Redirected() {
			return RedirectView{To: nav.Redirect}, nil
		}
		if nav.Step == nil {
			return MenuView{}, nil
		}
		return TasklistView{
			Step:     stepStatus(tc, *nav.Step),
			Tasks:    taskStatuses(tc, *nav.Step),
			Previous: nav.Previous,
			Next:     nav.Next,
		}, nil

	case models.DisplayTaskModule:
		route, err := parseRouteKey(tc.TeamID, routeKey)
		if err != nil {
			return nil, err
		}
		nav := tc.Navigator.Navigate(route.ParentLabel)
		if nav.Redirected() {
			return RedirectView{To: nav.Redirect}, nil
		}
		if nav.Step == nil {
			return MenuView{}, nil
		}
		return buildTaskModule(tc, *nav.Step, route)

	default:
		return nil, fmt.Errorf("building view: unknown display %q", display)
	}
}

// parseRouteKey accepts a full route or a bare step key.
func parseRouteKey(teamID, routeKey string) (StepRoute, error) {
	if strings.HasPrefix(routeKey, "/") {
		return ParseStepRoute(routeKey)
	}
	return StepRoute{TeamID: teamID, ParentLabel: routeKey}, nil
}

func buildTaskModule(tc *TeamContext, step models.DisplayStep, route StepRoute) (View, error) {
	def := tc.Program.Steps[step.DefinitionIndex]

	var task *models.TaskDefinition
	for i := range def.Tasks {
		t := &def.Tasks[i]
		if t.Type != models.TaskTypeModule {
			continue
		}
		if route.ModuleLabel == "" || t.Label == route.ModuleLabel {
			task = t
			break
		}
	}
	if task == nil {
		// Unknown module: back to the step's task list.
		return RedirectView{To: DisplayStepRoute(tc.TeamID, step)}, nil
	}

	resp := moduleResponse(tc.Responses, step, task.Label)
	v := TaskModuleView{
		Step:         stepStatus(tc, step),
		Task:         *task,
		Response:     resp,
		ContinuePage: 1,
		Route:        ToProgramModule(tc.TeamID, step.Type, step.ParentLabel, task.Label),
	}
	if task.Pages > 1 {
		page := route.Page
		if page == 0 {
			page = ContinuePage(resp, task.Pages)
		}
		v.ContinuePage = page
		v.Route = ToProgramModulePage(tc.TeamID, step.Type, step.ParentLabel, task.Label, page, task.Pages)
	}
	return v, nil
}

func stepStatuses(tc *TeamContext) []StepStatus {
	steps := tc.Navigator.Steps()
	def, hasDefault := tc.Navigator.Default()
	out := make([]StepStatus, 0, len(steps))
	for _, s := range steps {
		st := stepStatus(tc, s)
		st.Default = hasDefault && s.ParentLabel == def.ParentLabel
		out = append(out, st)
	}
	return out
}

func stepStatus(tc *TeamContext, s models.DisplayStep) StepStatus {
	return StepStatus{
		Step:     s,
		Route:    DisplayStepRoute(tc.TeamID, s),
		Complete: StepComplete(tc.Responses, s),
	}
}

func taskStatuses(tc *TeamContext, step models.DisplayStep) []TaskStatus {
	def := tc.Program.Steps[step.DefinitionIndex]
	out := make([]TaskStatus, 0, len(def.Tasks))
	for _, t := range def.Tasks {
		ts := TaskStatus{Task: t}
		switch t.Type {
		case models.TaskTypeModule:
			ts.Route = ToProgramModule(tc.TeamID, step.Type, step.ParentLabel, t.Label)
			if r := moduleResponse(tc.Responses, step, t.Label); r != nil {
				ts.Progress = r.Progress
			}
		case models.TaskTypeLink:
			ts.Route = t.To
		case models.TaskTypeInline:
		}
		out = append(out, ts)
	}
	return out
}

// moduleResponse returns the most advanced response recorded for a module
// in the step, across response types.
func moduleResponse(responses []models.Response, step models.DisplayStep, moduleLabel string) *models.Response {
	var best *models.Response
	for i := range responses {
		r := &responses[i]
		if r.ParentID != step.ParentLabel || r.ModuleLabel != moduleLabel {
			continue
		}
		if best == nil || r.Progress > best.Progress {
			best = r
		}
	}
	return best
}
