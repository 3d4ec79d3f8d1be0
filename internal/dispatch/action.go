// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"github.com/boltstep/boltstep/internal/jobspec"
)

type (
	// Action is one of Task, Plan or Apply. The set is closed.
	Action interface {
		Kind() jobspec.ActionKind
		isAction()
	}

	// Task runs a single engine task.
	Task struct{ Name string }

	// Plan runs an engine plan.
	Plan struct{ Name string }

	// Apply declares a class with the run parameters and applies it.
	Apply struct{ Class string }
)

// Kind returns ActionTask.
func (Task) Kind() jobspec.ActionKind { return jobspec.ActionTask }

// Kind returns ActionPlan.
func (Plan) Kind() jobspec.ActionKind { return jobspec.ActionPlan }

// Kind returns ActionApply.
func (Apply) Kind() jobspec.ActionKind { return jobspec.ActionApply }

func (Task) isAction()  {}
func (Plan) isAction()  {}
func (Apply) isAction() {}

// ActionFor maps a parsed job spec to its action.
func ActionFor(p *jobspec.Plan) (Action, error) {
	switch p.Action {
	case jobspec.ActionTask:
		return Task{Name: p.Name}, nil
	case jobspec.ActionPlan:
		return Plan{Name: p.Name}, nil
	case jobspec.ActionApply:
		return Apply{Class: p.Name}, nil
	default:
		return nil, &jobspec.InvalidActionKindError{Value: p.Action}
	}
}
