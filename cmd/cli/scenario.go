// Scenario engine for the Hermes CLI
//
// A scenario is a scripted sequence of dispatcher operations (register,
// remove, fire) in YAML or JSON, replayed against a fresh EventManager.
// Listener registrations carry nested actions that run when the listener
// is invoked, which makes re-entrant wiring (self-removal, add-during-
// fire, nested fires) scriptable from a file.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"os"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"

	"github.com/agilira/hermes"
)

// Scenario operation names.
const (
	opAdd        = "add"
	opRemoveID   = "remove-id"
	opRemoveStub = "remove-stub"
	opFire       = "fire"
)

// Scenario is a named sequence of dispatcher operations.
type Scenario struct {
	Name  string `yaml:"name" json:"name"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is one dispatcher operation. Fields are op-dependent:
//
//	op: add          event, label, optional stub, optional actions
//	op: remove-id    event
//	op: remove-stub  target (a listener label)
//	op: fire         event, optional payload
//
// Actions on an "add" step run inside the listener each time it is
// invoked, in order, and accept the same four ops.
type Step struct {
	Op      string `yaml:"op" json:"op"`
	Event   int    `yaml:"event" json:"event"`
	Label   string `yaml:"label" json:"label"`
	Stub    int64  `yaml:"stub" json:"stub"`
	Target  string `yaml:"target" json:"target"`
	Payload string `yaml:"payload" json:"payload"`
	Actions []Step `yaml:"actions" json:"actions"`
}

// LoadScenario reads a scenario from a YAML or JSON file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- scenario path is user-provided intentionally
	if err != nil {
		return nil, errors.Wrap(err, hermes.ErrCodeIOError, "failed to read scenario file")
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, errors.Wrap(err, hermes.ErrCodeInvalidConfig, "failed to parse scenario file")
	}
	return &scenario, nil
}

// Validate statically checks a scenario: known ops, required fields,
// listener labels unique within each step list (a label repeated at a
// different nesting level is not reported), and remove-stub targets that
// some add step actually defines.
func (s *Scenario) Validate() []string {
	var issues []string
	labels := make(map[string]bool)
	collectLabels(s.Steps, labels)

	checkSteps(s.Steps, labels, "steps", &issues)
	return issues
}

func collectLabels(steps []Step, labels map[string]bool) {
	for _, step := range steps {
		if step.Op == opAdd && step.Label != "" {
			labels[step.Label] = true
		}
		collectLabels(step.Actions, labels)
	}
}

func checkSteps(steps []Step, labels map[string]bool, path string, issues *[]string) {
	seen := make(map[string]bool)
	for i, step := range steps {
		where := fmt.Sprintf("%s[%d]", path, i)
		switch step.Op {
		case opAdd:
			if step.Label == "" {
				*issues = append(*issues, where+": add requires a label")
			} else if seen[step.Label] {
				*issues = append(*issues, where+": duplicate label "+step.Label)
			}
			seen[step.Label] = true
			if step.Stub < 0 {
				*issues = append(*issues, where+": bound stub must be positive")
			}
			checkSteps(step.Actions, labels, where+".actions", issues)
		case opRemoveID, opFire:
			if len(step.Actions) > 0 {
				*issues = append(*issues, where+": actions are only valid on add steps")
			}
		case opRemoveStub:
			if step.Target == "" {
				*issues = append(*issues, where+": remove-stub requires a target label")
			} else if !labels[step.Target] {
				*issues = append(*issues, where+": remove-stub targets undefined label "+step.Target)
			}
		default:
			*issues = append(*issues, fmt.Sprintf("%s: unknown op %q", where, step.Op))
		}
	}
}

// RunResult carries the replay outcome: a line-per-operation trace and
// the manager's final table statistics.
type RunResult struct {
	Trace []string
	Stats hermes.ManagerStats
}

// scenarioRunner replays steps against one manager, resolving listener
// labels to stubs as registrations happen.
type scenarioRunner struct {
	manager *hermes.EventManager
	stubs   map[string]hermes.ListenerStub
	trace   []string
}

// Run replays the scenario against a fresh manager built from config.
func (s *Scenario) Run(config hermes.Config) (*RunResult, error) {
	issues := s.Validate()
	if len(issues) > 0 {
		return nil, errors.New(hermes.ErrCodeInvalidConfig, fmt.Sprintf("invalid scenario: %s", issues[0]))
	}

	runner := &scenarioRunner{
		manager: hermes.New(config),
		stubs:   make(map[string]hermes.ListenerStub),
	}
	defer func() {
		_ = runner.manager.Close()
	}()

	for _, step := range s.Steps {
		runner.runStep(step, "")
	}

	return &RunResult{
		Trace: runner.trace,
		Stats: runner.manager.Stats(),
	}, nil
}

// runStep executes one step. caller names the listener whose actions are
// running, empty for top-level steps.
func (r *scenarioRunner) runStep(step Step, caller string) {
	switch step.Op {
	case opAdd:
		r.addListener(step, caller)
	case opRemoveID:
		err := r.manager.RemoveListener(step.Event)
		r.tracef(caller, "remove-id event=%d%s", step.Event, errSuffix(err))
	case opRemoveStub:
		stub := r.stubs[step.Target]
		err := r.manager.RemoveListenerStub(stub)
		r.tracef(caller, "remove-stub %s%s", step.Target, errSuffix(err))
	case opFire:
		r.tracef(caller, "fire event=%d", step.Event)
		var payload interface{}
		if step.Payload != "" {
			payload = step.Payload
		}
		r.manager.Fire(hermes.NewEvent(step.Event, payload))
	}
}

// addListener registers a listener whose body replays the step's nested
// actions on every invocation.
func (r *scenarioRunner) addListener(step Step, caller string) {
	label := step.Label
	actions := step.Actions
	handler := func(ev *hermes.Event) {
		r.tracef("", "invoke %s event=%d", label, ev.ID())
		for _, action := range actions {
			r.runStep(action, label)
		}
	}

	var stub hermes.ListenerStub
	if step.Stub > 0 {
		stub = r.manager.AddListenerStub(step.Event, handler, hermes.ListenerStub(step.Stub))
	} else {
		stub = r.manager.AddListener(step.Event, handler)
	}

	if stub == hermes.InvalidListenerStub {
		r.tracef(caller, "add %s event=%d%s", label, step.Event, errSuffix(r.manager.LastError()))
		return
	}
	r.stubs[label] = stub
	r.tracef(caller, "add %s event=%d stub=%d", label, step.Event, stub)
}

func (r *scenarioRunner) tracef(caller, format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if caller != "" {
		line = caller + ": " + line
	}
	r.trace = append(r.trace, line)
}

// errSuffix renders an operation outcome for the trace.
func errSuffix(err error) string {
	switch {
	case err == nil:
		return " ok"
	case hermes.IsPending(err):
		return " pending"
	case hermes.IsNotFound(err):
		return " not-found"
	default:
		return " error: " + err.Error()
	}
}
