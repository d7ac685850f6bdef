// Package seed installs workflows and schedules declared in a YAML file at
// boot. Entries are matched by name, so applying the same file twice is a
// no-op.
package seed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/djlord-it/eoflow/internal/domain"
	"github.com/djlord-it/eoflow/internal/registry"
)

// File is the seed document.
//
//	workflows:
//	  - name: climate
//	    steps:
//	      - name: zonal
//	        processId: raster.zonal_stats
//	        inputs: {dataset_id: chirps-daily}
//	schedules:
//	  - name: nightly-climate
//	    cron: "0 2 * * *"
//	    timezone: Africa/Nairobi
//	    workflow: climate
type File struct {
	Workflows []Workflow `yaml:"workflows"`
	Schedules []Schedule `yaml:"schedules"`
}

type Workflow struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step takes either a full payload or an inputs shorthand that becomes
// {"inputs": ...}.
type Step struct {
	Name      string         `yaml:"name"`
	ProcessID string         `yaml:"processId"`
	Payload   map[string]any `yaml:"payload"`
	Inputs    map[string]any `yaml:"inputs"`
}

// Schedule targets either a workflow by name or a process with inputs.
type Schedule struct {
	Name      string         `yaml:"name"`
	Cron      string         `yaml:"cron"`
	Timezone  string         `yaml:"timezone"`
	Enabled   *bool          `yaml:"enabled"`
	ProcessID string         `yaml:"processId"`
	Inputs    map[string]any `yaml:"inputs"`
	Workflow  string         `yaml:"workflow"`
}

type WorkflowStore interface {
	Create(d registry.WorkflowDraft) (domain.Workflow, error)
	List() []domain.Workflow
}

type ScheduleStore interface {
	Create(d registry.ScheduleDraft) (domain.Schedule, error)
	List() []domain.Schedule
}

// Result counts what Apply did.
type Result struct {
	WorkflowsCreated int
	SchedulesCreated int
	Skipped          int
}

func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("decode seed file: %w", err)
	}
	return f, nil
}

// Apply creates every workflow and schedule whose name is not already taken.
// Workflows go first so schedules can reference them by name. The first
// invalid entry stops the run; entries created before it remain.
func Apply(f File, workflows WorkflowStore, schedules ScheduleStore, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res Result

	workflowIDs := make(map[string]string)
	for _, wf := range workflows.List() {
		workflowIDs[wf.Name] = wf.ID
	}

	for _, w := range f.Workflows {
		if _, ok := workflowIDs[w.Name]; ok {
			res.Skipped++
			continue
		}
		steps, err := toSteps(w.Steps)
		if err != nil {
			return res, fmt.Errorf("seed workflow %q: %w", w.Name, err)
		}
		created, err := workflows.Create(registry.WorkflowDraft{Name: w.Name, Steps: steps})
		if err != nil {
			return res, fmt.Errorf("seed workflow %q: %w", w.Name, err)
		}
		workflowIDs[created.Name] = created.ID
		res.WorkflowsCreated++
		logger.Info("seed: workflow created", "workflow_id", created.ID, "name", created.Name)
	}

	scheduleNames := make(map[string]bool)
	for _, s := range schedules.List() {
		scheduleNames[s.Name] = true
	}

	for _, s := range f.Schedules {
		if scheduleNames[s.Name] {
			res.Skipped++
			continue
		}
		draft := registry.ScheduleDraft{
			Name:      s.Name,
			Cron:      s.Cron,
			Timezone:  s.Timezone,
			Enabled:   s.Enabled,
			ProcessID: s.ProcessID,
		}
		if s.Workflow != "" {
			id, ok := workflowIDs[s.Workflow]
			if !ok {
				return res, fmt.Errorf("seed schedule %q: unknown workflow %q", s.Name, s.Workflow)
			}
			draft.WorkflowID = id
		}
		if s.Inputs != nil {
			raw, err := json.Marshal(s.Inputs)
			if err != nil {
				return res, fmt.Errorf("seed schedule %q: inputs: %w", s.Name, err)
			}
			draft.Inputs = raw
		}

		created, err := schedules.Create(draft)
		if err != nil {
			return res, fmt.Errorf("seed schedule %q: %w", s.Name, err)
		}
		scheduleNames[created.Name] = true
		res.SchedulesCreated++
		logger.Info("seed: schedule created", "schedule_id", created.ID, "name", created.Name, "cron", created.Cron)
	}

	return res, nil
}

func toSteps(in []Step) ([]domain.Step, error) {
	out := make([]domain.Step, 0, len(in))
	for _, s := range in {
		payload := s.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		if s.Inputs != nil {
			payload["inputs"] = s.Inputs
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("step %q payload: %w", s.Name, err)
		}
		out = append(out, domain.Step{Name: s.Name, ProcessID: s.ProcessID, Payload: raw})
	}
	return out, nil
}
