// Package pipeline loads the YAML pipeline file format and materializes
// it into a Run with its Tasks.
package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/me/flowrun/pkg/model"
)

// File is a parsed pipeline definition.
type File struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
	Tasks  []TaskSpec        `yaml:"tasks"`
}

// TaskSpec declares one task in a pipeline file.
type TaskSpec struct {
	Name     string            `yaml:"name"`
	Executor string            `yaml:"executor,omitempty"` // category; defaults to local
	Command  []string          `yaml:"command"`
	Env      map[string]string `yaml:"env,omitempty"`
	Detach   bool              `yaml:"detach,omitempty"` // submit without waiting for completion
}

var knownCategories = map[model.ExecutorCategory]bool{
	model.CategoryLocal:   true,
	model.CategoryCluster: true,
	model.CategoryCloud:   true,
}

// Parse decodes and validates a pipeline file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses a pipeline file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline %s: %w", path, err)
	}
	return Parse(data)
}

func (f *File) validate() error {
	if f.Name == "" {
		return fmt.Errorf("pipeline: name is required")
	}
	if len(f.Tasks) == 0 {
		return fmt.Errorf("pipeline %s: at least one task is required", f.Name)
	}

	seen := make(map[string]bool)
	for i, spec := range f.Tasks {
		if spec.Name == "" {
			return fmt.Errorf("pipeline %s: task %d has no name", f.Name, i)
		}
		if seen[spec.Name] {
			return fmt.Errorf("pipeline %s: duplicate task name %q", f.Name, spec.Name)
		}
		seen[spec.Name] = true

		if len(spec.Command) == 0 {
			return fmt.Errorf("pipeline %s: task %q has an empty command", f.Name, spec.Name)
		}
		if spec.Executor != "" && !knownCategories[model.ExecutorCategory(spec.Executor)] {
			return fmt.Errorf("pipeline %s: task %q names unknown executor %q", f.Name, spec.Name, spec.Executor)
		}
	}
	return nil
}

// Category returns the executor category for a task spec, defaulting to
// local.
func (s *TaskSpec) Category() model.ExecutorCategory {
	if s.Executor == "" {
		return model.CategoryLocal
	}
	return model.ExecutorCategory(s.Executor)
}

// Materialize creates the Run record and one Task record per spec.
func (f *File) Materialize() (*model.Run, []*model.Task) {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        "run_" + uuid.New().String(),
		Name:      f.Name,
		State:     model.RunStatePending,
		Labels:    f.Labels,
		CreatedAt: now,
	}

	tasks := make([]*model.Task, 0, len(f.Tasks))
	for _, spec := range f.Tasks {
		tasks = append(tasks, &model.Task{
			ID:        "task_" + uuid.New().String(),
			RunID:     run.ID,
			Name:      spec.Name,
			State:     model.TaskStatePending,
			Category:  spec.Category(),
			Command:   spec.Command,
			Env:       spec.Env,
			CreatedAt: now,
		})
	}
	return run, tasks
}
