// Package seed loads pool task templates from a JSON, JSONC or YAML file and
// replaces the stored pool with them.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/starboard/internal/model"
	"github.com/dukerupert/starboard/internal/store"
	"github.com/dukerupert/starboard/internal/validate"
)

const (
	DefaultPoints = 10
	CreatedBy     = "system-seed"
)

// Template is one entry of a seed file. Keys are camelCase to match the
// template files already in circulation.
type Template struct {
	Title            string            `json:"title" yaml:"title"`
	Description      string            `json:"description" yaml:"description"`
	Points           *int              `json:"points" yaml:"points"`
	Frequency        model.Frequency   `json:"frequency" yaml:"frequency"`
	IsResponsibility *bool             `json:"isResponsibility" yaml:"isResponsibility"`
	IsSchool         *bool             `json:"isSchool" yaml:"isSchool"`
	TimeWindow       *model.TimeWindow `json:"timeWindow" yaml:"timeWindow"`
	DueTime          string            `json:"dueTime" yaml:"dueTime"`
	RecurrenceDays   []int             `json:"recurrenceDays" yaml:"recurrenceDays"`
}

// Input converts the template to a pool task input, filling the defaults:
// 10 points, daily, responsibility on, school off.
func (t Template) Input() model.TaskInput {
	in := model.TaskInput{
		Title:            t.Title,
		Description:      t.Description,
		AssignedTo:       model.PoolAssignee,
		CreatedBy:        CreatedBy,
		Frequency:        t.Frequency,
		TimeWindow:       t.TimeWindow,
		RecurrenceDays:   t.RecurrenceDays,
		IsResponsibility: true,
	}
	if in.Title == "" {
		in.Title = "Untitled"
	}
	if in.Frequency == "" {
		in.Frequency = model.FrequencyDaily
	}
	points := DefaultPoints
	if t.Points != nil {
		points = *t.Points
	}
	in.Points = &points
	if t.IsResponsibility != nil {
		in.IsResponsibility = *t.IsResponsibility
	}
	if t.IsSchool != nil {
		in.IsSchool = *t.IsSchool
	}
	if t.DueTime != "" {
		due := t.DueTime
		in.DueTime = &due
	}
	return in
}

// Parse decodes a template list. YAML is used when format is "yaml" or
// "yml"; anything else is read as JSON with comments and trailing commas
// allowed.
func Parse(data []byte, format string) ([]Template, error) {
	var templates []Template
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &templates); err != nil {
			return nil, fmt.Errorf("parse yaml templates: %w", err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &templates); err != nil {
			return nil, fmt.Errorf("parse json templates: %w", err)
		}
	}
	return templates, nil
}

// ReadFile reads templates from path, choosing the format by extension.
func ReadFile(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	templates, err := Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return templates, nil
}

type Result struct {
	Removed  int64 `json:"removed"`
	Inserted int   `json:"inserted"`
}

// Apply validates every template, then removes the existing pool and
// inserts the new one in a single transaction. An invalid template leaves
// the stored pool untouched.
func Apply(ctx context.Context, stores *store.Stores, templates []Template, now time.Time) (*Result, error) {
	v := validate.New()
	inputs := make([]model.TaskInput, len(templates))
	for i, t := range templates {
		inputs[i] = t.Input()
		if err := v.Struct(inputs[i]); err != nil {
			return nil, fmt.Errorf("template %d (%s): %w", i, inputs[i].Title, err)
		}
	}

	res := &Result{}
	err := stores.InTx(ctx, func(tx *store.Stores) error {
		removed, err := tx.Tasks.DeletePool(ctx)
		if err != nil {
			return err
		}
		res.Removed = removed

		for _, in := range inputs {
			task := &model.Task{Status: model.StatusPending, CreatedAt: now, UpdatedAt: now}
			in.Apply(task)
			if _, err := tx.Tasks.Create(ctx, task); err != nil {
				return err
			}
			res.Inserted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
