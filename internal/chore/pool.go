package chore

import (
	"context"

	"github.com/dukerupert/starboard/internal/apperr"
	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/model"
)

type AssignResult struct {
	Created []model.Task `json:"created"`
	Skipped []string     `json:"skipped"`
}

// AssignFromPool clones a pool template into a pending task for each user.
// An empty userIDs assigns to every dependent. A user who already has an
// open task with the template's title is skipped.
func (e *Engine) AssignFromPool(ctx context.Context, templateID string, userIDs []string) (*AssignResult, error) {
	tmpl, err := e.load(ctx, e.stores, templateID)
	if err != nil {
		return nil, err
	}
	if !tmpl.IsPool() {
		return nil, apperr.Invalid("template_id", "is not a pool template")
	}

	if len(userIDs) == 0 {
		deps, err := e.stores.Users.ListByRole(ctx, model.RoleDependent)
		if err != nil {
			return nil, err
		}
		for _, u := range deps {
			userIDs = append(userIDs, u.ID)
		}
	}

	res := &AssignResult{Created: []model.Task{}, Skipped: []string{}}
	for _, userID := range userIDs {
		u, err := e.stores.Users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, apperr.NotFound(events.CollectionUsers, userID)
		}

		open, err := e.hasOpenTask(ctx, userID, tmpl.Title)
		if err != nil {
			return nil, err
		}
		if open {
			res.Skipped = append(res.Skipped, userID)
			continue
		}

		in := model.InputOf(*tmpl)
		in.AssignedTo = userID
		created, err := e.AddTask(ctx, in)
		if err != nil {
			return nil, err
		}
		res.Created = append(res.Created, *created)
	}

	e.logger.Info("pool template assigned", "template_id", templateID, "created", len(res.Created), "skipped", len(res.Skipped))
	return res, nil
}

func (e *Engine) hasOpenTask(ctx context.Context, userID, title string) (bool, error) {
	tasks, err := e.stores.Tasks.ListByAssignee(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, t := range tasks {
		if t.Title == title && t.Status != model.StatusVerified && t.Status != model.StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}
