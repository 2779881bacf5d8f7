package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"buildmatch/internal/domain"
	"buildmatch/internal/events"
	"buildmatch/internal/policy"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ProjectID   string
	Title       string
	Description string
	Status      domain.TaskStatus
	RIBAStage   *domain.RIBAStage
	DueDate     *string
	AssigneeID  *string
}

// CreateTask appends a task to the tail of its (project, status) partition.
// The order index is computed and written in a single INSERT inside the
// transaction, so two concurrent creations on an empty partition get 0 and 1.
func (e Engine) CreateTask(ctx context.Context, p policy.Principal, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.Status == "" {
		opts.Status = domain.StatusBacklog
	}
	if !domain.ValidTaskStatus(string(opts.Status)) {
		return domain.Task{}, fmt.Errorf("invalid status %s", opts.Status)
	}
	if opts.RIBAStage != nil && !domain.ValidRIBAStage(string(*opts.RIBAStage)) {
		return domain.Task{}, fmt.Errorf("invalid stage %s", *opts.RIBAStage)
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Task{}, err
	}
	if opts.AssigneeID != nil && *opts.AssigneeID != "" {
		if _, err := e.Repo.GetProfile(ctx, *opts.AssigneeID); err != nil {
			return domain.Task{}, err
		}
	}
	now := e.timestamp()
	t := domain.Task{
		ID:          uuid.New().String(),
		ProjectID:   opts.ProjectID,
		Title:       opts.Title,
		Description: opts.Description,
		Status:      opts.Status,
		RIBAStage:   opts.RIBAStage,
		DueDate:     opts.DueDate,
		AssigneeID:  opts.AssigneeID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	idx, err := e.Repo.InsertTask(ctx, tx, t)
	if err != nil {
		return domain.Task{}, err
	}
	t.OrderIndex = idx
	if err := e.Events.Append(ctx, tx, "task.created", t.ProjectID, "task", t.ID, p.UserID, events.EventPayload{
		"title":       t.Title,
		"status":      string(t.Status),
		"order_index": t.OrderIndex,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// ListTasks returns a project's board in display order.
func (e Engine) ListTasks(ctx context.Context, projectID string) ([]domain.TaskEntry, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	tasks, err := e.Repo.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.TaskEntry{}
	}
	return tasks, nil
}

// TaskMoveOptions reposition a task on the board. Nil fields are left
// untouched; supplied values are applied verbatim without renumbering
// siblings.
type TaskMoveOptions struct {
	ProjectID  string
	TaskID     string
	Status     *domain.TaskStatus
	OrderIndex *int
}

func (e Engine) MoveTask(ctx context.Context, p policy.Principal, opts TaskMoveOptions) (domain.Task, error) {
	if opts.Status == nil && opts.OrderIndex == nil {
		return domain.Task{}, errors.New("status or order_index is required")
	}
	if opts.Status != nil && !domain.ValidTaskStatus(string(*opts.Status)) {
		return domain.Task{}, fmt.Errorf("invalid status %s", *opts.Status)
	}
	if opts.OrderIndex != nil && *opts.OrderIndex < 0 {
		return domain.Task{}, errors.New("invalid order_index")
	}
	t, err := e.Repo.GetTask(ctx, opts.TaskID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.ProjectID != opts.ProjectID {
		return domain.Task{}, fmt.Errorf("invalid task %s: not in project %s", opts.TaskID, opts.ProjectID)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	updatedAt := e.timestamp()
	if err := e.Repo.UpdateTaskPlacement(ctx, tx, t.ID, opts.Status, opts.OrderIndex, updatedAt); err != nil {
		return domain.Task{}, err
	}
	payload := events.EventPayload{"from_status": string(t.Status)}
	if opts.Status != nil {
		payload["to_status"] = string(*opts.Status)
		t.Status = *opts.Status
	}
	if opts.OrderIndex != nil {
		payload["order_index"] = *opts.OrderIndex
		t.OrderIndex = *opts.OrderIndex
	}
	if err := e.Events.Append(ctx, tx, "task.moved", t.ProjectID, "task", t.ID, p.UserID, payload); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.UpdatedAt = updatedAt
	return t, nil
}

// ReindexPartition renumbers one (project, status) partition to 0..n-1 in
// the supplied order, atomically. The id list must cover the partition
// exactly; anything missing or foreign rejects the whole call.
func (e Engine) ReindexPartition(ctx context.Context, p policy.Principal, projectID string, status domain.TaskStatus, orderedIDs []string) error {
	if !domain.ValidTaskStatus(string(status)) {
		return fmt.Errorf("invalid status %s", status)
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := e.Repo.ListPartitionIDs(ctx, tx, projectID, status)
	if err != nil {
		return err
	}
	if len(current) != len(orderedIDs) {
		return fmt.Errorf("invalid task list: partition has %d tasks, got %d", len(current), len(orderedIDs))
	}
	inPartition := make(map[string]bool, len(current))
	for _, id := range current {
		inPartition[id] = true
	}
	seen := make(map[string]bool, len(orderedIDs))
	updatedAt := e.timestamp()
	for i, id := range orderedIDs {
		if !inPartition[id] {
			return fmt.Errorf("invalid task %s: not in partition %s/%s", id, projectID, status)
		}
		if seen[id] {
			return fmt.Errorf("invalid task list: %s listed twice", id)
		}
		seen[id] = true
		if err := e.Repo.SetOrderIndex(ctx, tx, id, i, updatedAt); err != nil {
			return err
		}
	}
	if err := e.Events.Append(ctx, tx, "board.reindexed", projectID, "project", projectID, p.UserID, events.EventPayload{
		"status": string(status),
		"count":  len(orderedIDs),
	}); err != nil {
		return err
	}
	return tx.Commit()
}
