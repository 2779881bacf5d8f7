package repo

import (
	"context"
	"database/sql"

	"buildmatch/internal/domain"
)

// statusRank fixes the board display order of status partitions.
const statusRank = `CASE t.status
WHEN 'BACKLOG' THEN 0
WHEN 'TODO' THEN 1
WHEN 'IN_PROGRESS' THEN 2
WHEN 'REVIEW' THEN 3
WHEN 'DONE' THEN 4
ELSE 5 END`

const taskColumns = `t.id,t.project_id,t.title,COALESCE(t.description,''),t.status,t.riba_stage,t.due_date,t.assignee_id,t.order_index,t.created_at,t.updated_at`

func scanTask(scan func(...any) error) (domain.Task, error) {
	var t domain.Task
	var stage, due, assignee sql.NullString
	err := scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &stage, &due, &assignee, &t.OrderIndex, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if stage.Valid {
		s := domain.RIBAStage(stage.String)
		t.RIBAStage = &s
	}
	if due.Valid {
		t.DueDate = &due.String
	}
	if assignee.Valid {
		t.AssigneeID = &assignee.String
	}
	return t, nil
}

// InsertTask computes the task's order index inside the INSERT itself:
// max+1 within the (project_id, status) partition, 0 when empty. Running the
// read and the write as one statement inside the caller's transaction keeps
// concurrent creations from colliding on the same index.
func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) (int, error) {
	var stage any
	if t.RIBAStage != nil {
		stage = string(*t.RIBAStage)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,project_id,title,description,status,riba_stage,due_date,assignee_id,order_index,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,
	(SELECT COALESCE(MAX(order_index)+1,0) FROM tasks WHERE project_id=? AND status=?),
	?,?)`,
		t.ID, t.ProjectID, t.Title, nullable(t.Description), string(t.Status), stage, nullableStringPtr(t.DueDate),
		nullableStringPtr(t.AssigneeID), t.ProjectID, string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return 0, err
	}
	var idx int
	if err := tx.QueryRowContext(ctx, `SELECT order_index FROM tasks WHERE id=?`, t.ID).Scan(&idx); err != nil {
		return 0, err
	}
	return idx, nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id=?`, id)
	return scanTask(row.Scan)
}

// ListTasks returns a project's tasks in board order: status partition,
// then order index ascending, then creation time descending as a tiebreak
// for historical rows with equal indexes. Assignee display fields ride along.
func (r Repo) ListTasks(ctx context.Context, projectID string) ([]domain.TaskEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+`, pp.id, pp.user_id, u.full_name, u.email
FROM tasks t
LEFT JOIN professional_profiles pp ON pp.id=t.assignee_id
LEFT JOIN users u ON u.id=pp.user_id
WHERE t.project_id=?
ORDER BY `+statusRank+` ASC, t.order_index ASC, t.created_at DESC, t.id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskEntry
	for rows.Next() {
		var e domain.TaskEntry
		var stage, due, assignee sql.NullString
		var profileID, userID, fullName, email sql.NullString
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Title, &e.Description, &e.Status, &stage, &due, &assignee,
			&e.OrderIndex, &e.CreatedAt, &e.UpdatedAt, &profileID, &userID, &fullName, &email); err != nil {
			return nil, err
		}
		if stage.Valid {
			s := domain.RIBAStage(stage.String)
			e.RIBAStage = &s
		}
		if due.Valid {
			e.DueDate = &due.String
		}
		if assignee.Valid {
			e.AssigneeID = &assignee.String
		}
		if profileID.Valid {
			e.Assignee = &domain.AssigneeRef{
				ProfileID: profileID.String,
				UserID:    userID.String,
				FullName:  fullName.String,
				Email:     email.String,
			}
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// UpdateTaskPlacement applies the supplied status and/or order index
// verbatim. It does not renumber siblings; callers own partition
// consistency when reordering (ReindexPartition is the safe path).
func (r Repo) UpdateTaskPlacement(ctx context.Context, tx *sql.Tx, id string, status *domain.TaskStatus, orderIndex *int, updatedAt string) error {
	fields := "updated_at=?"
	args := []any{updatedAt}
	if status != nil {
		fields += ", status=?"
		args = append(args, string(*status))
	}
	if orderIndex != nil {
		fields += ", order_index=?"
		args = append(args, *orderIndex)
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET `+fields+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPartitionIDs returns the task ids in one (project, status) partition.
func (r Repo) ListPartitionIDs(ctx context.Context, tx *sql.Tx, projectID string, status domain.TaskStatus) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM tasks WHERE project_id=? AND status=? ORDER BY order_index ASC, created_at DESC`, projectID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetOrderIndex writes one task's order index inside a reindex transaction.
func (r Repo) SetOrderIndex(ctx context.Context, tx *sql.Tx, id string, idx int, updatedAt string) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET order_index=?, updated_at=? WHERE id=?`, idx, updatedAt, id)
	return err
}

func (r Repo) CountTasksByStatus(ctx context.Context, projectID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks WHERE project_id=? GROUP BY status`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}
