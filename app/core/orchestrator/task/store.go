package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskpilot/app/core/orchestrator/db"
)

// ErrNoFields is returned by Update when no field was supplied, so a no-op
// call is never silently reported as success.
var ErrNoFields = errors.New("no fields provided to update")

type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const taskColumns = `id, title, description, due_date, completed, created_at, updated_at`

func (s *Store) Insert(ctx context.Context, params CreateParams) (Task, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return Task{}, fmt.Errorf("title is required")
	}
	now := time.Now().UTC()
	res, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO tasks (title, description, due_date, completed, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
		title, params.Description, formatDue(params.DueDate), now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return Task{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Task{}, err
	}
	return Task{
		ID:          id,
		Title:       title,
		Description: params.Description,
		DueDate:     params.DueDate,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Task, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

func (s *Store) List(ctx context.Context) ([]Task, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

func (s *Store) Update(ctx context.Context, id int64, params UpdateParams) (Task, error) {
	if params.Empty() {
		return Task{}, ErrNoFields
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return Task{}, err
	}

	if params.Title != nil {
		title := strings.TrimSpace(*params.Title)
		if title == "" {
			return Task{}, fmt.Errorf("title is required")
		}
		current.Title = title
	}
	if params.Description != nil {
		current.Description = *params.Description
	}
	if params.DueDate != nil {
		current.DueDate = params.DueDate
	}
	if params.Completed != nil {
		current.Completed = *params.Completed
	}
	current.UpdatedAt = time.Now().UTC()

	_, err = s.db.Conn().ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, due_date = ?, completed = ?, updated_at = ? WHERE id = ?`,
		current.Title, current.Description, formatDue(current.DueDate), boolToInt(current.Completed),
		current.UpdatedAt.Format(time.RFC3339), id,
	)
	if err != nil {
		return Task{}, err
	}
	return current, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.Conn().ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Complete marks a task done. Completing an already-completed task succeeds
// and still refreshes updated_at.
func (s *Store) Complete(ctx context.Context, id int64) (Task, error) {
	completed := true
	return s.Update(ctx, id, UpdateParams{Completed: &completed})
}

func scanTask(row interface{ Scan(...interface{}) error }) (Task, error) {
	var (
		t         Task
		due       sql.NullString
		completed int
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &due, &completed, &createdAt, &updatedAt); err != nil {
		return Task{}, err
	}
	t.Completed = completed != 0
	if due.Valid && due.String != "" {
		parsed, err := time.Parse(time.RFC3339, due.String)
		if err != nil {
			return Task{}, fmt.Errorf("parse due_date %q: %w", due.String, err)
		}
		t.DueDate = &parsed
	}
	var err error
	if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Task{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Task{}, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	return t, nil
}

func formatDue(due *time.Time) interface{} {
	if due == nil {
		return nil
	}
	return due.UTC().Format(time.RFC3339)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
