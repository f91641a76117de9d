package task

import "time"

// Task is the persisted record. Agents hold only transient copies of it.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateParams carries the validated fields for an insert. DueDate is already
// resolved to an absolute timestamp; free-form text never reaches the store.
type CreateParams struct {
	Title       string
	Description string
	DueDate     *time.Time
}

// UpdateParams applies only the fields that are non-nil.
type UpdateParams struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Completed   *bool
}

func (p UpdateParams) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil && p.Completed == nil
}
