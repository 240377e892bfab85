package repository

import (
	"context"
	"time"

	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

// ExportTaskRepository keeps export job state for the lifetime of the process.
type ExportTaskRepository struct {
	db *DB
}

// NewExportTaskRepository constructs an ExportTaskRepository.
func NewExportTaskRepository(db *DB) *ExportTaskRepository {
	return &ExportTaskRepository{db: db}
}

// Create stores a new task.
func (r *ExportTaskRepository) Create(ctx context.Context, task *models.ExportTask) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.exports[task.TaskID]; exists {
		return appErrors.ErrConflict
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	r.db.exports[task.TaskID] = cloneExport(*task)
	return nil
}

// FindByID fetches a task.
func (r *ExportTaskRepository) FindByID(ctx context.Context, taskID string) (*models.ExportTask, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	t, ok := r.db.exports[taskID]
	if !ok {
		return nil, appErrors.ErrRecordNotFound
	}
	t = cloneExport(t)
	return &t, nil
}

// Update applies fn to the stored task atomically and returns the result.
func (r *ExportTaskRepository) Update(ctx context.Context, taskID string, fn func(*models.ExportTask)) (*models.ExportTask, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	t, ok := r.db.exports[taskID]
	if !ok {
		return nil, appErrors.ErrRecordNotFound
	}
	fn(&t)
	r.db.exports[taskID] = cloneExport(t)
	t = cloneExport(t)
	return &t, nil
}

// FinishedBefore returns tasks that reached a terminal state before cutoff.
func (r *ExportTaskRepository) FinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ExportTask, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]models.ExportTask, 0)
	for _, t := range r.db.exports {
		if t.FinishedAt != nil && t.FinishedAt.Before(cutoff) {
			out = append(out, cloneExport(t))
		}
	}
	return out, nil
}

// Delete forgets a task.
func (r *ExportTaskRepository) Delete(ctx context.Context, taskID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	delete(r.db.exports, taskID)
	return nil
}
