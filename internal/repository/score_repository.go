package repository

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

// ScoreLogRepository stores score changes.
type ScoreLogRepository struct {
	db *DB
}

// NewScoreLogRepository constructs a ScoreLogRepository.
func NewScoreLogRepository(db *DB) *ScoreLogRepository {
	return &ScoreLogRepository{db: db}
}

// ListByUser returns a student's changes in chronological order.
func (r *ScoreLogRepository) ListByUser(ctx context.Context, userID int) ([]models.ScoreLog, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]models.ScoreLog, 0)
	for _, log := range r.db.scoreLogs {
		if log.UserID == userID {
			out = append(out, log)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreateTime.Equal(out[j].CreateTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreateTime.Before(out[j].CreateTime)
	})
	return out, nil
}

// Create stores a change and assigns its id. The student must exist.
func (r *ScoreLogRepository) Create(ctx context.Context, log *models.ScoreLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.students[log.UserID]; !ok {
		return appErrors.ErrRecordNotFound
	}
	if log.ID == 0 {
		log.ID = r.db.nextID(tableScoreLogs)
	} else {
		r.db.reserve(tableScoreLogs, log.ID)
	}
	if log.CreateTime.IsZero() {
		log.CreateTime = time.Now().UTC()
	}
	r.db.scoreLogs[log.ID] = *log
	return nil
}

// CommentRepository stores admin evaluations.
type CommentRepository struct {
	db *DB
}

// NewCommentRepository constructs a CommentRepository.
func NewCommentRepository(db *DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// ListByUser returns a student's comments, newest first.
func (r *CommentRepository) ListByUser(ctx context.Context, userID int) ([]models.Comment, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]models.Comment, 0)
	for _, c := range r.db.comments {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreateTime.Equal(out[j].CreateTime) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreateTime.After(out[j].CreateTime)
	})
	return out, nil
}

// Create stores a comment and assigns its id.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if comment.ID == 0 {
		comment.ID = r.db.nextID(tableComments)
	} else {
		r.db.reserve(tableComments, comment.ID)
	}
	if comment.CreateTime.IsZero() {
		comment.CreateTime = time.Now().UTC()
	}
	r.db.comments[comment.ID] = *comment
	return nil
}
