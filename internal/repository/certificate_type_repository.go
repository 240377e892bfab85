package repository

import (
	"context"
	"time"

	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

// CertificateTypeRepository manages certificate categories.
type CertificateTypeRepository struct {
	db *DB
}

// NewCertificateTypeRepository constructs a CertificateTypeRepository.
func NewCertificateTypeRepository(db *DB) *CertificateTypeRepository {
	return &CertificateTypeRepository{db: db}
}

// List returns every type ordered by id.
func (r *CertificateTypeRepository) List(ctx context.Context) ([]models.CertificateType, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]models.CertificateType, 0, len(r.db.certTypes))
	for _, id := range sortedKeys(r.db.certTypes) {
		out = append(out, r.db.certTypes[id])
	}
	return out, nil
}

// FindByID fetches a type.
func (r *CertificateTypeRepository) FindByID(ctx context.Context, id int) (*models.CertificateType, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	t, ok := r.db.certTypes[id]
	if !ok {
		return nil, appErrors.ErrRecordNotFound
	}
	return &t, nil
}

// ExistsByName reports whether a type already uses name.
func (r *CertificateTypeRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, t := range r.db.certTypes {
		if t.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// Missing returns the ids that do not name a type, in input order.
func (r *CertificateTypeRepository) Missing(ctx context.Context, ids []int) ([]int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	missing := make([]int, 0)
	for _, id := range ids {
		if _, ok := r.db.certTypes[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Create stores a type and assigns its id.
func (r *CertificateTypeRepository) Create(ctx context.Context, t *models.CertificateType) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if t.ID == 0 {
		t.ID = r.db.nextID(tableCertTypes)
	} else {
		r.db.reserve(tableCertTypes, t.ID)
	}
	if t.CreateTime.IsZero() {
		t.CreateTime = time.Now().UTC()
	}
	r.db.certTypes[t.ID] = *t
	return nil
}

// Delete removes a type.
func (r *CertificateTypeRepository) Delete(ctx context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.certTypes[id]; !ok {
		return appErrors.ErrRecordNotFound
	}
	delete(r.db.certTypes, id)
	return nil
}
