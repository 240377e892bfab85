package repository

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
)

// CertificateRepository manages uploaded certificates.
type CertificateRepository struct {
	db *DB
}

// NewCertificateRepository constructs a CertificateRepository.
func NewCertificateRepository(db *DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// List returns certificates matching the filter, latest upload first, plus
// the total before pagination. A nil UserIDs means every student; a non-zero
// UserID narrows to one student.
func (r *CertificateRepository) List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	matched := make([]models.Certificate, 0)
	for _, c := range r.db.certificates {
		if filter.UserIDs != nil && !containsInt(filter.UserIDs, c.UserID) {
			continue
		}
		if filter.UserID != 0 && c.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		matched = append(matched, cloneCertificate(c))
	}
	sortByUploadDesc(matched)
	return paginate(matched, filter.Page, filter.PerPage), len(matched), nil
}

// ListByUser returns a student's certificates, latest upload first.
func (r *CertificateRepository) ListByUser(ctx context.Context, userID int) ([]models.Certificate, error) {
	items, _, err := r.List(ctx, models.CertificateFilter{UserID: userID})
	return items, err
}

// FindByID fetches a certificate.
func (r *CertificateRepository) FindByID(ctx context.Context, id int) (*models.Certificate, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	c, ok := r.db.certificates[id]
	if !ok {
		return nil, appErrors.ErrRecordNotFound
	}
	out := cloneCertificate(c)
	return &out, nil
}

// Create stores a new certificate and assigns its id.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if cert.ID == 0 {
		cert.ID = r.db.nextID(tableCertificates)
	} else {
		r.db.reserve(tableCertificates, cert.ID)
	}
	if cert.UploadTime.IsZero() {
		cert.UploadTime = time.Now().UTC()
	}
	cert.StatusText = cert.Status.Text()
	r.db.certificates[cert.ID] = cloneCertificate(*cert)
	return nil
}

// UpdateReview stores a review decision.
func (r *CertificateRepository) UpdateReview(ctx context.Context, id int, status models.CertificateStatus, reason string, reviewedAt time.Time) (*models.Certificate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.certificates[id]
	if !ok {
		return nil, appErrors.ErrRecordNotFound
	}
	c.Status = status
	c.RejectReason = reason
	c.ReviewTime = &reviewedAt
	r.db.certificates[id] = cloneCertificate(c)
	out := cloneCertificate(c)
	return &out, nil
}

// CountByStatus counts certificates per status for the given students. A nil
// slice covers every student.
func (r *CertificateRepository) CountByStatus(ctx context.Context, userIDs []int) (map[models.CertificateStatus]int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	counts := map[models.CertificateStatus]int{
		models.CertificatePending:  0,
		models.CertificateApproved: 0,
		models.CertificateRejected: 0,
	}
	for _, c := range r.db.certificates {
		if userIDs != nil && !containsInt(userIDs, c.UserID) {
			continue
		}
		counts[c.Status]++
	}
	return counts, nil
}

func sortByUploadDesc(items []models.Certificate) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].UploadTime.Equal(items[j].UploadTime) {
			return items[i].ID > items[j].ID
		}
		return items[i].UploadTime.After(items[j].UploadTime)
	})
}
