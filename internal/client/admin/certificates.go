package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/pkg/httpclient"
)

// Audit validation failures, worded as the server words them.
var (
	ErrActionRequired = errors.New("action 不能为空")
	ErrRejectReason   = errors.New("驳回时必须提供 reject_reason")
)

// CertificateQuery filters the review list. A nil Status lists every state.
type CertificateQuery struct {
	Status  *models.CertificateStatus
	Page    int
	PerPage int
}

// ListCertificates returns one page of certificates visible to the admin.
func (c *Client) ListCertificates(ctx context.Context, q CertificateQuery) (*dto.Page[models.CertificateView], error) {
	query := httpclient.Query{
		"status":   q.Status,
		"page":     positive(q.Page),
		"per_page": positive(q.PerPage),
	}
	var resp dto.Page[models.CertificateView]
	if err := c.http.Get(ctx, prefix+"/certificates", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetCertificate returns one certificate with its student.
func (c *Client) GetCertificate(ctx context.Context, id int) (*dto.CertificateViewResponse, error) {
	var resp dto.CertificateViewResponse
	if err := c.http.Get(ctx, path("/certificates/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ValidateAudit applies the server's audit rules before a request is sent.
func ValidateAudit(action, rejectReason string) error {
	action = strings.TrimSpace(action)
	switch action {
	case "":
		return ErrActionRequired
	case models.AuditApprove:
		return nil
	case models.AuditReject:
		if strings.TrimSpace(rejectReason) == "" {
			return ErrRejectReason
		}
		return nil
	default:
		return fmt.Errorf("无效的 action: %s，支持: approve/reject", action)
	}
}

// AuditCertificate approves or rejects a certificate. The reason is only
// sent with a rejection.
func (c *Client) AuditCertificate(ctx context.Context, id int, action, rejectReason string) (*dto.AuditResponse, error) {
	if err := ValidateAudit(action, rejectReason); err != nil {
		return nil, err
	}
	req := dto.AuditRequest{Action: strings.TrimSpace(action)}
	if req.Action == models.AuditReject {
		req.RejectReason = strings.TrimSpace(rejectReason)
	}
	var resp dto.AuditResponse
	if err := c.http.Post(ctx, path("/certificates/%d/audit", id), req, &resp); err != nil {
		return nil, err
	}
	c.logger.Debug("certificate audited", zap.Int("id", id), zap.String("action", req.Action))
	return &resp, nil
}
