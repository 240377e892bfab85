// Package student wraps the /api endpoints used by the student app.
package student

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/pkg/httpclient"
)

// Client calls the student API through a mini-program profile HTTP helper.
type Client struct {
	http   *httpclient.Client
	logger *zap.Logger
}

// New wraps hc.
func New(hc *httpclient.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{http: hc, logger: logger}
}

type publicKeyPayload struct {
	PublicKey      string `json:"public_key"`
	PublicKeyCamel string `json:"publicKey"`
}

// PublicKey fetches the login key without authentication.
func (c *Client) PublicKey(ctx context.Context) (string, error) {
	var resp publicKeyPayload
	if err := c.http.Get(ctx, "/auth/public-key", nil, &resp, httpclient.WithoutAuth()); err != nil {
		return "", err
	}
	if resp.PublicKey != "" {
		return resp.PublicKey, nil
	}
	return resp.PublicKeyCamel, nil
}

type loginPayload struct {
	AccessToken string          `json:"access_token"`
	Token       string          `json:"token"`
	User        json.RawMessage `json:"user"`
	UserInfo    json.RawMessage `json:"userInfo"`
	Data        *struct {
		Token    string          `json:"token"`
		UserInfo json.RawMessage `json:"userInfo"`
	} `json:"data"`
}

func (p loginPayload) token() string {
	switch {
	case p.AccessToken != "":
		return p.AccessToken
	case p.Data != nil && p.Data.Token != "":
		return p.Data.Token
	}
	return p.Token
}

func (p loginPayload) user() json.RawMessage {
	for _, raw := range []json.RawMessage{p.User, p.dataUser(), p.UserInfo} {
		if len(raw) > 0 && string(raw) != "null" {
			return raw
		}
	}
	return nil
}

func (p loginPayload) dataUser() json.RawMessage {
	if p.Data == nil {
		return nil
	}
	return p.Data.UserInfo
}

// Login exchanges the id card number and encrypted password for a token and
// the raw user document.
func (c *Client) Login(ctx context.Context, idCardNo, encryptedPassword string) (string, json.RawMessage, error) {
	req := models.StudentLoginRequest{IDCardNo: idCardNo, Password: encryptedPassword}
	var resp loginPayload
	if err := c.http.Post(ctx, "/auth/login", req, &resp, httpclient.WithoutAuth()); err != nil {
		return "", nil, err
	}
	return resp.token(), resp.user(), nil
}

// AuthProfile returns the logged in student record.
func (c *Client) AuthProfile(ctx context.Context) (*models.Student, error) {
	var resp dto.UserResponse
	if err := c.http.Get(ctx, "/auth/profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

type dashboardPayload struct {
	Score         *int                 `json:"score"`
	TotalScore    *int                 `json:"total_score"`
	Comment       string               `json:"comment"`
	ProcessStatus models.ProcessStatus `json:"process_status"`
}

// Dashboard returns the home screen data. When the dashboard call fails but
// the score call succeeds, the returned dashboard carries only the score and
// err is still the dashboard failure.
func (c *Client) Dashboard(ctx context.Context) (*dto.StudentDashboard, error) {
	var resp dashboardPayload
	err := c.http.Get(ctx, "/student/dashboard", nil, &resp)
	if err == nil {
		out := &dto.StudentDashboard{Comment: resp.Comment, ProcessStatus: resp.ProcessStatus}
		switch {
		case resp.Score != nil:
			out.Score = *resp.Score
		case resp.TotalScore != nil:
			out.Score = *resp.TotalScore
		}
		return out, nil
	}

	c.logger.Debug("dashboard unavailable, falling back to score", zap.Error(err))
	score, scoreErr := c.Score(ctx)
	if scoreErr != nil {
		return nil, err
	}
	return &dto.StudentDashboard{Score: score.TotalScore, ProcessStatus: models.NewProcessStatus()}, err
}

// Score returns the score summary with the latest changes.
func (c *Client) Score(ctx context.Context) (*dto.StudentScore, error) {
	var resp dto.StudentScore
	if err := c.http.Get(ctx, "/student/score", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScoreHistory pages through every score change.
func (c *Client) ScoreHistory(ctx context.Context, page, perPage int) (*dto.Page[models.ScoreLog], error) {
	query := httpclient.Query{}
	if page > 0 {
		query.Set("page", page)
	}
	if perPage > 0 {
		query.Set("per_page", perPage)
	}
	var resp dto.Page[models.ScoreLog]
	if err := c.http.Get(ctx, "/student/score/history", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Profile returns the profile screen: personal data, english scores and
// achievements.
func (c *Client) Profile(ctx context.Context) (*dto.StudentProfile, error) {
	var resp dto.StudentProfile
	if err := c.http.Get(ctx, "/student/profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CertificateTypes lists the certificate names a student may submit.
func (c *Client) CertificateTypes(ctx context.Context) (*dto.List[models.CertificateType], error) {
	var resp dto.List[models.CertificateType]
	if err := c.http.Get(ctx, "/certificate/types", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListCertificates returns the student's certificates, newest first. A nil
// status lists every state.
func (c *Client) ListCertificates(ctx context.Context, status *models.CertificateStatus) ([]models.Certificate, error) {
	var resp dto.CertificateListResponse
	if err := c.http.Get(ctx, "/certificate/list", httpclient.Query{"status": status}, &resp); err != nil {
		return nil, err
	}
	return resp.Certificates, nil
}

// GetCertificate returns one of the student's certificates.
func (c *Client) GetCertificate(ctx context.Context, id int) (*models.Certificate, error) {
	var resp dto.CertificateResponse
	if err := c.http.Get(ctx, fmt.Sprintf("/certificate/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Certificate, nil
}

// UploadImage stores a certificate image and returns its location.
func (c *Client) UploadImage(ctx context.Context, fileName string, content io.Reader) (*dto.ImageUploadResponse, error) {
	var resp dto.ImageUploadResponse
	up := httpclient.UploadRequest{FileName: fileName, Content: content}
	if err := c.http.Upload(ctx, "/certificate/image", up, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitCertificate registers an uploaded image as a certificate pending review.
func (c *Client) SubmitCertificate(ctx context.Context, req dto.CertificateUploadRequest) (*dto.CertificateResponse, error) {
	var resp dto.CertificateResponse
	if err := c.http.Post(ctx, "/certificate/upload", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
