// Package admin wraps the /api/admin endpoints used by the desktop console.
package admin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/internal/session"
	"github.com/noah-isme/contrail/pkg/httpclient"
	"github.com/noah-isme/contrail/pkg/rsacrypt"
)

const prefix = "/api/admin"

// Client calls the admin API through a desktop profile HTTP helper.
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

// HTTP exposes the underlying helper.
func (c *Client) HTTP() *httpclient.Client { return c.http }

// PublicKey fetches the login key without authentication.
func (c *Client) PublicKey(ctx context.Context) (string, error) {
	var resp models.PublicKeyResponse
	if err := c.http.Get(ctx, prefix+"/auth/public-key", nil, &resp, httpclient.WithoutAuth()); err != nil {
		return "", err
	}
	return resp.PublicKey, nil
}

// Login exchanges the username and encrypted password for a token.
func (c *Client) Login(ctx context.Context, username, encryptedPassword string) (*models.AdminLoginResponse, error) {
	req := models.AdminLoginRequest{Username: username, Password: encryptedPassword}
	var resp models.AdminLoginResponse
	if err := c.http.Post(ctx, prefix+"/auth/login", req, &resp, httpclient.WithoutAuth()); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Info returns the logged in admin.
func (c *Client) Info(ctx context.Context) (*dto.AdminInfoResponse, error) {
	var resp dto.AdminInfoResponse
	if err := c.http.Get(ctx, prefix+"/auth/info", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats returns the dashboard counters.
func (c *Client) Stats(ctx context.Context) (*dto.DashboardStats, error) {
	var resp dto.DashboardStats
	if err := c.http.Get(ctx, prefix+"/dashboard/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// encryptPassword fetches the public key and encrypts plain with it.
func (c *Client) encryptPassword(ctx context.Context, plain string) (string, error) {
	key, err := c.PublicKey(ctx)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", session.ErrPublicKey
	}
	return rsacrypt.EncryptWithPublicKey(plain, key)
}

func path(format string, args ...interface{}) string {
	return prefix + fmt.Sprintf(format, args...)
}

// positive drops non-positive paging values from queries.
func positive(n int) interface{} {
	if n <= 0 {
		return nil
	}
	return n
}
