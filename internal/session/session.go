package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/pkg/rsacrypt"
)

// Login failures raised before the server is asked to authenticate.
var (
	ErrPublicKey      = errors.New("获取公钥失败")
	ErrNoToken        = errors.New("登录失败：未返回 Token")
	ErrLoginFailed    = errors.New("登录失败，请稍后重试")
	ErrMissingAccount = errors.New("请输入用户名和密码")
)

// AdminAuthenticator is the slice of the admin API used to log in.
type AdminAuthenticator interface {
	PublicKey(ctx context.Context) (string, error)
	Login(ctx context.Context, username, encryptedPassword string) (*models.AdminLoginResponse, error)
}

// Session is the desktop console's user store: the bearer token and the
// logged in admin's summary.
type Session struct {
	store  Store
	logger *zap.Logger
}

// NewSession wraps store.
func NewSession(store Store, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{store: store, logger: logger}
}

// Token implements httpclient.TokenSource.
func (s *Session) Token() string {
	token, err := s.store.Get(context.Background(), KeyToken)
	if err != nil {
		s.logger.Warn("read session token", zap.Error(err))
		return ""
	}
	return token
}

// IsLoggedIn reports whether a token is stored.
func (s *Session) IsLoggedIn() bool {
	return s.Token() != ""
}

// UserInfo returns the stored admin. Unparseable data is removed and
// reported as absent.
func (s *Session) UserInfo(ctx context.Context) (*models.AdminInfo, error) {
	raw, err := s.store.Get(ctx, KeyUserInfo)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var info models.AdminInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		s.logger.Warn("discard corrupt user info", zap.Error(err))
		if rmErr := s.store.Remove(ctx, KeyUserInfo); rmErr != nil {
			return nil, rmErr
		}
		return nil, nil
	}
	return &info, nil
}

// Role returns the stored admin's role, or "" when unknown.
func (s *Session) Role(ctx context.Context) models.AdminRole {
	info, err := s.UserInfo(ctx)
	if err != nil || info == nil {
		return ""
	}
	return info.Role
}

// Login fetches the public key, encrypts password and exchanges the
// credentials for a token. The token and admin summary are persisted.
func (s *Session) Login(ctx context.Context, auth AdminAuthenticator, username, password string) (*models.AdminInfo, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrMissingAccount
	}

	publicKey, err := auth.PublicKey(ctx)
	if err != nil {
		return nil, loginError(err)
	}
	if publicKey == "" {
		return nil, ErrPublicKey
	}

	encrypted, err := rsacrypt.EncryptWithPublicKey(password, publicKey)
	if err != nil {
		return nil, err
	}

	resp, err := auth.Login(ctx, username, encrypted)
	if err != nil {
		return nil, loginError(err)
	}
	if resp == nil || resp.AccessToken == "" {
		return nil, ErrNoToken
	}

	if err := s.store.Set(ctx, KeyToken, resp.AccessToken); err != nil {
		return nil, err
	}
	info := resp.Admin
	if info == nil {
		info = &models.AdminInfo{}
	} else {
		payload, err := json.Marshal(info)
		if err != nil {
			return nil, err
		}
		if err := s.store.Set(ctx, KeyUserInfo, string(payload)); err != nil {
			return nil, err
		}
	}
	s.logger.Info("admin logged in", zap.String("username", username), zap.String("role", string(info.Role)))
	return info, nil
}

// Logout clears the token and admin summary.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Remove(ctx, KeyToken); err != nil {
		return err
	}
	return s.store.Remove(ctx, KeyUserInfo)
}

func loginError(err error) error {
	if err == nil || err.Error() == "" {
		return ErrLoginFailed
	}
	return err
}
