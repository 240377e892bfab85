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

// Student login failures.
var (
	ErrStudentNoToken       = errors.New("登录失败：未返回token")
	ErrMissingIDCredentials = errors.New("请输入身份证号和密码")
	ErrStudentLoginFailed   = errors.New("登录失败")
)

// StudentAuthenticator is the slice of the student API used to log in. Login
// returns the token and the raw user document as the server sent them.
type StudentAuthenticator interface {
	PublicKey(ctx context.Context) (string, error)
	Login(ctx context.Context, idCardNo, encryptedPassword string) (token string, user json.RawMessage, err error)
}

// StudentSession is the mini-program's storage: token, user and an optional
// base URL override.
type StudentSession struct {
	store  Store
	logger *zap.Logger
}

// NewStudentSession wraps store.
func NewStudentSession(store Store, logger *zap.Logger) *StudentSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentSession{store: store, logger: logger}
}

// Token implements httpclient.TokenSource.
func (s *StudentSession) Token() string {
	return s.get(KeyToken)
}

// BaseURL returns the stored server override, or "".
func (s *StudentSession) BaseURL() string {
	return s.get(KeyBaseURL)
}

// SetBaseURL stores a server override; an empty value removes it.
func (s *StudentSession) SetBaseURL(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return s.store.Remove(ctx, KeyBaseURL)
	}
	return s.store.Set(ctx, KeyBaseURL, url)
}

// IsLoggedIn reports whether a token is stored.
func (s *StudentSession) IsLoggedIn() bool {
	return s.Token() != ""
}

// User returns the stored student, or nil. Unparseable data is removed.
func (s *StudentSession) User(ctx context.Context) (*models.Student, error) {
	raw, err := s.store.Get(ctx, KeyUser)
	if err != nil || raw == "" {
		return nil, err
	}
	var user models.Student
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Warn("discard corrupt student user", zap.Error(err))
		return nil, s.store.Remove(ctx, KeyUser)
	}
	return &user, nil
}

// Login authenticates with the id card number and password.
func (s *StudentSession) Login(ctx context.Context, auth StudentAuthenticator, idCardNo, password string) (*models.Student, error) {
	idCardNo = strings.TrimSpace(idCardNo)
	if idCardNo == "" || password == "" {
		return nil, ErrMissingIDCredentials
	}

	publicKey, err := auth.PublicKey(ctx)
	if err != nil {
		return nil, studentLoginError(err)
	}
	if publicKey == "" {
		return nil, ErrPublicKey
	}
	encrypted, err := rsacrypt.EncryptWithPublicKey(password, publicKey)
	if err != nil {
		return nil, err
	}

	token, rawUser, err := auth.Login(ctx, idCardNo, encrypted)
	if err != nil {
		return nil, studentLoginError(err)
	}
	if token == "" {
		return nil, ErrStudentNoToken
	}
	if err := s.store.Set(ctx, KeyToken, token); err != nil {
		return nil, err
	}

	var user *models.Student
	if len(rawUser) > 0 && string(rawUser) != "null" {
		if err := s.store.Set(ctx, KeyUser, string(rawUser)); err != nil {
			return nil, err
		}
		var decoded models.Student
		if err := json.Unmarshal(rawUser, &decoded); err == nil {
			user = &decoded
		}
	}
	return user, nil
}

// Logout clears the token and user.
func (s *StudentSession) Logout(ctx context.Context) error {
	if err := s.store.Remove(ctx, KeyToken); err != nil {
		return err
	}
	return s.store.Remove(ctx, KeyUser)
}

func (s *StudentSession) get(key string) string {
	value, err := s.store.Get(context.Background(), key)
	if err != nil {
		s.logger.Warn("read student session", zap.String("key", key), zap.Error(err))
		return ""
	}
	return value
}

func studentLoginError(err error) error {
	if err == nil || err.Error() == "" {
		return ErrStudentLoginFailed
	}
	return err
}
