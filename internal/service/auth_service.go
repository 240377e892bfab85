package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
	"github.com/noah-isme/contrail/pkg/rsacrypt"
)

type authAdminRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.Admin, error)
	FindByID(ctx context.Context, id int) (*models.Admin, error)
}

type authStudentRepository interface {
	FindByIDCard(ctx context.Context, idCardNo string) (*models.Student, error)
	FindByID(ctx context.Context, id int) (*models.Student, error)
}

// AuthConfig defines configuration for token issuance.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService handles both login flows. Passwords arrive RSA encrypted with
// the public half of keys.
type AuthService struct {
	admins   authAdminRepository
	students authStudentRepository
	keys     *rsacrypt.KeyPair
	metrics  *MetricsService
	logger   *zap.Logger
	config   AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(admins authAdminRepository, students authStudentRepository, keys *rsacrypt.KeyPair, metrics *MetricsService, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	if config.Issuer == "" {
		config.Issuer = "contrail-mock"
	}
	return &AuthService{admins: admins, students: students, keys: keys, metrics: metrics, logger: logger, config: config}
}

// PublicKey returns the PEM encoded key clients encrypt passwords with.
func (s *AuthService) PublicKey() string {
	return s.keys.PublicKeyPEM()
}

// DecryptPassword reverses the client side RSA encryption.
func (s *AuthService) DecryptPassword(ciphertext string) (string, error) {
	plain, err := s.keys.Decrypt(ciphertext)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrDecryptPassword.Code, appErrors.ErrDecryptPassword.Status, appErrors.ErrDecryptPassword.Message)
	}
	return plain, nil
}

// AdminLogin authenticates a console operator.
func (s *AuthService) AdminLogin(ctx context.Context, req models.AdminLoginRequest) (*models.AdminLoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "用户名和密码不能为空")
	}
	password, err := s.DecryptPassword(req.Password)
	if err != nil {
		return nil, err
	}

	admin, err := s.admins.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			s.metrics.RecordLogin(models.SubjectAdmin, false)
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch admin")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.metrics.RecordLogin(models.SubjectAdmin, false)
		return nil, appErrors.ErrInvalidCredentials
	}

	token, err := s.generateAccessToken(admin.ID, models.SubjectAdmin, admin.Role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	s.metrics.RecordLogin(models.SubjectAdmin, true)
	s.logger.Info("admin logged in", zap.Int("admin_id", admin.ID), zap.String("role", string(admin.Role)))

	return &models.AdminLoginResponse{
		AccessToken: token,
		Admin: &models.AdminInfo{
			ID:            admin.ID,
			Username:      admin.Username,
			Name:          admin.Name,
			Role:          admin.Role,
			DepartmentIDs: admin.DepartmentIDs,
		},
	}, nil
}

// StudentLogin authenticates a student by id card number.
func (s *AuthService) StudentLogin(ctx context.Context, req models.StudentLoginRequest) (*models.StudentLoginResponse, error) {
	idCard := strings.TrimSpace(req.IDCardNo)
	if idCard == "" || req.Password == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "身份证号和密码不能为空")
	}
	password, err := s.DecryptPassword(req.Password)
	if err != nil {
		return nil, err
	}

	student, err := s.students.FindByIDCard(ctx, idCard)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			s.metrics.RecordLogin(models.SubjectStudent, false)
			return nil, appErrors.ErrInvalidStudentLogin
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(password)); err != nil {
		s.metrics.RecordLogin(models.SubjectStudent, false)
		return nil, appErrors.ErrInvalidStudentLogin
	}

	token, err := s.generateAccessToken(student.ID, models.SubjectStudent, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	s.metrics.RecordLogin(models.SubjectStudent, true)
	return &models.StudentLoginResponse{AccessToken: token, User: student}, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, appErrors.ErrUnauthorized.Message)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

// CurrentAdmin loads the admin behind verified claims.
func (s *AuthService) CurrentAdmin(ctx context.Context, claims *models.JWTClaims) (*models.Admin, error) {
	if claims == nil || claims.Kind != models.SubjectAdmin {
		return nil, appErrors.ErrUnauthorized
	}
	admin, err := s.admins.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "管理员不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admin")
	}
	return admin, nil
}

// StudentProfile returns the logged in student's record.
func (s *AuthService) StudentProfile(ctx context.Context, userID int) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, appErrors.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "用户不存在")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *AuthService) generateAccessToken(userID int, kind string, role models.AdminRole) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID: userID,
		Kind:   kind,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   kind + ":" + strconv.Itoa(userID),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}
