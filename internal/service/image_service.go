package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	appErrors "github.com/noah-isme/contrail/pkg/errors"
	"github.com/noah-isme/contrail/pkg/storage"
)

// FilesRoute is the public prefix signed file links are served from.
const FilesRoute = "/files/"

const certificateImageDir = "certificates"

var defaultImageMIMEs = []string{"image/jpeg", "image/png", "image/webp"}

// ImageConfig bounds certificate image uploads.
type ImageConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// ImageService stores certificate images and hands out signed links to them.
type ImageService struct {
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	config  ImageConfig
	logger  *zap.Logger
}

// NewImageService constructs an ImageService.
func NewImageService(store *storage.LocalStorage, signer *storage.SignedURLSigner, config ImageConfig, logger *zap.Logger) *ImageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 10 * 1024 * 1024
	}
	if len(config.AllowedMIMEs) == 0 {
		config.AllowedMIMEs = defaultImageMIMEs
	}
	return &ImageService{storage: store, signer: signer, config: config, logger: logger}
}

// Upload sniffs the content type, stores the image and returns a signed link.
func (s *ImageService) Upload(ctx context.Context, userID int, fileName string, r io.Reader) (*dto.ImageUploadResponse, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "读取上传文件失败")
	}
	if n == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "上传文件为空")
	}
	head = head[:n]

	mime := http.DetectContentType(head)
	if !s.allowed(mime) {
		return nil, appErrors.Clonef(appErrors.ErrValidation, "不支持的文件类型: %s", mime)
	}

	key := fmt.Sprintf("%s/%s%s", certificateImageDir, uuid.NewString(), imageExtension(mime, fileName))
	size, err := s.storage.Put(key, io.MultiReader(bytes.NewReader(head), r), s.config.MaxFileSizeBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "文件大小不能超过 %dMB", s.config.MaxFileSizeBytes/1024/1024)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "保存图片失败")
	}

	url, err := s.sign(fmt.Sprintf("upload:%d", userID), key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "生成图片链接失败")
	}
	s.logger.Debug("certificate image stored", zap.Int("user_id", userID), zap.String("key", key), zap.Int64("size", size))
	return &dto.ImageUploadResponse{URL: url, Path: key, Size: size}, nil
}

// Normalize converts a submitted image reference into what is persisted:
// signed links become their storage key, other values are kept.
func (s *ImageService) Normalize(imageURL string) string {
	imageURL = strings.TrimSpace(imageURL)
	if !strings.HasPrefix(imageURL, FilesRoute) {
		return imageURL
	}
	_, key, _, err := s.signer.Parse(strings.TrimPrefix(imageURL, FilesRoute), true)
	if err != nil {
		return imageURL
	}
	return key
}

// Present returns a link the client can open for the certificate image.
// External http(s) URLs are passed through.
func (s *ImageService) Present(cert *models.Certificate) (string, error) {
	if cert == nil || cert.ImageURL == "" {
		return "", nil
	}
	if isExternalURL(cert.ImageURL) || strings.HasPrefix(cert.ImageURL, FilesRoute) {
		return cert.ImageURL, nil
	}
	return s.sign(fmt.Sprintf("certificate:%d", cert.ID), cert.ImageURL)
}

// Open resolves a signed token to the stored file path.
func (s *ImageService) Open(token string) (string, error) {
	_, key, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return "", appErrors.Clone(appErrors.ErrGone, "链接已过期")
		}
		return "", appErrors.Clone(appErrors.ErrForbidden, "无效的文件链接")
	}
	if !s.storage.Exists(key) {
		return "", appErrors.Clone(appErrors.ErrNotFound, "文件不存在")
	}
	return s.storage.Path(key), nil
}

func (s *ImageService) sign(subject, key string) (string, error) {
	token, _, err := s.signer.Generate(subject, key)
	if err != nil {
		return "", err
	}
	return FilesRoute + token, nil
}

func (s *ImageService) allowed(mime string) bool {
	for _, m := range s.config.AllowedMIMEs {
		if strings.EqualFold(m, mime) {
			return true
		}
	}
	return false
}

func imageExtension(mime, fileName string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return strings.ToLower(filepath.Ext(fileName))
}

func isExternalURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}
