package service

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/pkg/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newImageService(t *testing.T, secret string, maxBytes int64) *ImageService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewImageService(store, storage.NewSignedURLSigner(secret, time.Hour), ImageConfig{MaxFileSizeBytes: maxBytes}, nil)
}

func TestImageUploadAndOpen(t *testing.T) {
	svc := newImageService(t, "image-secret", 0)
	ctx := context.Background()

	resp, err := svc.Upload(ctx, 1, "cert.PNG", bytes.NewReader(append(pngHeader, bytes.Repeat([]byte{1}, 600)...)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.URL, FilesRoute))
	assert.True(t, strings.HasPrefix(resp.Path, "certificates/"))
	assert.True(t, strings.HasSuffix(resp.Path, ".png"))
	assert.EqualValues(t, len(pngHeader)+600, resp.Size)

	path, err := svc.Open(strings.TrimPrefix(resp.URL, FilesRoute))
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	assert.Equal(t, resp.Path, svc.Normalize(resp.URL))
	assert.Equal(t, "https://cdn.example.com/a.png", svc.Normalize(" https://cdn.example.com/a.png "))

	_, err = svc.Open("forged.token.value.sig")
	requireAppError(t, err, http.StatusForbidden, "无效的文件链接")
}

func TestImageUploadRejectsBadFiles(t *testing.T) {
	svc := newImageService(t, "image-secret", 32)
	ctx := context.Background()

	_, err := svc.Upload(ctx, 1, "empty.png", bytes.NewReader(nil))
	requireAppError(t, err, http.StatusBadRequest, "上传文件为空")

	_, err = svc.Upload(ctx, 1, "notes.png", strings.NewReader("plain text pretending to be an image"))
	requireAppError(t, err, http.StatusBadRequest, "不支持的文件类型")

	_, err = svc.Upload(ctx, 1, "big.png", bytes.NewReader(append(pngHeader, bytes.Repeat([]byte{1}, 64)...)))
	requireAppError(t, err, http.StatusBadRequest, "文件大小不能超过")
}

func TestImagePresent(t *testing.T) {
	svc := newImageService(t, "image-secret", 0)

	external := &models.Certificate{ID: 1, ImageURL: "https://example.com/a.png"}
	url, err := svc.Present(external)
	require.NoError(t, err)
	assert.Equal(t, external.ImageURL, url)

	stored := &models.Certificate{ID: 2, ImageURL: "certificates/a.png"}
	url, err = svc.Present(stored)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, FilesRoute))

	_, err = svc.Open(strings.TrimPrefix(url, FilesRoute))
	requireAppError(t, err, http.StatusNotFound, "文件不存在")
}

func TestCertificateListWarnsWhenSigningFails(t *testing.T) {
	r := newRepos(t, true)
	ctx := context.Background()
	require.NoError(t, r.certificates.Create(ctx, &models.Certificate{
		UserID:     1,
		Name:       "本地图片",
		ImageURL:   "certificates/local.png",
		Status:     models.CertificatePending,
		UploadTime: time.Now(),
	}))
	svc := NewCertificateService(CertificateServiceParams{
		Certificates: r.certificates,
		Students:     r.students,
		Departments:  r.departments,
		Types:        r.types,
		Images:       newImageService(t, "", 0),
	})

	page, err := svc.List(ctx, superAdmin(), nil, 1, 20)
	require.NoError(t, err)
	assert.NotEmpty(t, page.Warning)

	first, err := svc.Get(ctx, superAdmin(), page.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "图片链接生成失败，请稍后重试", first.Warning)

	_, err = svc.Submit(ctx, 1, dto.CertificateUploadRequest{Name: "四级", ImageURL: "https://example.com/x.png"})
	require.NoError(t, err)
}
