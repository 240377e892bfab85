package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/internal/service"
	"github.com/noah-isme/contrail/pkg/config"
	"github.com/noah-isme/contrail/pkg/rsacrypt"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env: config.EnvDevelopment,
		JWT: config.JWTConfig{Secret: "test-secret", Expiration: time.Hour},
		RSA: config.RSAConfig{Bits: 1024},
		Export: config.ExportConfig{
			StorageDir:        filepath.Join(dir, "exports"),
			SignedURLSecret:   "test-files",
			SignedURLTTL:      time.Hour,
			ResultTTL:         time.Hour,
			WorkerConcurrency: 1,
		},
		Upload: config.UploadConfig{
			StorageDir:       filepath.Join(dir, "uploads"),
			MaxFileSizeBytes: 1 << 20,
		},
		Dashboard: config.DashboardConfig{CacheTTL: time.Minute},
		Metrics:   config.MetricsConfig{Enabled: true},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv, err := Build(testConfig(t), nil, Options{PasswordCost: bcrypt.MinCost})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = srv.Stop(context.Background())
	})
	return srv
}

func do(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func encrypted(t *testing.T, srv *Server, plain string) string {
	t.Helper()
	out, err := rsacrypt.EncryptWithPublicKey(plain, srv.Keys.PublicKeyPEM())
	require.NoError(t, err)
	return out
}

func adminToken(t *testing.T, srv *Server, username, password string) string {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/api/admin/auth/login", "", models.AdminLoginRequest{
		Username: username,
		Password: encrypted(t, srv, password),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res models.AdminLoginResponse
	decode(t, w, &res)
	require.NotEmpty(t, res.AccessToken)
	return res.AccessToken
}

func studentToken(t *testing.T, srv *Server) string {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/api/auth/login", "", models.StudentLoginRequest{
		IDCardNo: "510100200001010000",
		Password: encrypted(t, srv, "123456"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res models.StudentLoginResponse
	decode(t, w, &res)
	return res.AccessToken
}

func TestPublicKeyAndHealth(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/api/admin/auth/public-key", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var key map[string]string
	decode(t, w, &key)
	assert.Contains(t, key["public_key"], "PUBLIC KEY")
	assert.Equal(t, key["public_key"], key["publicKey"])

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/health", "", nil).Code)

	metrics := do(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "contrail_http_request_duration_seconds")
	assert.Contains(t, metrics.Body.String(), `contrail_queue_backlog{queue="exports"}`)
}

func TestBonusSweepIsCountedInMetrics(t *testing.T) {
	srv := newTestServer(t)
	now := time.Now()

	_, err := srv.Bonuses.Sweep(context.Background(), service.WeeklyBonus, now)
	require.NoError(t, err)
	again, err := srv.Bonuses.Sweep(context.Background(), service.WeeklyBonus, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, again)

	metrics := do(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), `contrail_score_bonuses_total{rule="weekly"}`)
}

func TestAdminLoginAndGuards(t *testing.T) {
	srv := newTestServer(t)

	bad := do(t, srv, http.MethodPost, "/api/admin/auth/login", "", models.AdminLoginRequest{
		Username: "admin",
		Password: encrypted(t, srv, "wrong"),
	})
	assert.Equal(t, http.StatusUnauthorized, bad.Code)

	empty := httptest.NewRequest(http.MethodPost, "/api/admin/auth/login", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, empty)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/admin/auth/info", "", nil).Code)

	super := adminToken(t, srv, "admin", "admin123")
	teacher := adminToken(t, srv, "teacher", "teacher123")

	info := do(t, srv, http.MethodGet, "/api/admin/auth/info", teacher, nil)
	require.Equal(t, http.StatusOK, info.Code)
	var infoRes dto.AdminInfoResponse
	decode(t, info, &infoRes)
	assert.Equal(t, "teacher", infoRes.Admin.Username)
	assert.Equal(t, []int{101}, infoRes.DepartmentIDs)

	forbidden := do(t, srv, http.MethodGet, "/api/admin/admins", teacher, nil)
	assert.Equal(t, http.StatusForbidden, forbidden.Code)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/admin/admins", super, nil).Code)

	student := studentToken(t, srv)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/admin/auth/info", student, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodGet, "/api/student/dashboard", super, nil).Code)
}

func TestInitStatus(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/api/admin/system/init-status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status dto.InitStatusResponse
	decode(t, w, &status)
	assert.True(t, status.Initialized)

	again := do(t, srv, http.MethodPost, "/api/admin/system/initialize", "", dto.InitializeRequest{
		Username: "root",
		Password: encrypted(t, srv, "root1234"),
		Name:     "root",
	})
	assert.Equal(t, http.StatusBadRequest, again.Code)
}

func TestCertificateReview(t *testing.T) {
	srv := newTestServer(t)
	teacher := adminToken(t, srv, "teacher", "teacher123")

	list := do(t, srv, http.MethodGet, "/api/admin/certificates?status=0", teacher, nil)
	require.Equal(t, http.StatusOK, list.Code, list.Body.String())
	var page dto.CertificatePage
	decode(t, list, &page)
	for _, item := range page.Items {
		assert.Equal(t, models.CertificatePending, item.Status)
	}

	approve := do(t, srv, http.MethodPost, "/api/admin/certificates/1/audit", teacher, dto.AuditRequest{Action: models.AuditApprove})
	require.Equal(t, http.StatusOK, approve.Code, approve.Body.String())
	var audited dto.AuditResponse
	decode(t, approve, &audited)
	assert.Equal(t, models.CertificateApproved, audited.Certificate.Status)

	rejectWithoutReason := do(t, srv, http.MethodPost, "/api/admin/certificates/1/audit", teacher, dto.AuditRequest{Action: models.AuditReject})
	assert.Equal(t, http.StatusBadRequest, rejectWithoutReason.Code)

	// certificate 2 belongs to a student of department 102
	other := do(t, srv, http.MethodPost, "/api/admin/certificates/2/audit", teacher, dto.AuditRequest{Action: models.AuditApprove})
	assert.Equal(t, http.StatusForbidden, other.Code)
}

func TestStudentListAndDashboardCacheHeader(t *testing.T) {
	srv := newTestServer(t)
	teacher := adminToken(t, srv, "teacher", "teacher123")

	w := do(t, srv, http.MethodGet, "/api/admin/students?page=1&per_page=5", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page dto.Page[dto.StudentItem]
	decode(t, w, &page)
	assert.Len(t, page.Items, 5)
	for _, item := range page.Items {
		assert.Equal(t, 101, item.DepartmentID)
	}

	oversize := do(t, srv, http.MethodGet, "/api/admin/students?page=1&per_page=500", teacher, nil)
	require.Equal(t, http.StatusOK, oversize.Code)
	var fallback dto.Page[dto.StudentItem]
	decode(t, oversize, &fallback)
	assert.Equal(t, dto.DefaultPerPage, fallback.PerPage)
	assert.Len(t, fallback.Items, dto.DefaultPerPage)
	assert.Equal(t, page.Total, fallback.Total)

	stats := do(t, srv, http.MethodGet, "/api/admin/dashboard/stats", teacher, nil)
	require.Equal(t, http.StatusOK, stats.Code)
	assert.Equal(t, "MISS", stats.Header().Get("X-Cache"))
	var counters dto.DashboardStats
	decode(t, stats, &counters)
	assert.Equal(t, page.Total, counters.StudentTotal)
}

func TestDepartmentCreateIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	super := adminToken(t, srv, "admin", "admin123")
	teacher := adminToken(t, srv, "teacher", "teacher123")

	req := dto.DepartmentRequest{College: "飞行技术学院", Grade: "2024级", Major: "飞行技术", ClassName: "2401班"}
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodPost, "/api/admin/departments", teacher, req).Code)

	created := do(t, srv, http.MethodPost, "/api/admin/departments", super, req)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	var first dto.DepartmentResponse
	decode(t, created, &first)
	assert.Equal(t, "部门创建成功", first.Message)

	again := do(t, srv, http.MethodPost, "/api/admin/departments", super, req)
	require.Equal(t, http.StatusOK, again.Code)
	var second dto.DepartmentResponse
	decode(t, again, &second)
	assert.Equal(t, "部门已存在", second.Message)
	assert.Equal(t, first.Department.ID, second.Department.ID)
}

func TestStudentPortalAndImageUpload(t *testing.T) {
	srv := newTestServer(t)
	token := studentToken(t, srv)

	dash := do(t, srv, http.MethodGet, "/api/student/dashboard", token, nil)
	require.Equal(t, http.StatusOK, dash.Code, dash.Body.String())
	var board dto.StudentDashboard
	decode(t, dash, &board)
	assert.NotEmpty(t, board.Comment)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "cert.png")
	require.NoError(t, err)
	_, err = part.Write(append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/certificate/image", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var uploaded dto.ImageUploadResponse
	decode(t, w, &uploaded)
	require.True(t, strings.HasPrefix(uploaded.URL, "/files/"))

	file := do(t, srv, http.MethodGet, uploaded.URL, "", nil)
	assert.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodGet, "/files/forged", "", nil).Code)

	submit := do(t, srv, http.MethodPost, "/api/certificate/upload", token, dto.CertificateUploadRequest{
		Name:     "大学英语六级",
		ImageURL: uploaded.URL,
	})
	require.Equal(t, http.StatusCreated, submit.Code, submit.Body.String())
	var cert dto.CertificateResponse
	decode(t, submit, &cert)
	assert.Equal(t, models.CertificatePending, cert.Certificate.Status)
	require.True(t, strings.HasPrefix(cert.Certificate.ImageURL, "/files/"), cert.Certificate.ImageURL)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, cert.Certificate.ImageURL, "", nil).Code)

	super := adminToken(t, srv, "admin", "admin123")
	stored := do(t, srv, http.MethodGet, "/api/admin/certificates/"+strconv.Itoa(cert.Certificate.ID), super, nil)
	require.Equal(t, http.StatusOK, stored.Code, stored.Body.String())
	var review dto.CertificateViewResponse
	decode(t, stored, &review)
	assert.Equal(t, uploaded.Path, review.Certificate.ImageURL, "the storage key is kept, not the signed link")
	assert.True(t, strings.HasPrefix(review.Certificate.ImgURL, "/files/"))
}

func TestExportLifecycle(t *testing.T) {
	srv := newTestServer(t)
	teacher := adminToken(t, srv, "teacher", "teacher123")
	super := adminToken(t, srv, "admin", "admin123")

	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodPost, "/api/admin/department/102/export/start", teacher, nil).Code)

	start := do(t, srv, http.MethodPost, "/api/admin/department/101/export/start", teacher, nil)
	require.Equal(t, http.StatusAccepted, start.Code, start.Body.String())
	var started dto.ExportStartResponse
	decode(t, start, &started)
	require.NotEmpty(t, started.TaskID)

	assert.Equal(t, http.StatusForbidden, do(t, srv, http.MethodGet, "/api/admin/export/status/"+started.TaskID, super, nil).Code)

	ts := httptest.NewServer(srv.Router)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/admin/export/ws/" + started.TaskID
	header := http.Header{"Authorization": []string{"Bearer " + teacher}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck
	}
	defer conn.Close() //nolint:errcheck

	var last dto.ExportStatusResponse
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(60*time.Second)))
	for {
		var frame dto.ExportStatusResponse
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		assert.Equal(t, started.TaskID, frame.TaskID)
		last = frame
	}
	require.Equal(t, models.ExportCompleted, last.Status, "last frame: %+v", last)
	require.NotNil(t, last.DownloadURL)

	status := do(t, srv, http.MethodGet, "/api/admin/export/status/"+started.TaskID, teacher, nil)
	require.Equal(t, http.StatusOK, status.Code)
	var snapshot dto.ExportStatusResponse
	decode(t, status, &snapshot)
	assert.Equal(t, snapshot.Total, snapshot.Progress)

	download := do(t, srv, http.MethodGet, *last.DownloadURL, teacher, nil)
	require.Equal(t, http.StatusOK, download.Code, download.Body.String())
	assert.True(t, bytes.HasPrefix(download.Body.Bytes(), []byte("PK")))
	assert.Contains(t, download.Header().Get("Content-Disposition"), "attachment")
}

func TestWatchUnknownTaskIsRejectedBeforeUpgrade(t *testing.T) {
	srv := newTestServer(t)
	teacher := adminToken(t, srv, "teacher", "teacher123")

	ts := httptest.NewServer(srv.Router)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/admin/export/ws/missing?token=" + teacher
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
