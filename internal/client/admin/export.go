package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/pkg/httpclient"
)

// ErrExportFailed wraps the server's failure message for a failed export.
var ErrExportFailed = errors.New("导出失败")

// DefaultPollInterval is used by WaitForExport when interval is not positive.
const DefaultPollInterval = time.Second

// ProgressFunc observes export progress.
type ProgressFunc func(dto.ExportStatusResponse)

// StartDepartmentExport enqueues an archive export and returns its task id.
func (c *Client) StartDepartmentExport(ctx context.Context, departmentID int) (string, error) {
	var resp dto.ExportStartResponse
	if err := c.http.Post(ctx, path("/department/%d/export/start", departmentID), nil, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

// ExportStatus returns the task's current progress.
func (c *Client) ExportStatus(ctx context.Context, taskID string) (*dto.ExportStatusResponse, error) {
	var resp dto.ExportStatusResponse
	if err := c.http.Get(ctx, path("/export/status/%s", taskID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadExport fetches the finished archive. The server removes the file
// once it has been sent.
func (c *Client) DownloadExport(ctx context.Context, taskID string) (*httpclient.File, error) {
	return c.http.Download(ctx, path("/export/download/%s", taskID))
}

// WaitForExport polls until the task completes or fails.
func (c *Client) WaitForExport(ctx context.Context, taskID string, interval time.Duration, onProgress ProgressFunc) (*dto.ExportStatusResponse, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.ExportStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(*status)
		}
		if done, err := finished(status); done {
			return status, err
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// WatchExport follows the task over the progress websocket until it
// finishes. The last frame received is returned.
func (c *Client) WatchExport(ctx context.Context, taskID string, onProgress ProgressFunc) (*dto.ExportStatusResponse, error) {
	target := websocketURL(c.http.URL(path("/export/ws/%s", taskID)))
	header := http.Header{}
	if token := c.http.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, &httpclient.Error{Status: resp.StatusCode, Message: fmt.Sprintf("订阅导出进度失败: %d", resp.StatusCode), Err: err}
		}
		return nil, fmt.Errorf("dial export progress: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var last *dto.ExportStatusResponse
	for {
		var frame dto.ExportStatusResponse
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && last != nil {
				return last, nil
			}
			return last, fmt.Errorf("read export progress: %w", err)
		}
		last = &frame
		if onProgress != nil {
			onProgress(frame)
		}
		if done, err := finished(last); done {
			c.logger.Debug("export finished", zap.String("task_id", taskID), zap.String("status", string(frame.Status)))
			return last, err
		}
	}
}

func finished(status *dto.ExportStatusResponse) (bool, error) {
	switch status.Status {
	case models.ExportCompleted:
		return true, nil
	case models.ExportFailed:
		msg := ""
		if status.Error != nil {
			msg = *status.Error
		}
		if msg == "" {
			return true, ErrExportFailed
		}
		return true, fmt.Errorf("%w: %s", ErrExportFailed, msg)
	}
	return false, nil
}

func websocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	return httpURL
}
