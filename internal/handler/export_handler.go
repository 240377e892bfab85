package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/internal/service"
	"github.com/noah-isme/contrail/pkg/response"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// buildUpgrader accepts any origin when allowedOrigins is empty.
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(allowedOrigins) == 0 || origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(strings.TrimRight(allowed, "/"), origin) {
					return true
				}
			}
			return false
		},
	}
}

// ExportHandler serves department archive exports.
type ExportHandler struct {
	service  *service.ExportService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc *service.ExportService, logger *zap.Logger, allowedOrigins []string) *ExportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportHandler{service: svc, logger: logger, upgrader: buildUpgrader(allowedOrigins)}
}

// Start enqueues an export of a department.
func (h *ExportHandler) Start(c *gin.Context) {
	admin, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	deptID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Start(c.Request.Context(), admin, deptID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, res)
}

// Status reports task progress to its owner.
func (h *ExportHandler) Status(c *gin.Context) {
	admin, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.Status(c.Request.Context(), admin, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Download sends the finished archive and removes it afterwards.
func (h *ExportHandler) Download(c *gin.Context) {
	admin, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.Download(c.Request.Context(), admin, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.FileAttachment(file.Path, file.FileName)
	h.service.Release(c.Request.Context(), file.TaskID)
}

// Watch streams progress frames over a websocket until the task finishes or
// the client goes away. Authorization errors are answered before upgrading.
func (h *ExportHandler) Watch(c *gin.Context) {
	admin, err := adminFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	taskID := c.Param("id")
	current, frames, cancel, err := h.service.Watch(c.Request.Context(), admin, taskID)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("export websocket upgrade failed", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	defer conn.Close() //nolint:errcheck

	log := h.logger.With(zap.String("task_id", taskID), zap.Int("admin_id", admin.ID))
	gone := readUntilClosed(conn)

	if !h.send(conn, current) || terminal(current) {
		closeNormally(conn)
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			log.Debug("export watcher left")
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case frame, ok := <-frames:
			if !ok {
				closeNormally(conn)
				return
			}
			if !h.send(conn, frame) {
				return
			}
			if terminal(frame) {
				closeNormally(conn)
				return
			}
		}
	}
}

func (h *ExportHandler) send(conn *websocket.Conn, frame dto.ExportStatusResponse) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(frame); err != nil {
		h.logger.Debug("export frame write failed", zap.String("task_id", frame.TaskID), zap.Error(err))
		return false
	}
	return true
}

// readUntilClosed drains client messages so pongs and close frames are
// processed; the returned channel closes when the peer disconnects.
func readUntilClosed(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

func terminal(frame dto.ExportStatusResponse) bool {
	return frame.Status == models.ExportCompleted || frame.Status == models.ExportFailed
}
