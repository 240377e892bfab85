package admin

import (
	"context"
	"io"
	"strconv"

	"github.com/noah-isme/contrail/internal/dto"
	"github.com/noah-isme/contrail/internal/models"
	"github.com/noah-isme/contrail/pkg/httpclient"
)

// StudentQuery filters the student list. ClassID is the legacy name for
// DepartmentID and is only used when DepartmentID is unset.
type StudentQuery struct {
	Page         int
	PerPage      int
	DepartmentID int
	ClassID      int
	Filter       string
	Keyword      string
	StatusStage  models.Stage
	StatusValue  models.StageStatus
}

func (q StudentQuery) values() httpclient.Query {
	dept := q.DepartmentID
	if dept <= 0 {
		dept = q.ClassID
	}
	return httpclient.Query{
		"page":          positive(q.Page),
		"per_page":      positive(q.PerPage),
		"department_id": positive(dept),
		"filter":        q.Filter,
		"keyword":       q.Keyword,
		"status_stage":  string(q.StatusStage),
		"status_value":  string(q.StatusValue),
	}
}

// ListStudents returns one page of students visible to the admin.
func (c *Client) ListStudents(ctx context.Context, q StudentQuery) (*dto.Page[dto.StudentItem], error) {
	var resp dto.Page[dto.StudentItem]
	if err := c.http.Get(ctx, prefix+"/students", q.values(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetStudent returns a student with comments and certificates.
func (c *Client) GetStudent(ctx context.Context, id int) (*dto.StudentDetail, error) {
	var resp dto.StudentDetail
	if err := c.http.Get(ctx, path("/students/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateStudentStatus sets one stage outcome.
func (c *Client) UpdateStudentStatus(ctx context.Context, id int, stage models.Stage, status models.StageStatus) (*dto.StatusUpdateResponse, error) {
	req := dto.StatusUpdateRequest{Stage: stage, Status: status}
	var resp dto.StatusUpdateResponse
	if err := c.http.Put(ctx, path("/students/%d/status", id), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateStudentArchive applies profile edits, stage outcomes and an optional
// comment in one call.
func (c *Client) UpdateStudentArchive(ctx context.Context, id int, req dto.ArchiveUpdateRequest) (*dto.Message, error) {
	var resp dto.Message
	if err := c.http.Put(ctx, path("/students/%d/archive", id), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScoreLogQuery pages the score history. Type is 1 for manual and 2 for
// system changes; zero lists both.
type ScoreLogQuery struct {
	Page  int
	Limit int
	Type  int
}

// ScoreLogs returns a student's score changes, newest first.
func (c *Client) ScoreLogs(ctx context.Context, id int, q ScoreLogQuery) (*dto.ScoreLogPage, error) {
	query := httpclient.Query{
		"page":  positive(q.Page),
		"limit": positive(q.Limit),
		"type":  positive(q.Type),
	}
	var resp dto.ScoreLogResponse
	if err := c.http.Get(ctx, path("/students/%d/score-logs", id), query, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// AdjustScore records a manual score change.
func (c *Client) AdjustScore(ctx context.Context, userID, delta int, reason string) (*dto.ScoreAdjustResponse, error) {
	req := dto.ScoreAdjustRequest{UserID: &userID, Delta: &delta, Reason: reason}
	var resp dto.ScoreAdjustResponse
	if err := c.http.Post(ctx, prefix+"/score/adjust", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddComment leaves an evaluation on a student.
func (c *Client) AddComment(ctx context.Context, id int, content string) (*dto.CommentResponse, error) {
	var resp dto.CommentResponse
	if err := c.http.Post(ctx, path("/students/%d/comment", id), dto.CommentRequest{Content: content}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ImportStudents uploads an .xlsx roster into departmentID.
func (c *Client) ImportStudents(ctx context.Context, departmentID int, fileName string, content io.Reader) (*dto.ImportResponse, error) {
	up := httpclient.UploadRequest{FileName: fileName, Content: content}
	if departmentID > 0 {
		up.Fields = map[string]string{"department_id": strconv.Itoa(departmentID)}
	}
	var resp dto.ImportResponse
	if err := c.http.Upload(ctx, prefix+"/students/import", up, &resp, httpclient.WithFailureFormat("导入失败: %d")); err != nil {
		return nil, err
	}
	return &resp, nil
}
