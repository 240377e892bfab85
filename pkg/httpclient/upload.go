package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
)

// UploadRequest describes one multipart upload.
type UploadRequest struct {
	// Field is the form field carrying the file; defaults to "file".
	Field    string
	FileName string
	Content  io.Reader
	Fields   map[string]string
}

// File is a downloaded attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Upload posts a multipart form. Only the Authorization header is set so the
// transport can supply the multipart boundary.
func (c *Client) Upload(ctx context.Context, target string, up UploadRequest, out interface{}, opts ...CallOption) error {
	if up.Content == nil {
		return fmt.Errorf("upload: file content required")
	}
	cl := newCall(opts)
	field := up.Field
	if field == "" {
		field = "file"
	}
	name := up.FileName
	if name == "" {
		name = field
	}

	buf := &bytes.Buffer{}
	form := multipart.NewWriter(buf)
	for key, value := range up.Fields {
		if err := form.WriteField(key, value); err != nil {
			return fmt.Errorf("write form field %s: %w", key, err)
		}
	}
	part, err := form.CreateFormFile(field, path.Base(name))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return fmt.Errorf("copy upload content: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("close multipart form: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(target), buf)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	c.applyHeaders(req, cl)

	status, raw, _, err := c.send(req)
	if err != nil {
		return err
	}
	return c.handle(ctx, target, status, raw, out, cl, true)
}

// Download fetches a binary attachment. Failed responses are mapped from the
// JSON error body, falling back to "下载失败: <status>".
func (c *Client) Download(ctx context.Context, target string, opts ...CallOption) (*File, error) {
	cl := newCall(opts)

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(target), nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	c.applyHeaders(req, cl)

	status, raw, header, err := c.send(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		body := decodeObject(raw)
		format := "下载失败: %d"
		if cl.failureFormat != "" {
			format = cl.failureFormat
		}
		fallback := fmt.Sprintf(format, status)
		if status == http.StatusUnauthorized {
			c.unauthorized(ctx)
		}
		return nil, &Error{Status: status, Message: messageOr(body, fallback), Body: body}
	}

	return &File{
		Name:        attachmentName(header.Get("Content-Disposition"), target),
		ContentType: header.Get("Content-Type"),
		Data:        raw,
	}, nil
}

func attachmentName(disposition, target string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				return path.Base(name)
			}
		}
	}
	return path.Base(target)
}
