package inspectclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"container-inspection-api-server/internal/imaging"
	"container-inspection-api-server/internal/models"
)

// Photo is one camera capture, JPEG or PNG.
type Photo struct {
	FileName string
	Data     []byte
}

// ProgressFunc receives the request bytes handed to the transport so far and
// the request size.
type ProgressFunc func(sent, total int64)

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.fn(p.sent, p.total)
	}
	return n, err
}

type multipartBody struct {
	buf bytes.Buffer
	w   *multipart.Writer
}

func newMultipartBody() *multipartBody {
	m := &multipartBody{}
	m.w = multipart.NewWriter(&m.buf)
	return m
}

func (m *multipartBody) field(name, value string) error {
	return m.w.WriteField(name, value)
}

func (m *multipartBody) file(field string, p Photo) error {
	name := p.FileName
	if name == "" {
		name = "capture.jpg"
	}
	fw, err := m.w.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	_, err = fw.Write(p.Data)
	return err
}

func (c *Client) postMultipart(ctx context.Context, path string, m *multipartBody, progress ProgressFunc, out any) error {
	if err := m.w.Close(); err != nil {
		return err
	}
	total := int64(m.buf.Len())
	var body io.Reader = bytes.NewReader(m.buf.Bytes())
	if progress != nil {
		body = &progressReader{r: body, total: total, fn: progress}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", m.w.FormDataContentType())
	return c.send(req, out)
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// UploadPhoto sends one capture for a photo slot. With a guide the server
// crops to it before compressing.
func (c *Client) UploadPhoto(ctx context.Context, tripSegmentID string, kind models.PhotoKind, photo Photo, guide *imaging.Guide) (*models.MediaPointer, error) {
	m := newMultipartBody()
	if err := m.field("tripSegmentId", tripSegmentID); err != nil {
		return nil, err
	}
	if guide != nil {
		fields := []struct {
			name  string
			value float64
		}{
			{"previewWidth", guide.PreviewWidth},
			{"previewHeight", guide.PreviewHeight},
			{"guideX", guide.X},
			{"guideY", guide.Y},
			{"guideWidth", guide.Width},
			{"guideHeight", guide.Height},
		}
		for _, f := range fields {
			if err := m.field(f.name, formatFloat(f.value)); err != nil {
				return nil, err
			}
		}
		if guide.Mode != "" {
			if err := m.field("scaleMode", string(guide.Mode)); err != nil {
				return nil, err
			}
		}
	}
	if err := m.file("photo", photo); err != nil {
		return nil, err
	}

	var res struct {
		Photo models.MediaPointer `json:"photo"`
	}
	if err := c.postMultipart(ctx, fmt.Sprintf("/api/upload/s3-%s-photo", kind), m, nil, &res); err != nil {
		return nil, err
	}
	return &res.Photo, nil
}

type DamageUploadResult struct {
	Photos       []models.MediaPointer `json:"photos"`
	DamageStatus models.DamageStatus   `json:"damageStatus"`
}

// UploadDamagePhotos sends every damage photo of a location in one request.
// progress, when set, follows the real request body as it is written.
func (c *Client) UploadDamagePhotos(ctx context.Context, tripSegmentID string, loc models.DamageLocation, photos []Photo, progress ProgressFunc) (*DamageUploadResult, error) {
	if len(photos) == 0 {
		return nil, fmt.Errorf("no damage photos to upload")
	}
	m := newMultipartBody()
	if err := m.field("tripSegmentId", tripSegmentID); err != nil {
		return nil, err
	}
	if err := m.field("location", string(loc)); err != nil {
		return nil, err
	}
	for _, p := range photos {
		if err := m.file("photos[]", p); err != nil {
			return nil, err
		}
	}

	var res DamageUploadResult
	if err := c.postMultipart(ctx, "/api/upload/s3-damage-photos", m, progress, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
