// server/internal/api/handlers/upload_handler.go
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"container-inspection-api-server/internal/api/middleware"
	"container-inspection-api-server/internal/events"
	"container-inspection-api-server/internal/imaging"
	"container-inspection-api-server/internal/models"
	"container-inspection-api-server/internal/repository"
	"container-inspection-api-server/internal/s3"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	damagePhotosRoute = "s3-damage-photos"
	maxDamagePhotos   = 20
)

// PhotoStorage stores encoded photos and returns their public URLs.
type PhotoStorage interface {
	UploadFile(ctx context.Context, file io.Reader, objectKey, contentType string) (string, error)
	UploadBatch(ctx context.Context, objects []s3.Object, concurrency int) ([]string, error)
}

type UploadHandler struct {
	Segments    repository.TripSegmentRepository
	Storage     PhotoStorage
	Events      events.Publisher
	Hub         Notifier
	Log         zerolog.Logger
	Options     imaging.Options
	Concurrency int
	MaxFileSize int64
}

// Upload serves POST /upload/:photo. The damage batch shares the prefix, so it
// is dispatched from here.
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.Storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Photo storage is not configured"})
		return
	}
	if c.Param("photo") == damagePhotosRoute {
		h.UploadDamagePhotos(c)
		return
	}
	h.UploadPhoto(c)
}

// photoKind maps "s3-front-wall-photo" to the front-wall slot.
func photoKind(param string) (models.PhotoKind, bool) {
	if !strings.HasPrefix(param, "s3-") || !strings.HasSuffix(param, "-photo") {
		return "", false
	}
	kind := models.PhotoKind(strings.TrimSuffix(strings.TrimPrefix(param, "s3-"), "-photo"))
	return kind, kind.Valid()
}

// parseGuide reads the optional cropping guide. No previewWidth means no crop.
func parseGuide(c *gin.Context) (*imaging.Guide, error) {
	if c.PostForm("previewWidth") == "" {
		return nil, nil
	}
	fields := []string{"previewWidth", "previewHeight", "guideX", "guideY", "guideWidth", "guideHeight"}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(c.PostForm(f), 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number", f)
		}
		vals[i] = v
	}
	return &imaging.Guide{
		PreviewWidth:  vals[0],
		PreviewHeight: vals[1],
		X:             vals[2],
		Y:             vals[3],
		Width:         vals[4],
		Height:        vals[5],
		Mode:          imaging.ScaleMode(c.PostForm("scaleMode")),
	}, nil
}

// openSegment loads the target segment and rejects finished ones before any
// image work is done.
func (h *UploadHandler) openSegment(c *gin.Context) (*models.TripSegment, bool) {
	id := c.PostForm("tripSegmentId")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tripSegmentId is required"})
		return nil, false
	}
	t, err := h.Segments.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to retrieve trip segment")
		return nil, false
	}
	if t.Status == models.TripStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Trip segment is already completed"})
		return nil, false
	}
	return t, true
}

func (h *UploadHandler) process(fh *multipart.FileHeader, guide *imaging.Guide) (*imaging.Result, int, error) {
	if h.MaxFileSize > 0 && fh.Size > h.MaxFileSize {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("%s exceeds %d bytes", fh.Filename, h.MaxFileSize)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	defer f.Close()

	res, err := imaging.Process(f, guide, h.Options)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, imaging.ErrTooManyPixels) {
			status = http.StatusRequestEntityTooLarge
		}
		return nil, status, fmt.Errorf("%s: %w", fh.Filename, err)
	}
	return res, http.StatusOK, nil
}

func mediaPointer(id, key, url string, fh *multipart.FileHeader, res *imaging.Result, at time.Time) models.MediaPointer {
	return models.MediaPointer{
		ID:         id,
		URL:        url,
		ObjectKey:  key,
		FileName:   fh.Filename,
		FileType:   "image/jpeg",
		Size:       int64(len(res.Data)),
		SHA256:     res.SHA256,
		Width:      res.Width,
		Height:     res.Height,
		UploadedAt: at,
	}
}

// UploadPhoto crops, compresses and stores one capture in photos[kind]. A new
// upload replaces the previous pointer.
func (h *UploadHandler) UploadPhoto(c *gin.Context) {
	kind, ok := photoKind(c.Param("photo"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown photo type " + c.Param("photo")})
		return
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	guide, err := parseGuide(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, ok := h.openSegment(c)
	if !ok {
		return
	}

	res, status, err := h.process(fh, guide)
	if err != nil {
		c.JSON(status, gin.H{"error": "Failed to process image", "details": err.Error()})
		return
	}

	key, id := s3.PhotoKey(t.TripSegmentNumber, string(kind))
	url, err := h.Storage.UploadFile(c.Request.Context(), bytes.NewReader(res.Data), key, "image/jpeg")
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to upload photo", "details": err.Error()})
		return
	}

	media := mediaPointer(id, key, url, fh, res, time.Now().UTC())
	if _, err := h.Segments.SetPhoto(c.Request.Context(), t.ID.Hex(), kind, media); err != nil {
		respondError(c, err, "Failed to save photo")
		return
	}

	h.Log.Debug().Str("tripSegment", t.TripSegmentNumber).Str("kind", string(kind)).Int("bytes", len(res.Data)).Msg("photo uploaded")
	c.JSON(http.StatusOK, gin.H{"message": "Photo uploaded successfully", "url": url, "photo": media})
}

// UploadDamagePhotos stores all damage photos of one location from a single
// multipart request and marks the location damaged.
func (h *UploadHandler) UploadDamagePhotos(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form is required"})
		return
	}
	files := form.File["photos[]"]
	if len(files) == 0 {
		files = form.File["photos"]
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one photo is required"})
		return
	}
	if len(files) > maxDamagePhotos {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("at most %d photos per request", maxDamagePhotos)})
		return
	}
	loc, ok := parseLocation(c.PostForm("location"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown damage location " + c.PostForm("location")})
		return
	}
	t, ok := h.openSegment(c)
	if !ok {
		return
	}

	objects := make([]s3.Object, len(files))
	ids := make([]string, len(files))
	results := make([]*imaging.Result, len(files))
	for i, fh := range files {
		res, status, err := h.process(fh, nil)
		if err != nil {
			c.JSON(status, gin.H{"error": "Failed to process image", "details": err.Error()})
			return
		}
		key, id := s3.DamagePhotoKey(t.TripSegmentNumber, string(loc))
		objects[i] = s3.Object{Key: key, Data: res.Data, ContentType: "image/jpeg"}
		ids[i] = id
		results[i] = res
	}

	urls, err := h.Storage.UploadBatch(c.Request.Context(), objects, h.Concurrency)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to upload damage photos", "details": err.Error()})
		return
	}

	now := time.Now().UTC()
	media := make([]models.MediaPointer, len(files))
	for i, fh := range files {
		media[i] = mediaPointer(ids[i], objects[i].Key, urls[i], fh, results[i], now)
	}

	userID := c.GetString(middleware.KeyUserID)
	updated, err := h.Segments.AddDamagePhotos(c.Request.Context(), t.ID.Hex(), loc, userID, media...)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyCompleted) {
			h.Log.Warn().Str("tripSegment", t.TripSegmentNumber).Msg("segment completed during damage upload, objects orphaned")
		}
		respondError(c, err, "Failed to save damage photos")
		return
	}

	notifyDamage(c.Request.Context(), h.Hub, h.Events, h.Log, updated, loc, userID)
	h.Log.Info().Str("tripSegment", t.TripSegmentNumber).Str("location", string(loc)).Int("photos", len(media)).Msg("damage photos uploaded")
	c.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("%d damage photos uploaded", len(media)),
		"photos":       media,
		"damageStatus": updated.DamageStatus(),
	})
}
