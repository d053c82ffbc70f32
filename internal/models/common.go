// server/internal/models/common.go
package models

import "time"

// MediaPointer references a file stored in S3 (or anything that serves a URL).
type MediaPointer struct {
	ID         string    `bson:"id" json:"id"`
	URL        string    `bson:"url" json:"url"`
	ObjectKey  string    `bson:"objectKey" json:"objectKey"`
	FileName   string    `bson:"fileName" json:"fileName"`
	FileType   string    `bson:"fileType" json:"fileType"` // e.g. "image/jpeg"
	Size       int64     `bson:"size" json:"size"`
	SHA256     string    `bson:"sha256" json:"sha256"`
	Width      int       `bson:"width" json:"width"`
	Height     int       `bson:"height" json:"height"`
	UploadedAt time.Time `bson:"uploadedAt" json:"uploadedAt"`
}
