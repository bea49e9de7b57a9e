package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// ObjectStore writes immutable blobs and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// ObjectKey builds the deterministic key {folder}/{timestamp}.{ext}.
func ObjectKey(folder string, t time.Time, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	name := fmt.Sprintf("%s_%03d.%s", t.Format("20060102_150405"), t.Nanosecond()/int(time.Millisecond), ext)
	return path.Join(strings.Trim(folder, "/"), name)
}

// ContentTypeFor guesses a content type from a file extension.
func ContentTypeFor(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "mp4":
		return "video/mp4"
	case "webm":
		return "video/webm"
	case "mov":
		return "video/quicktime"
	case "avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}

// ExtensionFor returns the extension for a content type, without the dot.
func ExtensionFor(contentType string) string {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch strings.ToLower(mediaType) {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "video/mp4":
		return "mp4"
	case "video/webm":
		return "webm"
	case "video/quicktime":
		return "mov"
	case "video/x-msvideo":
		return "avi"
	default:
		return "bin"
	}
}
