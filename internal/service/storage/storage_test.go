package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestObjectKey(t *testing.T) {
	ts := time.Date(2025, 6, 15, 14, 30, 5, 123_000_000, time.UTC)

	tests := []struct {
		folder   string
		ext      string
		expected string
	}{
		{"webcam", "jpg", "webcam/20250615_143005_123.jpg"},
		{"video/", ".MP4", "video/20250615_143005_123.mp4"},
		{"/nested/folder", "webm", "nested/folder/20250615_143005_123.webm"},
		{"webcam", "", "webcam/20250615_143005_123.bin"},
	}

	for _, tt := range tests {
		if got := ObjectKey(tt.folder, ts, tt.ext); got != tt.expected {
			t.Errorf("ObjectKey(%q, %q) = %q, expected %q", tt.folder, tt.ext, got, tt.expected)
		}
	}
}

func TestObjectKey_Deterministic(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if ObjectKey("webcam", ts, "jpg") != ObjectKey("webcam", ts, "jpg") {
		t.Error("expected the same key for the same timestamp")
	}
}

func TestPublicURL(t *testing.T) {
	got := PublicURL("poksin-evidence", "ap-northeast-2", "webcam/a.jpg")
	expected := "https://poksin-evidence.s3.ap-northeast-2.amazonaws.com/webcam/a.jpg"
	if got != expected {
		t.Errorf("PublicURL() = %q, expected %q", got, expected)
	}
}

func TestContentTypeRoundTrip(t *testing.T) {
	for _, ext := range []string{"jpg", "png", "mp4", "webm", "mov", "avi"} {
		if got := ExtensionFor(ContentTypeFor(ext)); got != ext {
			t.Errorf("ExtensionFor(ContentTypeFor(%q)) = %q", ext, got)
		}
	}
	if ExtensionFor("video/mp4; codecs=avc1") != "mp4" {
		t.Error("expected parameters to be ignored")
	}
	if ContentTypeFor("exe") != "application/octet-stream" {
		t.Error("expected octet-stream for unknown extension")
	}
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if params.Body != nil {
		buf := new(strings.Builder)
		b := make([]byte, 64)
		for {
			n, err := params.Body.Read(b)
			buf.Write(b[:n])
			if err != nil {
				break
			}
		}
		f.body = []byte(buf.String())
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Put(t *testing.T) {
	fake := &fakeS3{}
	store := &S3Store{client: fake, bucket: "bucket", region: "eu-west-1"}

	url, err := store.Put(context.Background(), "webcam/x.jpg", "image/jpeg", []byte("jpegdata"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if url != "https://bucket.s3.eu-west-1.amazonaws.com/webcam/x.jpg" {
		t.Errorf("unexpected url %q", url)
	}
	if *fake.input.Bucket != "bucket" || *fake.input.Key != "webcam/x.jpg" {
		t.Errorf("unexpected bucket/key %q/%q", *fake.input.Bucket, *fake.input.Key)
	}
	if *fake.input.ContentType != "image/jpeg" {
		t.Errorf("unexpected content type %q", *fake.input.ContentType)
	}
	if string(fake.body) != "jpegdata" {
		t.Errorf("unexpected body %q", fake.body)
	}
}

func TestS3Store_PutError(t *testing.T) {
	fake := &fakeS3{err: errors.New("access denied")}
	store := &S3Store{client: fake, bucket: "bucket", region: "eu-west-1"}

	if _, err := store.Put(context.Background(), "k", "image/jpeg", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestLocalStore_Put(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "/media/")

	url, err := store.Put(context.Background(), "webcam/a.jpg", "image/jpeg", []byte("abc"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if url != "/media/webcam/a.jpg" {
		t.Errorf("unexpected url %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "webcam", "a.jpg"))
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "/media")

	for _, key := range []string{"../secret.jpg", "/etc/passwd", "a/../../b.jpg"} {
		if _, err := store.Put(context.Background(), key, "image/jpeg", []byte("x")); err == nil {
			t.Errorf("expected %q to be rejected", key)
		}
	}
}

func TestLocalStore_SaveFrame(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "")

	ts := time.Date(2025, 6, 15, 14, 30, 0, 0, time.Local)
	path, err := store.SaveFrame([]byte("frame"), ts)
	if err != nil {
		t.Fatalf("SaveFrame failed: %v", err)
	}
	if filepath.Base(path) != "violence_detected_20250615_143000_000.jpg" {
		t.Errorf("unexpected file name %q", filepath.Base(path))
	}
}
