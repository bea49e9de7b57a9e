// Package evidence persists confirmed webcam events and uploaded media as
// evidence records.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/storage"
)

// ErrStorageUpload means the media could not be written to object storage.
// No record is created or changed.
var ErrStorageUpload = errors.New("object storage upload failed")

// ErrEmptyMedia is returned for an event or upload without data.
var ErrEmptyMedia = errors.New("media is empty")

const (
	NoticeWebcam = "webcam"
	NoticeUpload = "upload"
)

// Notifier tells the classification service about committed evidence.
type Notifier interface {
	Notify(ctx context.Context, n dto.Notification) error
}

// Publisher announces committed evidence (dashboards, MQTT).
type Publisher interface {
	Publish(notice dto.EvidenceNotice) error
}

// FrameSaver keeps a local copy of confirmed frames.
type FrameSaver interface {
	SaveFrame(data []byte, t time.Time) (string, error)
}

// Options configures a Recorder. Local, Notifier and Publishers are optional.
type Options struct {
	Repo          repository.EvidenceRepository
	Store         storage.ObjectStore
	Local         FrameSaver
	Notifier      Notifier
	Publishers    []Publisher
	Categories    model.Categories
	WebcamFolder  string
	VideoFolder   string
	Location      *time.Location
	NotifyTimeout time.Duration
	Logger        *logger.Logger
	Now           func() time.Time
}

// Recorder applies the evidence upsert rule: confirmed webcam events of one
// user and day share a record, uploads always get their own.
type Recorder struct {
	opts  Options
	locks *keyedMutex
}

// NewRecorder creates a Recorder.
func NewRecorder(opts Options) *Recorder {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	return &Recorder{opts: opts, locks: newKeyedMutex()}
}

// RecordConfirmed stores the confirming frame and merges it into the user's
// webcam record for the day, creating the record on the first event.
func (r *Recorder) RecordConfirmed(ctx context.Context, event dto.ConfirmedEvent) (*model.Evidence, error) {
	if len(event.Image) == 0 {
		return nil, ErrEmptyMedia
	}
	at := event.ConfirmedAt
	if at.IsZero() {
		at = r.opts.Now()
	}

	if r.opts.Local != nil {
		if path, err := r.opts.Local.SaveFrame(event.Image, at); err != nil {
			r.opts.Logger.Warning("Failed to keep local copy of confirmed frame: %v", err)
		} else {
			r.opts.Logger.Info("Violence detected. Frame saved to %s", path)
		}
	}

	key := storage.ObjectKey(r.opts.WebcamFolder, at, "jpg")
	url, err := r.opts.Store.Put(ctx, key, "image/jpeg", event.Image)
	if err != nil {
		r.opts.Logger.Error("Confirmed event %d of session %s dropped: %v", event.Sequence, event.SessionID, err)
		return nil, fmt.Errorf("%w: %v", ErrStorageUpload, err)
	}

	categoryID := r.opts.Categories.ID(model.CategorySessionScoped)
	dailyKey := model.NewDailyKey(event.UserID, categoryID, at, r.opts.Location)

	record, created, err := r.upsertDaily(ctx, dailyKey, url, at)
	if err != nil {
		r.opts.Logger.Error("Evidence for %s not recorded (object %s kept): %v", dailyKey, key, err)
		return nil, err
	}

	if created {
		r.opts.Logger.Info("Evidence %d created for user %d on %s", record.ID, record.UserID, record.ScopeDay)
	} else {
		r.opts.Logger.Info("Evidence %d updated for user %d: %d files", record.ID, record.UserID, len(record.FileURLs))
	}

	r.afterCommit(ctx, record, key, url, NoticeWebcam, created)
	return record, nil
}

// upsertDaily runs under the daily key's lock: create when none exists, append
// when exactly one does, fail on more.
func (r *Recorder) upsertDaily(ctx context.Context, key model.DailyKey, url string, at time.Time) (*model.Evidence, bool, error) {
	unlock := r.locks.Lock(key.String())
	defer unlock()

	existing, err := r.opts.Repo.FindDaily(ctx, key)
	if err != nil {
		return nil, false, err
	}

	switch len(existing) {
	case 0:
		record := &model.Evidence{
			CreatedAt:      at,
			LastModifiedAt: at,
			Title:          "Webcam violence detection " + key.Day,
			Description:    "Violence confirmed by live webcam monitoring",
			Done:           false,
			FileURLs:       []string{url},
			CategoryID:     key.CategoryID,
			UserID:         key.UserID,
			ScopeDay:       key.Day,
		}
		_, err := r.opts.Repo.Insert(ctx, record, &key)
		if err == nil {
			return record, true, nil
		}
		if !errors.Is(err, repository.ErrDuplicateDailyKey) {
			return nil, false, err
		}
		// Another process created the record first.
		existing, err = r.opts.Repo.FindDaily(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if len(existing) != 1 {
			return nil, false, fmt.Errorf("%w: %d records for %s", repository.ErrAmbiguousRecord, len(existing), key)
		}
		fallthrough
	case 1:
		record, err := r.opts.Repo.AppendFileURL(ctx, existing[0].ID, url, at)
		if err != nil {
			return nil, false, err
		}
		return record, false, nil
	default:
		return nil, false, fmt.Errorf("%w: %d records for %s", repository.ErrAmbiguousRecord, len(existing), key)
	}
}

// RecordUpload stores uploaded media and always creates a new single-shot record.
func (r *Recorder) RecordUpload(ctx context.Context, req dto.UploadRequest) (*model.Evidence, error) {
	if len(req.Data) == 0 {
		return nil, ErrEmptyMedia
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(req.Filename)), ".")
	if ext == "" {
		ext = storage.ExtensionFor(req.ContentType)
	}
	contentType := req.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeFor(ext)
	}

	at := r.opts.Now()
	key := storage.ObjectKey(r.opts.VideoFolder, at, ext)
	url, err := r.opts.Store.Put(ctx, key, contentType, req.Data)
	if err != nil {
		r.opts.Logger.Error("Upload from user %d dropped: %v", req.UserID, err)
		return nil, fmt.Errorf("%w: %v", ErrStorageUpload, err)
	}

	description := "Uploaded video"
	if req.Filename != "" {
		description = "Uploaded video " + filepath.Base(req.Filename)
	}
	if req.Description != "" {
		description = req.Description
	}
	record := &model.Evidence{
		CreatedAt:      at,
		LastModifiedAt: at,
		Title:          "Video upload",
		Description:    description,
		Done:           false,
		FileURLs:       []string{url},
		CategoryID:     r.opts.Categories.ID(model.CategorySingleShot),
		UserID:         req.UserID,
		ScopeDay:       model.ScopeDay(at, r.opts.Location),
	}
	if _, err := r.opts.Repo.Insert(ctx, record, nil); err != nil {
		r.opts.Logger.Error("Upload evidence for user %d not recorded (object %s kept): %v", req.UserID, key, err)
		return nil, err
	}

	r.opts.Logger.Info("Evidence %d created from upload by user %d", record.ID, record.UserID)
	r.afterCommit(ctx, record, key, url, NoticeUpload, true)
	return record, nil
}

// afterCommit notifies and announces. Failures are logged only.
func (r *Recorder) afterCommit(ctx context.Context, record *model.Evidence, key, url, kind string, created bool) {
	if r.opts.Notifier != nil {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.NotifyTimeout)
		err := r.opts.Notifier.Notify(nctx, dto.Notification{EvidenceID: record.ID, FileName: key})
		cancel()
		if err != nil {
			r.opts.Logger.Warning("Classification notify for evidence %d failed: %v", record.ID, err)
		}
	}

	notice := dto.EvidenceNotice{
		Type:       kind,
		EvidenceID: record.ID,
		UserID:     record.UserID,
		CategoryID: record.CategoryID,
		URL:        url,
		FileCount:  len(record.FileURLs),
		Created:    created,
	}
	for _, p := range r.opts.Publishers {
		if err := p.Publish(notice); err != nil {
			r.opts.Logger.Warning("Evidence notice %d not published: %v", record.ID, err)
		}
	}
}
