package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/middleware"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/evidence"
)

// Uploader records uploaded media as single-shot evidence.
type Uploader interface {
	RecordUpload(ctx context.Context, req dto.UploadRequest) (*model.Evidence, error)
}

// UploadHandler accepts media as multipart field "file" or as the raw body,
// plus a userId form/query value. The session user is used when userId is absent
// and must match it when both are present.
func UploadHandler(uploader Uploader, maxBytes int64, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

		req, err := readUpload(r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeUploadError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit", logger)
				return
			}
			writeUploadError(w, http.StatusBadRequest, err.Error(), logger)
			return
		}

		userID, status, err := uploadUserID(r)
		if err != nil {
			writeUploadError(w, status, err.Error(), logger)
			return
		}
		req.UserID = userID

		record, err := uploader.RecordUpload(r.Context(), req)
		switch {
		case errors.Is(err, evidence.ErrEmptyMedia):
			writeUploadError(w, http.StatusBadRequest, "no media in request", logger)
			return
		case errors.Is(err, evidence.ErrStorageUpload):
			writeUploadError(w, http.StatusBadGateway, "failed to store media", logger)
			return
		case err != nil:
			logger.Error("Upload from user %d failed: %v", userID, err)
			writeUploadError(w, http.StatusInternalServerError, "failed to record evidence", logger)
			return
		}

		writeJSON(w, http.StatusOK, dto.UploadResponse{
			Status:     dto.StatusSuccess,
			Message:    fmt.Sprintf("evidence %d created", record.ID),
			EvidenceID: record.ID,
		}, logger)
	}
}

func writeUploadError(w http.ResponseWriter, status int, message string, logger *logger.Logger) {
	writeJSON(w, status, dto.UploadResponse{Status: dto.StatusError, Message: message}, logger)
}

func readUpload(r *http.Request) (dto.UploadRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return dto.UploadRequest{}, err
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return dto.UploadRequest{}, fmt.Errorf("missing file field")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return dto.UploadRequest{}, err
		}
		return dto.UploadRequest{
			Data:        data,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
		}, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return dto.UploadRequest{}, err
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = r.Header.Get("X-Filename")
	}
	return dto.UploadRequest{
		Data:        data,
		Filename:    filename,
		ContentType: mediaType,
	}, nil
}

func uploadUserID(r *http.Request) (int64, int, error) {
	sessionUser, hasSession := middleware.UserID(r.Context())

	raw := strings.TrimSpace(r.FormValue("userId"))
	if raw == "" {
		if hasSession {
			return sessionUser, 0, nil
		}
		return 0, http.StatusBadRequest, fmt.Errorf("userId is required")
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, http.StatusBadRequest, fmt.Errorf("invalid userId %q", raw)
	}
	if hasSession && sessionUser != userID {
		return 0, http.StatusForbidden, fmt.Errorf("userId does not match the session")
	}
	return userID, 0, nil
}
