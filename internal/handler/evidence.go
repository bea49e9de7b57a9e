package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/middleware"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository"
)

// EvidenceReader is the read side of the evidence repository.
type EvidenceReader interface {
	GetByID(ctx context.Context, id int64) (*model.Evidence, error)
	GetAll(ctx context.Context, filter *dto.EvidenceFilter) ([]model.Evidence, error)
	GetTotalCount(ctx context.Context, filter *dto.EvidenceFilter) (int, error)
}

// ListEvidenceHandler returns the logged-in user's evidence records, newest first.
// Query: category=webcam|video, day=YYYY-MM-DD, page, limit.
func ListEvidenceHandler(repo EvidenceReader, categories model.Categories, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.EvidenceFilter{
			UserID: userID,
			Limit:  limit,
			Offset: (page - 1) * limit,
		}
		switch q.Get("category") {
		case "":
		case "webcam":
			filter.CategoryID = categories.ID(model.CategorySessionScoped)
		case "video":
			filter.CategoryID = categories.ID(model.CategorySingleShot)
		default:
			http.Error(w, "Unknown category", http.StatusBadRequest)
			return
		}
		if day := q.Get("day"); day != "" {
			if parseDate(day).IsZero() {
				http.Error(w, "Invalid day, expected YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			filter.Day = day
		}

		records, err := repo.GetAll(r.Context(), filter)
		if err != nil {
			logger.Error("Error querying evidence: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := repo.GetTotalCount(r.Context(), filter)
		if err != nil {
			logger.Error("Error counting evidence: %v", err)
			totalCount = len(records)
		}

		if records == nil {
			records = []model.Evidence{}
		}
		data := dto.EvidenceList{
			Records:     records,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}
		writeJSON(w, http.StatusOK, data, logger)
	}
}

// GetEvidenceHandler returns one record owned by the logged-in user.
func GetEvidenceHandler(repo EvidenceReader, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserID(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid evidence id", http.StatusBadRequest)
			return
		}

		record, err := repo.GetByID(r.Context(), id)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && record.UserID != userID) {
			http.NotFound(w, r)
			return
		}
		if err != nil {
			logger.Error("Error reading evidence %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, record, logger)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format).
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(model.ScopeDayLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
