// EvidenceList is a paginated response payload for the evidence listing.
package dto

import "github.com/TeamViewMore/Poksin-Webcam/internal/model"

type EvidenceList struct {
	Records     []model.Evidence `json:"records"`
	Length      int              `json:"length"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Limit       int              `json:"pageSize"`
}
