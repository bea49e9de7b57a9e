package dto

// UploadRequest carries one discrete media submission.
type UploadRequest struct {
	UserID      int64
	Data        []byte
	Filename    string
	ContentType string
	Description string // optional, replaces the generated description
}

// UploadResponse is the JSON body returned by the upload endpoint.
type UploadResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	EvidenceID int64  `json:"evidenceId,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)
