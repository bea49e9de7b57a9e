package dto

// Notification is sent to the classification service after evidence is committed.
type Notification struct {
	EvidenceID int64  `json:"evidenceId"`
	FileName   string `json:"fileName"`
}

// EvidenceNotice is pushed to dashboards and the event emitter.
type EvidenceNotice struct {
	Type       string `json:"type"`
	EvidenceID int64  `json:"evidenceId"`
	UserID     int64  `json:"userId"`
	CategoryID int64  `json:"categoryId"`
	URL        string `json:"url"`
	FileCount  int    `json:"fileCount"`
	Created    bool   `json:"created"`
}
