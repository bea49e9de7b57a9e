package dto

// EvidenceFilter narrows evidence listings. Zero values mean "any".
type EvidenceFilter struct {
	UserID     int64
	CategoryID int64
	Day        string
	Limit      int
	Offset     int
}
