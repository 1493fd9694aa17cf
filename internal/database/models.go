package database

import "time"

// ProcessingStatus is the lifecycle state of an uploaded video.
// Transitions are monotonic forward: pending -> processing -> completed,
// or pending/processing -> failed. They never regress.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// statusRank orders statuses for the forward-only transition check.
var statusRank = map[ProcessingStatus]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusCompleted:  2,
	StatusFailed:     2,
}

// Valid reports whether s is a known processing status.
func (s ProcessingStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Video is the persisted metadata for one uploaded media file.
type Video struct {
	ID               int64            `json:"id"`
	MatchID          int64            `json:"matchId"`
	Filename         string           `json:"filename"`
	OriginalFilename string           `json:"originalFilename,omitempty"`
	URL              string           `json:"url"`
	SizeMB           string           `json:"videoFileSizeInMb"`
	Status           ProcessingStatus `json:"processingStatus"`
	CreatedEstimate  string           `json:"videoFileCreatedDateTimeEstimate,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Team is a collaborator entity, read for video enrichment only.
type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

// Match is a collaborator entity, read for video enrichment only.
type Match struct {
	ID       int64  `json:"id"`
	HomeTeam *Team  `json:"homeTeam,omitempty"`
	AwayTeam *Team  `json:"awayTeam,omitempty"`
	PlayedOn string `json:"playedOn,omitempty"`
	City     string `json:"city,omitempty"`
}

// VideoWithMatch is a video record enriched with resolved match data.
type VideoWithMatch struct {
	Video
	Match *Match `json:"match"`
}

// Script is a collaborator entity: a set of timed events for a match.
type Script struct {
	ID      int64 `json:"id"`
	MatchID int64 `json:"matchId"`
}

// SyncContract binds a script event timing to a specific video.
// Before a video exists it references only its script; after upload it
// is rebound in place to the new video id.
type SyncContract struct {
	ID        int64   `json:"id"`
	ScriptID  int64   `json:"scriptId"`
	VideoID   *int64  `json:"videoId"`
	DeltaTime float64 `json:"deltaTime"`
}

// User is a collaborator entity: the requesting identity for uploads
// and montage jobs, and the recipient of completion notifications.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"isAdmin"`
}
