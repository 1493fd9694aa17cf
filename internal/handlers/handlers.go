package handlers

import (
	"time"

	"kybervision-api/internal/database"
	"kybervision-api/internal/mailer"
	"kybervision-api/internal/montage"
	"kybervision-api/internal/startup"
	"kybervision-api/internal/storage"
	"kybervision-api/internal/token"
)

// Handlers carries the wired dependencies for every HTTP endpoint.
type Handlers struct {
	db        *database.Database
	layout    storage.Layout
	queue     montage.Queue
	runner    *montage.Runner
	signer    *token.Signer
	sender    mailer.Sender
	cfg       *startup.Config
	startTime time.Time
}

// New wires the handler set.
func New(db *database.Database, layout storage.Layout, queue montage.Queue, runner *montage.Runner,
	signer *token.Signer, sender mailer.Sender, cfg *startup.Config) *Handlers {
	return &Handlers{
		db:        db,
		layout:    layout,
		queue:     queue,
		runner:    runner,
		signer:    signer,
		sender:    sender,
		cfg:       cfg,
		startTime: time.Now(),
	}
}
