package models

import "time"

// Event types published to the sync events topic.
const (
	EventTypeSyncRunStarted  = "SyncRunStarted"
	EventTypeSyncRunFinished = "SyncRunFinished"
	EventTypeSyncRequested   = "SyncRequested"
)

// BaseEvent is embedded in all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncRunStartedEvent is published when a dispatch creates its run row.
type SyncRunStartedEvent struct {
	BaseEvent
	RunID      string `json:"run_id"`
	Vendor     string `json:"vendor"`
	DryRun     bool   `json:"dry_run"`
	Actor      string `json:"actor,omitempty"`
	SourcePath string `json:"source_path,omitempty"`
}

// SyncRunFinishedEvent is published after a run reaches a terminal status.
type SyncRunFinishedEvent struct {
	BaseEvent
	RunID      string    `json:"run_id"`
	Vendor     string    `json:"vendor"`
	Status     string    `json:"status"`
	DryRun     bool      `json:"dry_run"`
	Hash       string    `json:"hash,omitempty"`
	Counts     RunCounts `json:"counts"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// SyncRequestedEvent asks the worker to run a sync for a vendor.
type SyncRequestedEvent struct {
	BaseEvent
	Vendor     string `json:"vendor"`
	SourcePath string `json:"source_path"`
	DryRun     bool   `json:"dry_run"`
	Actor      string `json:"actor,omitempty"`
}
