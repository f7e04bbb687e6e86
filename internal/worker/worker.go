package worker

import (
	"context"
	"encoding/json"

	"catalog-sync/internal/broker"
	"catalog-sync/internal/models"
	"catalog-sync/internal/service"
	"catalog-sync/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// SyncWorker consumes sync-request messages and drives the dispatcher,
// so scheduled and externally-triggered syncs share the HTTP pipeline.
type SyncWorker struct {
	consumer    *broker.Consumer
	syncService *service.SyncService
	logger      *zap.Logger
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(consumer *broker.Consumer, syncService *service.SyncService) *SyncWorker {
	return &SyncWorker{
		consumer:    consumer,
		syncService: syncService,
		logger:      util.GetLogger(),
	}
}

// Start starts the worker
func (w *SyncWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sync worker")

	return w.consumer.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		var baseEvent models.BaseEvent
		if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
			w.logger.Error("Failed to unmarshal event", zap.Error(err))
			return err
		}

		if baseEvent.EventType != models.EventTypeSyncRequested {
			return nil
		}

		var event models.SyncRequestedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			w.logger.Error("Failed to unmarshal SyncRequested event", zap.Error(err))
			return err
		}

		w.logger.Info("Processing sync request",
			zap.String("vendor", event.Vendor),
			zap.Bool("dry_run", event.DryRun))

		_, err := w.syncService.Dispatch(ctx, service.DispatchRequest{
			Vendor:     event.Vendor,
			SourcePath: event.SourcePath,
			DryRun:     event.DryRun,
			Actor:      event.Actor,
		})
		if err != nil {
			// The run row already carries the failure; don't redeliver.
			w.logger.Error("Sync request failed",
				zap.String("vendor", event.Vendor), zap.Error(err))
		}
		return nil
	})
}

// Stop stops the worker
func (w *SyncWorker) Stop() error {
	w.logger.Info("Stopping sync worker")
	return w.consumer.Close()
}
