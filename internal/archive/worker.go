package archive

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Worker consumes screening events from the bus and appends them to the
// archive, keeping persistence off the request path.
type Worker struct {
	bus     domain.EventBus
	archive domain.Archiver

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates an archive worker.
func NewWorker(bus domain.EventBus, archive domain.Archiver) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		archive: archive,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the screening topics.
func (w *Worker) Start() error {
	topics := map[string]domain.MessageHandler{
		domain.TopicTransactionScreened: w.handleScreened,
		domain.TopicAlertCreated:        w.handleAlert,
		domain.TopicAlertResolved:       w.handleAlert,
	}

	for topic, handler := range topics {
		sub, err := w.bus.Subscribe(w.ctx, topic, handler)
		if err != nil {
			w.Stop()
			return err
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("archive worker started", "topics", len(w.subscriptions))
	return nil
}

func (w *Worker) handleScreened(ctx context.Context, msg *domain.Message) error {
	var event domain.ScreenedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to decode screened event", "error", err)
		return err
	}

	if event.Transaction != nil {
		if err := w.archive.SaveTransaction(ctx, event.Transaction); err != nil {
			slog.Error("failed to archive transaction",
				"transaction_id", event.Transaction.ID,
				"error", err,
			)
			return err
		}
	}

	if err := w.archive.SaveDecision(ctx, &event.Decision); err != nil {
		slog.Error("failed to archive decision",
			"transaction_id", event.Decision.TransactionID,
			"error", err,
		)
		return err
	}
	return nil
}

func (w *Worker) handleAlert(ctx context.Context, msg *domain.Message) error {
	var alert domain.FraudAlert
	if err := json.Unmarshal(msg.Payload, &alert); err != nil {
		slog.Error("failed to decode alert event", "error", err)
		return err
	}

	if err := w.archive.SaveAlert(ctx, &alert); err != nil {
		slog.Error("failed to archive alert",
			"alert_id", alert.ID,
			"error", err,
		)
		return err
	}
	return nil
}

// Stop unsubscribes from all topics.
func (w *Worker) Stop() error {
	w.cancel()
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe", "topic", sub.Topic(), "error", err)
		}
	}
	w.subscriptions = nil
	return nil
}
