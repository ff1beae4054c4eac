package fx

import (
	"context"
	"time"
	"valorant-scout/internal/config"
	"valorant-scout/internal/constants"
	"valorant-scout/internal/database"
	"valorant-scout/internal/domain"
	"valorant-scout/internal/grid"
	"valorant-scout/internal/logger"
	"valorant-scout/internal/pipeline"
	"valorant-scout/internal/repository"
	"valorant-scout/internal/server"
	"valorant-scout/internal/vision"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideFetcher(client *grid.Client) pipeline.SnapshotFetcher {
	return client
}

func ProvideCapturer() vision.Capturer {
	return vision.NewScreenCapturer()
}

func ProvideClassifierClient(cfg *config.Config, log zerolog.Logger) vision.Classifier {
	return vision.NewOllamaClassifier(cfg, log)
}

// ProvideDetector wires the detector's outputs: every tactical event goes to
// the websocket hub and the archive; conclusions are mirrored too. Archive
// writes are best-effort and never reach the pipeline as errors.
func ProvideDetector(cfg *config.Config, hub *server.Hub, events *repository.EventRepository, tracker *pipeline.GameTracker, log zerolog.Logger) *pipeline.Detector {
	sink := domain.SinkFunc(func(ev domain.TacticalEvent) {
		hub.Publish(ev)
		archiveEvent(cfg, events, log, tracker.Current(), ev)
	})

	detector := pipeline.NewDetector(cfg.PremiumWeapons, sink, log)
	detector.SetConclusionHook(func(text string, at time.Time) {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
		defer cancel()
		if err := events.InsertConclusion(ctx, cfg.GridSeriesID, text, at); err != nil {
			log.Warn().Err(err).Msg("failed to archive conclusion")
		}
	})
	return detector
}

// ProvideVisionSink feeds visual events to the hub; only actionable labels are
// archived, the NO_EVENT/VLM_ERROR liveness stream stays out of sqlite.
func ProvideVisionSink(cfg *config.Config, hub *server.Hub, events *repository.EventRepository, tracker *pipeline.GameTracker, log zerolog.Logger) VisionSink {
	return domain.SinkFunc(func(ev domain.TacticalEvent) {
		hub.Publish(ev)
		switch ev.EventType {
		case domain.EventKill, domain.EventDeath, domain.EventRoundEnd:
			archiveEvent(cfg, events, log, tracker.Current(), ev)
		}
	})
}

// VisionSink distinguishes the visual channel's sink in the fx graph.
type VisionSink domain.EventSink

func archiveEvent(cfg *config.Config, events *repository.EventRepository, log zerolog.Logger, gameID string, ev domain.TacticalEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	if err := events.InsertEvent(ctx, cfg.GridSeriesID, gameID, ev); err != nil {
		log.Warn().Err(err).Msg("failed to archive tactical event")
	}
}

func ProvideHistory(cfg *config.Config, log zerolog.Logger) *pipeline.HistoryStore {
	return pipeline.NewHistoryStore(cfg.HistorySize, cfg.HistoryPath, log)
}

func ProvidePoller(fetcher pipeline.SnapshotFetcher, detector *pipeline.Detector, history *pipeline.HistoryStore, tracker *pipeline.GameTracker, cfg *config.Config, log zerolog.Logger) *pipeline.StatePoller {
	return pipeline.NewStatePoller(fetcher, detector, history, tracker, cfg.PollInterval, log)
}

func ProvideClassifier(slot *vision.FrameSlot, classifier vision.Classifier, sink VisionSink, cfg *config.Config, log zerolog.Logger) *vision.FrameClassifier {
	return vision.NewFrameClassifier(slot, classifier, sink, cfg.ClassifyInterval(), cfg.EventCooldown, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(repository.NewEventRepository),
	// state channel
	fx.Provide(grid.NewClient),
	fx.Provide(ProvideFetcher),
	fx.Provide(pipeline.NewGameTracker),
	fx.Provide(ProvideDetector),
	fx.Provide(ProvideHistory),
	fx.Provide(ProvidePoller),
	// visual channel
	fx.Provide(vision.NewFrameSlot),
	fx.Provide(ProvideCapturer),
	fx.Provide(ProvideClassifierClient),
	fx.Provide(ProvideVisionSink),
	fx.Provide(vision.NewFrameProducer),
	fx.Provide(ProvideClassifier),
	// event surface
	fx.Provide(server.NewHub),
	fx.Provide(server.New),
)
