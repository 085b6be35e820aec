package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/hushabye/hush-core/internal/bus"
	"github.com/hushabye/hush-core/internal/config"
	"github.com/hushabye/hush-core/internal/pipeline"
	"github.com/hushabye/hush-core/internal/protocol"
)

// Service listens for story requests on the bus, typically fired by a
// bedside device button, and runs the streaming pipeline for each one.
// Lifecycle events are republished so playback integrations can follow
// along; a request arriving while a generation is in flight is dropped
// with a busy notice rather than queued.
type Service struct {
	cfg     config.TriggerConfig
	bus     *bus.Client
	stories *pipeline.Service
	logger  *slog.Logger
	sub     *nats.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewService(parent context.Context, cfg config.TriggerConfig, busClient *bus.Client, stories *pipeline.Service, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:     cfg,
		bus:     busClient,
		stories: stories,
		logger:  logger.With(slog.String("component", "trigger")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectStoryRequest, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.sub != nil
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.StoryRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("invalid story request", slogError(err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(req)
	}()
}

func (s *Service) run(req protocol.StoryRequest) {
	s.logger.Info("device story request",
		slog.String("request_id", req.RequestID),
		slog.String("device", req.Device))

	generated, err := s.stories.GenerateStream(s.ctx, pipeline.Request{
		Universe:  req.Universe,
		Setting:   req.Setting,
		Theme:     req.Theme,
		ChildName: req.ChildName,
	}, s.emitEvent)
	if errors.Is(err, pipeline.ErrBusy) {
		s.logger.Info("story request dropped, generation in progress",
			slog.String("request_id", req.RequestID))
		if err := s.publish(protocol.SubjectStoryBusy, protocol.StoryBusy{
			RequestID: req.RequestID,
			Reason:    pipeline.ErrBusy.Error(),
			Timestamp: time.Now().UTC(),
		}); err != nil {
			s.logger.Warn("failed to publish busy notice", slogError(err))
		}
		return
	}
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn("story generation failed",
				slog.String("request_id", req.RequestID), slogError(err))
		}
		return
	}

	if err := s.publish(protocol.SubjectStoryReady, protocol.StoryReady{
		RequestID: req.RequestID,
		StoryID:   generated.ID,
		Title:     generated.Title,
		AudioPath: generated.AudioPath,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		s.logger.Warn("failed to publish story ready", slogError(err))
	}
}

func (s *Service) emitEvent(ev protocol.StreamEvent) error {
	return s.publish(protocol.SubjectStoryEvents, ev)
}

func (s *Service) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.bus.Conn().Publish(subject, data)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
