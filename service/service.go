package service

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"

	"infrasee/config"
	"infrasee/database"
	"infrasee/handlers"
	"infrasee/models"
	"infrasee/notification"
	"infrasee/rabbitmq"
	"infrasee/websocket"
	"infrasee/workflow"
)

// Service wires the workflow engine to its storage, notification channels and
// HTTP handlers, and runs the background expiry sweep.
type Service struct {
	config    *config.Config
	db        *database.Database
	hub       *websocket.Hub
	publisher *rabbitmq.Publisher
	engine    *workflow.Engine
	handlers  *handlers.Handlers

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewService builds the full dependency graph. RabbitMQ is optional: with no
// AMQP_URL configured, notifications still persist and broadcast over the
// socket, they just never reach the external exchange.
func NewService(cfg *config.Config) (*Service, error) {
	db, err := database.NewDatabase(cfg)
	if err != nil {
		return nil, err
	}

	hub := websocket.NewHub()

	var publisher *rabbitmq.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRouting)
		if err != nil {
			db.Close()
			return nil, err
		}
	} else {
		log.Warn("AMQP_URL not set; notification events will not be published")
	}

	dispatcher := notification.NewDispatcher(db, hub, &notificationFanout{
		publisher: publisher,
		hub:       hub,
	})

	engine := workflow.NewEngine(db, dispatcher, workflow.DuplicatePolicy{
		RadiusMeters: cfg.DuplicateRadiusMeters,
		MaxNearby:    cfg.DuplicateMaxNearby,
	})

	return &Service{
		config:    cfg,
		db:        db,
		hub:       hub,
		publisher: publisher,
		engine:    engine,
		handlers:  handlers.NewHandlers(engine, db, hub),
		stopChan:  make(chan struct{}),
	}, nil
}

// Start prepares the schema and launches the hub and sweep loops.
func (s *Service) Start() error {
	log.Info("Starting workflow service...")

	if err := s.db.EnsureSchema(context.Background()); err != nil {
		return err
	}

	go s.hub.Run()

	s.wg.Add(1)
	go s.expiryLoop()

	log.Info("Workflow service started")
	return nil
}

// Stop stops the service gracefully
func (s *Service) Stop() error {
	log.Info("Stopping workflow service...")

	close(s.stopChan)
	s.wg.Wait()

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Errorf("Error closing publisher: %v", err)
		}
	}
	if err := s.db.Close(); err != nil {
		log.Errorf("Error closing database: %v", err)
	}

	log.Info("Workflow service stopped")
	return nil
}

// GetHandlers returns the HTTP handlers
func (s *Service) GetHandlers() *handlers.Handlers {
	return s.handlers
}

// Engine exposes the workflow engine for wiring.
func (s *Service) Engine() *workflow.Engine {
	return s.engine
}

// expiryLoop periodically deletes unassigned reports that nobody claimed
// within the configured TTL.
func (s *Service) expiryLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ExpirySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			cutoff := now.Add(-s.config.UnassignedTTL)
			deleted, err := s.db.ExpireUnassignedBefore(context.Background(), cutoff)
			if err != nil {
				log.Errorf("Expiry sweep failed: %v", err)
				continue
			}
			if deleted > 0 {
				log.Infof("Expired %d unassigned reports older than %s", deleted, s.config.UnassignedTTL)
			}
		}
	}
}

// notificationFanout mirrors every persisted notification to the external
// exchange and to connected dashboard sockets.
type notificationFanout struct {
	publisher *rabbitmq.Publisher
	hub       *websocket.Hub
}

func (f *notificationFanout) Publish(message interface{}) error {
	if n, ok := message.(models.Notification); ok && f.hub != nil {
		f.hub.BroadcastNotification(n)
	}
	if f.publisher == nil {
		return nil
	}
	return f.publisher.Publish(message)
}
