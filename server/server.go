package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PinkeshGjr/PIRService/he"
	"github.com/PinkeshGjr/PIRService/pir"
	"github.com/PinkeshGjr/PIRService/privacypass"
	"github.com/PinkeshGjr/PIRService/reload"
)

// ServiceConfig assembles everything the query service needs.
type ServiceConfig struct {
	// GenerationDir is the directory the encoder publishes generation
	// files into.
	GenerationDir string

	// QueryTimeout bounds one query end to end; zero selects the
	// default.
	QueryTimeout time.Duration

	// MaxWorkers bounds concurrent homomorphic evaluations; zero means
	// one per available CPU.
	MaxWorkers int

	// Verifier is the token verifier, already configured for either a
	// trusted key set or explicit open mode.
	Verifier *privacypass.Verifier

	Log *slog.Logger
}

// Service ties the database publisher, the query processor, and the
// token verifier together behind the HTTP handler.
type Service struct {
	manager   *he.Manager
	publisher *reload.Publisher
	processor *pir.Processor
	watcher   *reload.Watcher
	handler   *QueryHandler
	verifier  *privacypass.Verifier
	log       *slog.Logger
}

// NewService wires up a query service over a generation directory.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("server: a token verifier is required")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	manager := he.NewManager()
	publisher := reload.NewPublisher(cfg.Log)
	processor := pir.NewProcessor(pir.ProcessorConfig{
		Manager:    manager,
		Log:        cfg.Log,
		MaxWorkers: cfg.MaxWorkers,
	})

	watcher, err := reload.NewWatcher(cfg.GenerationDir, manager, publisher, cfg.Log)
	if err != nil {
		return nil, err
	}
	if err := watcher.LoadLatest(); err != nil {
		return nil, err
	}

	return &Service{
		manager:   manager,
		publisher: publisher,
		processor: processor,
		watcher:   watcher,
		handler:   NewQueryHandler(publisher, processor, cfg.Verifier, cfg.Log, cfg.QueryTimeout),
		verifier:  cfg.Verifier,
		log:       cfg.Log,
	}, nil
}

// Handler returns the route registrar for the HTTP server.
func (s *Service) Handler() *QueryHandler {
	return s.handler
}

// Ready reports whether a generation is loaded and servable.
func (s *Service) Ready() bool {
	return s.publisher.Ready()
}

// Run watches for new generations until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.verifier.StartSweeper(time.Minute)
	defer s.verifier.Close()
	return s.watcher.Run(ctx)
}
