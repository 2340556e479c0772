package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/dentavision/dentavision/pkg/classify"
	"github.com/dentavision/dentavision/pkg/xray"
	"github.com/dentavision/dentavision/server/diagnosis"
	"github.com/dentavision/dentavision/server/storage"
	"github.com/julienschmidt/httprouter"
)

type Server struct {
	HotReloadWWW bool
	Log          logs.Log

	cfg        *Config
	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	storage    storage.Storage
	diagnosis  *diagnosis.Service
}

func NewServer(configFile string) (*Server, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	logger, err := logs.NewLog()
	if err != nil {
		return nil, err
	}

	// Open artifact store
	var store storage.Storage
	if cfg.Storage.GCS != nil {
		store, err = storage.NewStorageGCS(logger, cfg.Storage.GCS.Bucket)
		if err != nil {
			return nil, err
		}
	} else if cfg.Storage.Filesystem != nil {
		store, err = storage.NewStorageFS(logger, cfg.Storage.Filesystem.Root)
		if err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')")
	}

	model := classify.NewModel(logger, cfg.Model.Path, cfg.Model.ConfigPath, cfg.Model.RuntimeLib)
	if cfg.Model.EagerLoad {
		if err := model.Load(); err != nil {
			return nil, err
		}
	}

	limits := xray.DefaultLimits()
	limits.MaxBytes = cfg.Diagnosis.MaxUploadMB * 1024 * 1024
	diagService, err := diagnosis.NewService(logger, cfg.DB, store, model, diagnosis.Options{
		Limits:              limits,
		ConfidenceThreshold: cfg.Diagnosis.ConfidenceThreshold,
		HeatmapGrid:         cfg.Diagnosis.HeatmapGrid,
	})
	if err != nil {
		return nil, err
	}

	return &Server{
		Log:       logger,
		cfg:       cfg,
		storage:   store,
		diagnosis: diagService,
	}, nil
}

// port example: ":8080"
// Routes are set up here rather than in NewServer, so that HotReloadWWW can be
// toggled in between.
func (s *Server) ListenHTTP(port string) error {
	if err := s.setupHttpRoutes(); err != nil {
		return err
	}
	s.Log.Infof("Listening on %v", port)
	s.httpServer = &http.Server{
		Addr:    port,
		Handler: s.withCORS(s.httpRouter),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v', shutting down", sig.String())
			s.Shutdown()
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	signal.Stop(s.signalIn)
	close(s.signalIn)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Log.Warnf("Shutdown complete, with error: %v", err)
	} else {
		s.Log.Infof("Shutdown complete")
	}
	s.diagnosis.Close()
	s.Log.Close()
}
