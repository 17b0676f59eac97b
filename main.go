package main

import (
	"log"

	"talkbridge/audio"
	"talkbridge/diarize"
	"talkbridge/internal/api"
	"talkbridge/internal/config"
	"talkbridge/internal/service"
	"talkbridge/session"
	"talkbridge/storage"
)

func main() {
	cfg := config.Load()

	if cfg.DiarizerURL == "" {
		log.Fatal("diarization service URL required (-diarizer flag or DIARIZER_URL)")
	}

	store, err := storage.NewJSONStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to init store: %v", err)
	}

	recording := service.NewRecordingService(
		audio.NewMalgoDevice(cfg.MicDevice),
		diarize.NewHTTPProvider(cfg.DiarizerURL, cfg.DiarizerKey),
		storage.NewLocalUploader(cfg.DataDir),
		store,
		session.Config{
			SegmentWindow:  cfg.SegmentWindow,
			MaxSegments:    cfg.MaxSegments,
			MaxSessionTime: cfg.MaxSessionTime,
			HeuristicRoles: cfg.HeuristicRoles,
		},
	)

	server := api.NewServer(cfg.Port, recording)
	if err := server.Start(); err != nil {
		log.Fatal("ListenAndServe:", err)
	}
}
