package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config настройки бэкенда
type Config struct {
	DataDir     string
	Port        string
	MicDevice   string
	DiarizerURL string
	DiarizerKey string

	SegmentWindow  time.Duration
	MaxSegments    int
	MaxSessionTime time.Duration
	HeuristicRoles bool
}

// Load читает флаги командной строки. Секреты провайдера диаризации
// берутся из окружения (.env подхватывается если есть).
func Load() *Config {
	// .env опционален, отсутствие не ошибка
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env")
	}

	dataDir := flag.String("data", "data/sessions", "Directory for session data")
	port := flag.String("port", "8080", "Server port")
	micDevice := flag.String("mic", "", "Capture device name (default: system default)")
	diarizerURL := flag.String("diarizer", os.Getenv("DIARIZER_URL"), "Diarization service URL")
	segmentWindow := flag.Duration("segment-window", 30*time.Second, "Segment length")
	maxSegments := flag.Int("max-segments", 10, "Max segments per session")
	maxSession := flag.Duration("max-session", 5*time.Minute, "Max session duration")
	heuristicRoles := flag.Bool("heuristic-roles", false, "Classify roles per utterance without diarization speakers")
	flag.Parse()

	return &Config{
		DataDir:        *dataDir,
		Port:           *port,
		MicDevice:      *micDevice,
		DiarizerURL:    *diarizerURL,
		DiarizerKey:    os.Getenv("DIARIZER_TOKEN"),
		SegmentWindow:  *segmentWindow,
		MaxSegments:    *maxSegments,
		MaxSessionTime: *maxSession,
		HeuristicRoles: *heuristicRoles,
	}
}
