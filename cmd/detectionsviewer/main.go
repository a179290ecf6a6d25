// Command detectionsviewer shows PII detections published to Kafka in a
// browser, live.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"speech-pii-redaction-service/internal/observability/logging"
	"speech-pii-redaction-service/internal/viewer"
)

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "pii-detections", "Detections topic")
	lookback := flag.Duration("lookback", time.Hour, "Replay detections newer than this")
	flag.Parse()

	cfg := logging.DefaultConfig()
	cfg.Format = "console"
	cfg.Service = "detections-viewer"
	logging.Init(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := viewer.NewHub()
	reader := viewer.NewReader(ctx, strings.Split(*brokers, ","), *topic, *lookback)
	defer reader.Close()

	go func() {
		for ctx.Err() == nil {
			if err := hub.Consume(ctx, reader); err != nil {
				log.Error().Err(err).Str("topic", *topic).Msg("Kafka read failed, retrying")
				time.Sleep(time.Second)
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(viewer.Page))
	})
	mux.HandleFunc("/ws", hub.ServeWS)

	srv := &http.Server{Addr: ":" + *port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", "http://localhost:"+*port).
		Strs("brokers", strings.Split(*brokers, ",")).
		Str("topic", *topic).
		Msg("Detections viewer starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Server error")
		os.Exit(1)
	}
}
