// Command batchclient submits the audio keys listed in a manifest to the
// service's /transcribe endpoint.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"speech-pii-redaction-service/internal/manifest"
	"speech-pii-redaction-service/internal/models"
)

func main() {
	manifestPath := flag.String("manifest", "", "Path to an .xlsx, .csv or .txt manifest of audio object keys")
	serverAddr := flag.String("server", "http://localhost:8080", "Service base URL")
	language := flag.String("language", "", "Language code (service default when empty)")
	chunkSize := flag.Int("chunk", 25, "Keys per request")
	timeout := flag.Duration("timeout", 30*time.Second, "Per-request timeout")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if *manifestPath == "" {
		log.Fatal().Msg("-manifest is required")
	}

	keys, err := manifest.Load(*manifestPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load manifest")
	}
	log.Info().Int("keys", len(keys)).Str("manifest", *manifestPath).Msg("Manifest loaded")

	client := &http.Client{Timeout: *timeout}
	var started, failed int
	for i, chunk := range manifest.Chunks(keys, *chunkSize) {
		res, err := submit(context.Background(), client, *serverAddr, models.TranscribeRequest{
			S3ObjectKeys: chunk,
			LanguageCode: *language,
		})
		if err != nil {
			failed += len(chunk)
			log.Error().Err(err).Int("chunk", i).Msg("Request failed")
			continue
		}
		started += len(res.StartedJobs)
		failed += len(res.JobErrors)
		for _, je := range res.JobErrors {
			log.Warn().Str("s3Uri", je.S3URI).Str("error", je.Error).Msg("Job failed")
		}
	}

	fmt.Printf("started=%d failed=%d\n", started, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func submit(ctx context.Context, client *http.Client, baseURL string, body models.TranscribeRequest) (models.DispatchResult, error) {
	var res models.DispatchResult

	payload, err := json.Marshal(body)
	if err != nil {
		return res, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/transcribe", bytes.NewReader(payload))
	if err != nil {
		return res, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return res, err
	}
	if resp.StatusCode != http.StatusOK {
		return res, fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("decode response: %w", err)
	}
	return res, nil
}
