// Command classifier_probe sends sample texts to the AI-text detection
// endpoint and reports verdicts and latency. Useful for verifying the
// classifier deployment before pointing the API at it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/noah-isme/lms-submission-api/pkg/classifier"
)

type sampleSet struct {
	Samples []sample `json:"samples"`
}

type sample struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

func main() {
	var (
		url         string
		samplesPath string
		timeout     time.Duration
	)

	flag.StringVar(&url, "url", "http://localhost:8000/predict", "Classifier endpoint URL")
	flag.StringVar(&samplesPath, "samples", filepath.Join("scripts", "classifier_probe", "samples.json"), "Path to JSON samples file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "Per-request timeout")
	flag.Parse()

	samples, err := loadSamples(samplesPath)
	if err != nil {
		log.Fatalf("load samples: %v", err)
	}
	if len(samples) == 0 {
		log.Fatal("no samples to probe with")
	}

	client := classifier.NewClient(classifier.Config{URL: url, Timeout: timeout})

	failures := 0
	for _, s := range samples {
		start := time.Now()
		verdict, err := client.Classify(context.Background(), s.Text)
		elapsed := time.Since(start)

		if err != nil {
			failures++
			fmt.Printf("%-12s FAIL  %s (%s)\n", s.Label, err, elapsed.Round(time.Millisecond))
			continue
		}
		fmt.Printf("%-12s %-6s confidence=%.3f ai=%.3f (%s)\n",
			s.Label, verdict.Prediction, verdict.Confidence, verdict.Probabilities.AI, elapsed.Round(time.Millisecond))
	}

	if failures > 0 {
		fmt.Printf("\n%d of %d probes failed\n", failures, len(samples))
		os.Exit(1)
	}
	fmt.Printf("\nall %d probes succeeded\n", len(samples))
}

func loadSamples(path string) ([]sample, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var set sampleSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return set.Samples, nil
}
