// batchscore scores a CSV file against the loaded pipelines without
// running the server. Useful for offline scoring and for smoke-testing a
// new artifact bundle.
package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"credit-serve/internal/artifacts"
	"credit-serve/internal/batch"
)

func main() {
	var (
		artifactsDir = flag.String("artifacts", "artifacts", "artifacts directory")
		mode         = flag.String("mode", "regression", "scoring mode: regression or classification")
		inPath       = flag.String("in", "", "input CSV file")
		outPath      = flag.String("out", "", "output CSV file (default: stdout)")
	)
	flag.Parse()

	if *inPath == "" {
		log.Fatal().Msg("-in is required")
	}

	bundle, err := artifacts.Load(*artifactsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("artifact load failed")
	}

	pipe := bundle.Regression
	if batch.Mode(*mode) == batch.ModeClassification {
		pipe = bundle.Classification
	}

	raw, err := os.ReadFile(*inPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *inPath).Msg("failed to read input")
	}

	scored, err := batch.ScoreCSV(raw, batch.Mode(*mode), pipe)
	if err != nil {
		log.Fatal().Err(err).Msg("scoring failed")
	}

	if *outPath == "" {
		if _, err := os.Stdout.Write(scored); err != nil {
			log.Fatal().Err(err).Msg("failed to write output")
		}
		return
	}
	if err := os.WriteFile(*outPath, scored, 0o600); err != nil {
		log.Fatal().Err(err).Str("path", *outPath).Msg("failed to write output")
	}
	log.Info().Str("path", *outPath).Msg("scored CSV written")
}
