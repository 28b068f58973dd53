// File: cmd/diagnostic/main.go
//
// diagnostic checks connectivity and latency of the external services the
// server depends on, using the same configuration the server reads.
//
//	go run ./cmd/diagnostic -check llm -prompt "hello"
//	go run ./cmd/diagnostic -check memory -runs 5
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iyunix/go-chat/internal/config"
	"github.com/iyunix/go-chat/internal/services"
	"github.com/iyunix/go-chat/internal/services/ai"
	"github.com/iyunix/go-chat/internal/services/memory"
)

func main() {
	check := flag.String("check", "llm", "what to check: llm or memory")
	prompt := flag.String("prompt", "What is the answer to life, the universe and everything?", "prompt sent to the model or embedded for the memory query")
	runs := flag.Int("runs", 5, "memory query repetitions")
	user := flag.String("user", "diagnostic", "user id the memory query is scoped to")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	services.SetupLogging("debug", false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	aiConfig := ai.DefaultConfig()
	aiConfig.LLMKey = cfg.LLM.APIKey
	aiConfig.LLMBaseURL = cfg.LLM.BaseURL
	aiConfig.Model = cfg.LLM.Model
	aiConfig.EmbeddingKey = cfg.Memory.EmbeddingKey
	aiConfig.EmbeddingBaseURL = cfg.Memory.EmbeddingBaseURL
	aiConfig.EmbeddingModel = cfg.Memory.EmbeddingModel
	provider := ai.NewOpenAIProvider(aiConfig)

	switch *check {
	case "llm":
		err = checkLLM(ctx, provider, cfg.LLM.Model, *prompt)
	case "memory":
		err = checkMemory(ctx, cfg, provider, *user, *prompt, *runs)
	default:
		err = fmt.Errorf("unknown check %q", *check)
	}
	if err != nil {
		log.Fatal().Err(err).Str("check", *check).Msg("diagnostic failed")
	}
}

func checkLLM(ctx context.Context, provider *ai.OpenAIProvider, model, prompt string) error {
	start := time.Now()
	stream, err := provider.OpenStream(ctx, ai.StreamRequest{
		Model:    model,
		Messages: []ai.ChatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	var first time.Duration
	chars := 0
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if first == 0 {
			first = time.Since(start)
		}
		chars += len(delta)
		fmt.Fprint(os.Stdout, delta)
	}
	fmt.Fprintln(os.Stdout)
	log.Info().
		Str("model", model).
		Dur("first_token", first).
		Dur("total", time.Since(start)).
		Int("chars", chars).
		Msg("llm stream ok")
	return nil
}

func checkMemory(ctx context.Context, cfg *config.Config, embedder memory.Embedder, userID, text string, runs int) error {
	memConfig := memory.DefaultConfig()
	memConfig.APIKey = cfg.Memory.PineconeAPIKey
	memConfig.IndexHost = cfg.Memory.PineconeHost
	memConfig.Namespace = cfg.Memory.Namespace
	if err := memConfig.Validate(); err != nil {
		return err
	}
	index, err := memory.NewPineconeIndex(memConfig, services.NewLogger("diagnostic"))
	if err != nil {
		return err
	}
	defer index.Close()

	start := time.Now()
	vec, err := embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	log.Info().Dur("took", time.Since(start)).Int("dimensions", len(vec)).Msg("embedding ok")

	var total time.Duration
	for i := 1; i <= runs; i++ {
		start := time.Now()
		matches, err := index.Query(ctx, userID, vec, cfg.Memory.TopK)
		if err != nil {
			return fmt.Errorf("query run %d: %w", i, err)
		}
		took := time.Since(start)
		total += took
		log.Info().Int("run", i).Dur("took", took).Int("matches", len(matches)).Msg("pinecone query")
	}
	if runs > 0 {
		log.Info().Dur("average", total/time.Duration(runs)).Msg("pinecone query ok")
	}
	return nil
}
