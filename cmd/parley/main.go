// parley: RAG-grounded voice assistant service.
// Streams caller audio in over WebSocket, transcribes it, answers from
// the customer's knowledge base, and streams synthesized speech back.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/parleyvoice/go-parley/internal/config"
	"github.com/parleyvoice/go-parley/internal/log"
	"github.com/parleyvoice/go-parley/pkg/customer"
	"github.com/parleyvoice/go-parley/pkg/inference"
	"github.com/parleyvoice/go-parley/pkg/ingest"
	"github.com/parleyvoice/go-parley/pkg/knowledge"
	"github.com/parleyvoice/go-parley/pkg/prompt"
	"github.com/parleyvoice/go-parley/pkg/server"
	"github.com/parleyvoice/go-parley/pkg/stt"
	"github.com/parleyvoice/go-parley/pkg/tts"
	"github.com/parleyvoice/go-parley/pkg/user"
)

func main() {
	cfg := config.Load()
	log.Init(cfg.LogLevel)
	logger := log.With("component", "main")

	config.RequireKeys("DEEPGRAM_API_KEY", "OPENAI_API_KEY")

	customers, err := customer.NewFileStore(filepath.Join(cfg.CustomerDataPath, "customers.json"))
	if err != nil {
		logger.Error("failed to open customer store", "error", err)
		os.Exit(1)
	}

	users, err := user.NewFileStore(filepath.Join(cfg.CustomerDataPath, "users.json"))
	if err != nil {
		logger.Error("failed to open user store", "error", err)
		os.Exit(1)
	}

	store := openKnowledgeStore(cfg)
	defer store.Close()

	llmOpts := []inference.Option{
		inference.WithAPIKey(cfg.OpenAIAPIKey),
		inference.WithModel(cfg.LLMModel),
		inference.WithLogger(log.L()),
	}
	if cfg.OpenAIBaseURL != "" {
		llmOpts = append(llmOpts, inference.WithBaseURL(cfg.OpenAIBaseURL))
	}
	llm, err := inference.NewClient(llmOpts...)
	if err != nil {
		logger.Error("failed to create inference client", "error", err)
		os.Exit(1)
	}
	defer llm.Close()

	retriever := knowledge.NewRetriever(llm, store,
		knowledge.WithTopK(cfg.RetrievalTopK),
		knowledge.WithTimeout(cfg.CallTimeout),
	)
	assembler := prompt.NewAssembler(retriever,
		prompt.WithBudget(cfg.PromptBudget),
		prompt.WithHistoryWindow(cfg.HistoryWindow),
	)

	srv := server.NewServer(server.Deps{
		Config:    cfg,
		Logger:    log.L(),
		Customers: customers,
		Knowledge: store,
		LLM:       llm,
		Assembler: assembler,
		Ingestor:  ingest.NewIngestor(llm, store),
		Tracker:   ingest.NewTracker(),
		Users:     users,
		Signer:    user.NewSigner(cfg.TokenSecret, 0),
		NewSTT:    sttFactory(cfg),
		NewTTS:    ttsFactory(cfg),
	})

	go func() {
		if err := srv.Start(cfg.Port); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("parley started", "port", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// openKnowledgeStore connects to Qdrant when configured and falls back
// to the in-memory store otherwise. The fallback keeps local
// development keyless but loses knowledge on restart.
func openKnowledgeStore(cfg *config.Config) knowledge.Store {
	if cfg.QdrantURL == "" {
		log.Warn("QDRANT_URL not set, using in-memory knowledge store")
		return knowledge.NewMemory()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := knowledge.NewQdrant(ctx, knowledge.QdrantConfig{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
	})
	if err != nil {
		log.Error("failed to connect to qdrant", "url", cfg.QdrantURL, "error", err)
		os.Exit(1)
	}
	return store
}

// sttFactory builds per-session Deepgram streams.
func sttFactory(cfg *config.Config) func() (stt.Provider, error) {
	return func() (stt.Provider, error) {
		return stt.NewDeepgram(
			stt.WithAPIKey(cfg.DeepgramAPIKey),
			stt.WithSampleRate(cfg.SampleRate),
			stt.WithEndpointing(cfg.SilenceDuration),
			stt.WithLogger(log.L()),
		)
	}
}

// ttsFactory builds per-session synthesis chains: ElevenLabs first
// when a key is present, OpenAI as fallback.
func ttsFactory(cfg *config.Config) func(voice string) (tts.Provider, error) {
	return func(voice string) (tts.Provider, error) {
		if voice == "" {
			voice = cfg.DefaultVoiceID
		}

		var providers []tts.Provider

		if cfg.ElevenLabsAPIKey != "" {
			eleven, err := tts.NewElevenLabs(
				tts.WithAPIKey(cfg.ElevenLabsAPIKey),
				tts.WithVoice(tts.ResolveVoice(voice)),
				tts.WithLogger(log.L()),
			)
			if err != nil {
				return nil, err
			}
			providers = append(providers, eleven)
		}

		openai, err := tts.NewOpenAI(
			tts.WithAPIKey(cfg.OpenAIAPIKey),
			tts.WithLogger(log.L()),
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, openai)

		if len(providers) == 1 {
			return providers[0], nil
		}
		return tts.NewChainWithLogger(log.L(), providers...)
	}
}
