// dialogd is the multi-agent dialogue orchestration server: it loads the
// agent roster and tuning configuration, wires the staged (v1) and dynamic
// (v2) routers over a shared session store and realtime event bus, and
// serves the HTTP/WebSocket surface.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/dialogcore/engine/pkg/agent"
	"github.com/dialogcore/engine/pkg/config"
	"github.com/dialogcore/engine/pkg/events"
	"github.com/dialogcore/engine/pkg/executor"
	"github.com/dialogcore/engine/pkg/facilitator"
	"github.com/dialogcore/engine/pkg/models"
	"github.com/dialogcore/engine/pkg/outputs"
	"github.com/dialogcore/engine/pkg/retrieval"
	"github.com/dialogcore/engine/pkg/router/dynamic"
	"github.com/dialogcore/engine/pkg/router/staged"
	"github.com/dialogcore/engine/pkg/session"
	"github.com/dialogcore/engine/pkg/summarizer"
	"github.com/dialogcore/engine/pkg/version"

	"github.com/dialogcore/engine/pkg/api"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v (continuing with existing environment)", envPath, err)
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	gin.SetMode(getEnv("GIN_MODE", "release"))

	ctx := context.Background()
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		log.Fatalf("failed to create data dir %s: %v", cfg.Storage.DataDir, err)
	}

	store, err := session.NewStore(cfg.Storage.DataDir)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	sessions := session.NewManager(store)
	outStore := outputs.NewStore(cfg.Storage.DataDir, sessions)

	retriever := buildRetriever(cfg)
	registry := buildRegistry(cfg, retriever)

	bus := events.NewBus()
	summ := summarizer.New(&executor.Mock{AgentID: "summarizer"})
	fac := facilitator.New()

	stagedRouter := staged.New(registry, summ, sessions, nil, staged.Config{
		Delay:              cfg.Router.Delay,
		DefaultFinalizerID: cfg.DefaultFinalizerID,
	})
	dynamicRouter := dynamic.New(registry, fac, summ, sessions, bus, dynamic.Config{
		MaxRounds:            cfg.Consensus.MaxRounds,
		ConvergenceThreshold: cfg.Consensus.ConvergenceThreshold,
		Delay:                cfg.Router.Delay,
		MaxConcurrent:        cfg.Router.MaxConcurrent,
		DefaultFinalizerID:   cfg.DefaultFinalizerID,
	})

	server := api.NewServer(api.Deps{
		SessionManager:  sessions,
		Outputs:         outStore,
		Registry:        registry,
		Staged:          stagedRouter,
		Dynamic:         dynamicRouter,
		Bus:             bus,
		DefaultLanguage: "en",
	})

	slog.Info("starting dialogd", "version", version.Full(), "addr", cfg.Server.ListenAddr, "agents", len(cfg.Agents), "config_dir", *configDir)
	if err := server.Start(cfg.Server.ListenAddr); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// buildRetriever constructs the process-wide retrieval singleton, or nil
// when RAG is disabled in config. The knowledge corpus is ingested once
// here; agents share the indexed retriever read-only afterwards and
// consult it before their first stage of a sequence.
func buildRetriever(cfg *config.Config) retrieval.Retriever {
	if !cfg.RAG.Enabled {
		return nil
	}
	r := retrieval.NewLocalRetriever(retrieval.Config{
		ChunkSize:        cfg.RAG.Ingestion.ChunkSize,
		ChunkOverlap:     cfg.RAG.Ingestion.ChunkOverlap,
		DefaultTopK:      cfg.RAG.Retrieval.DefaultTopK,
		DefaultMinScore:  cfg.RAG.Retrieval.DefaultMinScore,
		MaxContextTokens: cfg.RAG.Retrieval.MaxContextTokens,
	})

	dir := cfg.RAG.Ingestion.KnowledgeDir
	if dir == "" {
		dir = "./knowledge"
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(cfg.ConfigDir(), dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("warning: knowledge dir %s unreadable: %v (retrieval starts empty)", dir, err)
		return r
	}
	ingested := 0
	for _, entry := range entries {
		if entry.IsDir() || !supportedFileType(entry.Name(), cfg.RAG.Ingestion.SupportedFileTypes) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Printf("warning: skipping knowledge file %s: %v", entry.Name(), err)
			continue
		}
		r.Ingest(entry.Name(), string(data))
		ingested++
	}
	slog.Info("knowledge corpus ingested", "dir", dir, "files", ingested)
	return r
}

func supportedFileType(name string, types []string) bool {
	for _, t := range types {
		if strings.HasSuffix(name, t) {
			return true
		}
	}
	return false
}

// buildRegistry constructs the process-wide agent registry from the
// configured roster. Concrete LM provider adapters live outside this
// module; every agent here is backed by the Mock executor, the only
// Executor implementation this repo owns.
func buildRegistry(cfg *config.Config, retriever retrieval.Retriever) *agent.Registry {
	descriptors := make([]models.AgentDescriptor, 0, len(cfg.Agents))
	for _, def := range cfg.Agents {
		descriptors = append(descriptors, models.AgentDescriptor{
			ID:                 def.ID,
			Name:               def.Name,
			Style:              models.AgentStyle(def.Style),
			Priority:           models.AgentPriority(def.Priority),
			Personality:        def.Personality,
			Preferences:        def.Preferences,
			MemoryScope:        models.MemoryScope(def.MemoryScope),
			Tone:               def.Tone,
			CommunicationStyle: def.CommunicationStyle,
		})
	}

	memory := agent.MemoryConfig{
		MaxRecentMessages: cfg.Memory.MaxRecentMessages,
		TokenThreshold:    cfg.Memory.TokenThreshold,
		CompressionRatio:  cfg.Memory.CompressionRatio,
	}

	return agent.NewRegistry(descriptors, func(d models.AgentDescriptor) executor.Executor {
		return &executor.Mock{AgentID: d.ID}
	}, func(d models.AgentDescriptor) retrieval.Retriever {
		return retriever
	}, memory)
}
