package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/patterncore/pattern/agent"
	"github.com/patterncore/pattern/config"
	"github.com/patterncore/pattern/coordination"
	pctx "github.com/patterncore/pattern/context"
	"github.com/patterncore/pattern/embeddings"
	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
	"github.com/patterncore/pattern/memory"
	"github.com/patterncore/pattern/model"
	"github.com/patterncore/pattern/model/anthropic"
	"github.com/patterncore/pattern/observability"
	"github.com/patterncore/pattern/tool"
	"github.com/patterncore/pattern/tool/builtin"
)

// ServeCmd loads a config file and runs agents behind a small chi HTTP
// surface until interrupted: config, then store, then models and tools,
// then agents, then the listener, all torn down on SIGINT/SIGTERM.
type ServeCmd struct{}

func (s *ServeCmd) Run(c *cli) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := observability.ParseLevel(cfg.Logger.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	observability.Init(level, os.Stderr, cfg.Logger.Format)
	logger := observability.GetLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	inst, shutdownMetrics, err := observability.InitMetrics(ctx)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer shutdownMetrics(context.Background())

	store := entity.NewWithDriver(cfg.Store.Driver, cfg.Store.DSN)
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	var llms map[string]model.LLM
	var embedder embeddings.Provider
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		built, err := buildLLMs(cfg)
		llms = built
		return err
	})
	g.Go(func() error {
		built, err := buildEmbedder(gctx, cfg)
		embedder = built
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	defer func() {
		for _, llm := range llms {
			llm.Close()
		}
	}()

	registry := tool.NewRegistry(tool.AllowAll{})
	if err := builtin.RegisterDefaults(registry, nil, embeddings.Func(embedder), nil); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	agents, err := buildAgents(ctx, cfg, store, registry, llms)
	if err != nil {
		return err
	}

	groups, err := buildGroups(ctx, cfg, store, agents)
	if err != nil {
		return fmt.Errorf("build groups: %w", err)
	}

	if err := runIngestion(ctx, cfg, store, embedder); err != nil {
		return fmt.Errorf("run ingestion: %w", err)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: buildRouter(agents, groups, inst),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func buildLLMs(cfg *config.Config) (map[string]model.LLM, error) {
	llms := make(map[string]model.LLM, len(cfg.LLMs))
	for name, lc := range cfg.LLMs {
		switch lc.Provider {
		case "anthropic":
			acfg := anthropic.Config{
				APIKey: lc.APIKey,
				Model:  lc.Model,
			}
			if lc.MaxTokens != nil {
				acfg.MaxTokens = *lc.MaxTokens
			}
			acfg.Temperature = lc.Temperature
			client, err := anthropic.New(acfg)
			if err != nil {
				return nil, fmt.Errorf("llm %q: %w", name, err)
			}
			llms[name] = client
		default:
			return nil, fmt.Errorf("llm %q: unsupported provider %q", name, lc.Provider)
		}
	}
	return llms, nil
}

func buildEmbedder(ctx context.Context, cfg *config.Config) (embeddings.Provider, error) {
	for name, ec := range cfg.Embedders {
		if ec.Provider != "gemini" {
			return nil, fmt.Errorf("embedder %q: unsupported provider %q", name, ec.Provider)
		}
		provider, err := embeddings.NewGemini(ctx, embeddings.GeminiConfig{
			APIKey:     ec.APIKey,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("embedder %q: %w", name, err)
		}
		return provider, nil
	}
	return nil, nil
}

func buildAgents(ctx context.Context, cfg *config.Config, store *entity.Store, registry *tool.Registry, llms map[string]model.LLM) (map[string]*agent.Agent, error) {
	agents := make(map[string]*agent.Agent, len(cfg.Agents))
	for name, ac := range cfg.Agents {
		llm, ok := llms[ac.LLM]
		if !ok {
			return nil, fmt.Errorf("agent %q: llm %q not built", name, ac.LLM)
		}

		mem, err := memory.New(ctx, store, id.NewAgentID(), id.NewUserID())
		if err != nil {
			return nil, fmt.Errorf("agent %q: init memory: %w", name, err)
		}

		ctxCfg := pctx.Config{BaseInstructions: ac.SystemPrompt}
		ctxCfg.SetDefaults()

		a, err := agent.New(ctx, agent.Options{
			Handle:        agent.Handle{AgentID: mem.AgentID(), Memory: mem},
			Store:         store,
			Registry:      registry,
			LLM:           llm,
			SystemPrompt:  ac.SystemPrompt,
			ContextConfig: ctxCfg,
		})
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
		agents[name] = a
	}
	return agents, nil
}

func buildRouter(agents map[string]*agent.Agent, groups map[string]*coordination.Runtime, inst *observability.Instruments) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware(inst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", observability.MetricsHandler())

	r.Post("/agents/{name}/messages", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		a, ok := agents[name]
		if !ok {
			http.Error(w, "unknown agent", http.StatusNotFound)
			return
		}

		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		reply, err := a.ProcessMessage(r.Context(), body.Message)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"reply": reply})
	})

	r.Post("/groups/{name}/messages", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		rt, ok := groups[name]
		if !ok {
			http.Error(w, "unknown group", http.StatusNotFound)
			return
		}

		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		reply, err := rt.Route(r.Context(), body.Message)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"reply": reply})
	})

	return r
}
