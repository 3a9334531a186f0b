// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/tahcohcat/talkinghead-web/config"
	"github.com/tahcohcat/talkinghead-web/internal/api"
	"github.com/tahcohcat/talkinghead-web/internal/assistant"
	"github.com/tahcohcat/talkinghead-web/internal/auth"
	"github.com/tahcohcat/talkinghead-web/internal/avatar"
	"github.com/tahcohcat/talkinghead-web/internal/avatars"
	"github.com/tahcohcat/talkinghead-web/internal/database"
	"github.com/tahcohcat/talkinghead-web/internal/llm"
	"github.com/tahcohcat/talkinghead-web/internal/logger"
	"github.com/tahcohcat/talkinghead-web/internal/services"
	"github.com/tahcohcat/talkinghead-web/internal/tts"
	"github.com/tahcohcat/talkinghead-web/internal/video"
	"github.com/tahcohcat/talkinghead-web/internal/viseme"
	"github.com/tahcohcat/talkinghead-web/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Configure(os.Stdout, logger.LogLevel(cfg.Log.Level))
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Error("failed to initialize database")
		os.Exit(1)
	}
	defer db.Close()

	history := services.NewHistoryService(db, cfg.LLM.HistoryLimit)

	llmClient, err := llm.NewLLMClient(cfg)
	if err != nil {
		log.WithError(err).Error("failed to create llm client")
		os.Exit(1)
	}

	checkCtx, cancelCheck := context.WithTimeout(ctx, 5*time.Second)
	if err := llmClient.IsModelAvailable(checkCtx); err != nil {
		log.WithError(err).Warn(fmt.Sprintf("%s model is not available, replies will be apologies until it is", cfg.LLM.Provider))
	}
	cancelCheck()

	bot := assistant.New(llmClient, cfg.LLM.SystemPrompt, time.Duration(cfg.LLM.Timeout)*time.Second)

	opts := avatar.Options{
		Assistant: bot,
		Generator: viseme.NewGenerator(cfg.Viseme),
		History:   history,
	}

	synth, err := tts.NewSynthesizer(ctx, &cfg.Tts, &cfg.OpenAI)
	switch {
	case errors.Is(err, tts.ErrTTSDisabled):
		log.Info("speech synthesis disabled")
	case err != nil:
		log.WithError(err).Warn(fmt.Sprintf("failed to create %s tts, falling back to duration estimates", cfg.Tts.Type))
		opts.Synthesizer = tts.NewDummyTts(cfg.Tts.Voice)
	default:
		opts.Synthesizer = synth
	}

	catalog := avatars.NewCatalog(cfg.Video.AvatarsDir, "/static/"+filepath.Base(cfg.Video.AvatarsDir))

	if cfg.Video.Enabled {
		store, err := tts.NewStore(cfg.Tts.AudioDir, cfg.Tts.AudioURLPrefix)
		if err != nil {
			log.WithError(err).Error("failed to open audio store")
			os.Exit(1)
		}
		videoClient, err := video.NewClient(&cfg.Video)
		if err != nil {
			log.WithError(err).Warn("video rendering unavailable")
		} else {
			opts.Video = videoClient
			opts.Images = catalog
			opts.Audio = store
		}
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)
	opts.Hub = hub

	service, err := avatar.NewService(opts)
	if err != nil {
		log.WithError(err).Error("failed to create avatar service")
		os.Exit(1)
	}

	authManager := auth.NewManager(&cfg.Auth)

	r := mux.NewRouter()
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.Server.StaticDir))))
	r.Handle("/ws", authManager.Middleware(hub))

	api.RegisterRoutes(r, api.NewHandler(service, authManager, catalog, api.Info{
		AIProvider: cfg.LLM.Provider,
		TTSVoice:   cfg.Tts.Voice,
		Model:      llmClient,
	}))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: c.Handler(r),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info(fmt.Sprintf("talking head server starting on port %s", cfg.Server.Port))
	log.Info(fmt.Sprintf("ai provider: %s, tts: %s", cfg.LLM.Provider, cfg.Tts.Type))
	log.Info(fmt.Sprintf("database: %s", cfg.Database.Path))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("server failed")
		os.Exit(1)
	}
}
