package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/crawler"
	"github.com/sells-group/prospect-cli/internal/render"
	"github.com/sells-group/prospect-cli/internal/store"
)

var servePort int

var crawlRunning atomic.Bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(""); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, st, cfg),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(context.Background())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the dashboard API. runCtx outlives individual requests
// and bounds background crawls started over the API.
func newRouter(runCtx context.Context, st store.Store, c *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: c.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/prospects", func(w http.ResponseWriter, req *http.Request) {
		filter := store.Filter{
			Company: req.URL.Query().Get("company"),
			Country: req.URL.Query().Get("country"),
		}
		if v := req.URL.Query().Get("min_score"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid min_score"})
				return
			}
			filter.MinScore = f
		}
		if v := req.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			filter.Limit = n
		}

		prospects, err := st.ListProspects(req.Context(), filter)
		if err != nil {
			zap.L().Error("list prospects failed", zap.Error(err))
			writeJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "store unavailable"})
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]any{
			"prospects": prospects,
			"count":     len(prospects),
		})
	})

	r.Get("/api/crawl/status", func(w http.ResponseWriter, req *http.Request) {
		state, err := st.GetCrawlState(req.Context())
		if err != nil {
			zap.L().Error("get crawl state failed", zap.Error(err))
			writeJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "store unavailable"})
			return
		}
		if state == nil {
			writeJSONResponse(w, http.StatusOK, map[string]any{"state": nil})
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]any{
			"state":   state,
			"running": crawlRunning.Load(),
		})
	})

	r.Post("/api/crawl", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			URL      string `json:"url"`
			MaxPages int    `json:"max_pages"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		crawlCfg := c.Crawl
		if body.URL != "" {
			crawlCfg.SearchURL = body.URL
		}
		if body.MaxPages > 0 {
			crawlCfg.MaxPages = body.MaxPages
		}
		if crawlCfg.SearchURL == "" {
			writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "url is required"})
			return
		}

		// The store is single-writer during a crawl.
		if !crawlRunning.CompareAndSwap(false, true) {
			writeJSONResponse(w, http.StatusConflict, map[string]string{"error": "a crawl is already running"})
			return
		}

		go func() {
			defer crawlRunning.Store(false)

			renderer := render.NewHTTPRenderer(render.HTTPOptions{
				UserAgent:      crawlCfg.UserAgent,
				RequestsPerSec: crawlCfg.RequestsPerSec,
			})
			result, err := crawler.New(renderer, st, crawlCfg).Run(runCtx)
			if err != nil {
				zap.L().Error("crawl failed to start", zap.Error(err))
				return
			}
			zap.L().Info("crawl finished",
				zap.String("reason", string(result.Reason)),
				zap.Int("total_extracted", result.TotalExtracted))
		}()

		writeJSONResponse(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"url":    crawlCfg.SearchURL,
		})
	})

	return r
}

func writeJSONResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
