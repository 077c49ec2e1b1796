package main

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/site-builder/internal/cache"
	"github.com/debemdeboas/site-builder/internal/config"
	"github.com/debemdeboas/site-builder/internal/db"
	"github.com/debemdeboas/site-builder/internal/draft"
	"github.com/debemdeboas/site-builder/internal/logger"
	"github.com/debemdeboas/site-builder/internal/model"
	"github.com/debemdeboas/site-builder/internal/preview"
	"github.com/debemdeboas/site-builder/internal/repository"
	"github.com/debemdeboas/site-builder/internal/repository/editor"
	"github.com/debemdeboas/site-builder/internal/routes"
	"github.com/debemdeboas/site-builder/internal/sse"
	"github.com/debemdeboas/site-builder/internal/templates"
	"github.com/debemdeboas/site-builder/internal/theme"
	"github.com/debemdeboas/site-builder/internal/util"
	"github.com/debemdeboas/site-builder/internal/util/compression"
)

//go:embed static/*
var content embed.FS

const changePollInterval = 5 * time.Second

var mainLogger zerolog.Logger

var clients = sse.NewSSEClients()

var sessions = draft.NewStore()

var elementRepo repository.ElementRepository

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded")
	}

	configPath := os.Getenv("SITE_BUILDER_CONFIG")
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}
	if err := config.LoadConfig(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	base := logger.New(config.AppConfig.Logging.Level, config.AppConfig.Logging.Format)
	mainLogger = logger.Component(base, "main")
	setLoggers(base)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	var closeDb func() error
	elementRepo, closeDb, err = newElementRepository(ctx)
	if err != nil {
		mainLogger.Fatal().Err(err).Msg("Error initializing storage")
	}
	defer closeDb()
	elementRepo.SetChangeNotifier(handleElementChange)

	previews, err := newPreviewStore(ctx)
	if err != nil {
		mainLogger.Fatal().Err(err).Msg("Error initializing previews")
	}

	// Calculate the hash of static content
	static, _ := fs.Sub(content, config.StaticLocalDir)
	if err := cache.HashStatic(static, config.StaticUrlPath); err != nil {
		mainLogger.Warn().Err(err).Msg("Error hashing static files")
	}

	mux := http.NewServeMux()

	mux.HandleFunc(routes.RobotsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow: /api/"))
	})

	mux.Handle(config.StaticUrlPath, http.StripPrefix(config.StaticUrlPath, http.FileServer(http.FS(static))))
	if mem, ok := previews.(*preview.MemoryStore); ok {
		mux.Handle(config.AppConfig.Previews.URLPrefix, mem.Handler())
	}

	registerRoutes(mux)

	if config.AppConfig.Editor.Enabled {
		editor.NewHandler(sessions, elementRepo, previews, config.AppConfig.Editor.MaxUploadBytes).Register(mux)
	}

	server := &http.Server{
		Addr:    config.AppConfig.Server.Host + ":" + config.AppConfig.Server.Port,
		Handler: withCORS(config.AppConfig.Server.AllowedOrigins, cacheIt(secureHeaders(mux.ServeHTTP))),
	}

	go func() {
		mainLogger.Info().Str("addr", server.Addr).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	mainLogger.Info().Msg("Shutting down")

	timeout := time.Duration(config.AppConfig.Server.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.Error().Err(err).Msg("Error shutting down server")
	}

	// Open sessions are abandoned edits; their previews must not outlive us.
	if err := sessions.Close(); err != nil {
		mainLogger.Error().Err(err).Msg("Error releasing previews of open sessions")
	}
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(logger.Component(l, "config"))
	db.SetLogger(logger.Component(l, "db"))
	draft.SetLogger(logger.Component(l, "draft"))
	editor.SetLogger(logger.Component(l, "editor"))
	preview.SetLogger(logger.Component(l, "preview"))
	repository.SetLogger(logger.Component(l, "repository"))
}

func newElementRepository(ctx context.Context) (repository.ElementRepository, func() error, error) {
	storage := config.AppConfig.Storage
	if storage.Backend == config.StorageMemory {
		return repository.NewMemoryElementRepository(), func() error { return nil }, nil
	}

	compressor, err := compression.ByName(storage.Compression)
	if err != nil {
		return nil, nil, err
	}

	sqlite := db.NewSQLite(storage.DatabasePath)
	if err := sqlite.InitDb(); err != nil {
		return nil, nil, fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
	}

	repo := repository.NewDBElementRepository(sqlite, compressor)
	go repo.Watch(ctx, changePollInterval)
	return repo, sqlite.Close, nil
}

func newPreviewStore(ctx context.Context) (preview.Store, error) {
	previews := config.AppConfig.Previews
	if previews.Backend == config.PreviewsS3 {
		return preview.NewS3Store(ctx, preview.S3Options{
			Bucket:          previews.S3Bucket,
			Endpoint:        previews.S3Endpoint,
			PublicURL:       previews.S3PublicURL,
			TempPrefix:      previews.TempPrefix,
			AssetPrefix:     previews.AssetPrefix,
			AccessKeyId:     os.Getenv("S3_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("S3_ACCESS_KEY_SECRET"),
		})
	}
	return preview.NewMemoryStore(previews.URLPrefix), nil
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", serveIndex)
	mux.HandleFunc("GET "+routes.APISites, serveSites)
	mux.HandleFunc("POST "+routes.APISites, serveCreateSite)
	mux.HandleFunc("GET "+routes.APISite, serveSite)
	mux.HandleFunc("GET "+routes.APISiteTheme, serveSiteTheme)
	mux.HandleFunc("GET "+routes.APIPalettes, servePalettes)
	mux.HandleFunc("GET "+routes.APITemplates, serveTemplates)
	mux.HandleFunc(routes.EventsPath, eventsHandler)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		mainLogger.Error().Err(err).Msg("Failed to write response")
	}
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	name, description := "", ""
	if config.AppConfig != nil {
		name, description = config.AppConfig.Site.Name, config.AppConfig.Site.Description
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"name":        name,
		"description": description,
	})
}

func serveSites(w http.ResponseWriter, r *http.Request) {
	sites, err := elementRepo.ListSites()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sites)
}

func serveCreateSite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Template string `json:"template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		http.Error(w, "name and template required", http.StatusBadRequest)
		return
	}

	tmpl, err := templates.Load(body.Template)
	if errors.Is(err, templates.ErrTemplateNotFound) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	site, err := tmpl.Seed(elementRepo, body.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	mainLogger.Info().Str("site_id", string(site.Id)).Str("template", tmpl.Id).Msg("Site created")
	writeJSON(w, http.StatusCreated, site)
}

func serveSite(w http.ResponseWriter, r *http.Request) {
	site, err := elementRepo.GetSite(model.SiteId(r.PathValue("id")))
	if errors.Is(err, repository.ErrSiteNotFound) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	elements, err := elementRepo.ListElements(site.Id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		*model.Site
		Elements []model.Element `json:"elements"`
	}{site, elements})
}

func serveSiteTheme(w http.ResponseWriter, r *http.Request) {
	siteId := model.SiteId(r.PathValue("id"))
	if _, err := elementRepo.GetSite(siteId); err != nil {
		http.NotFound(w, r)
		return
	}

	elements, err := elementRepo.ListElements(siteId)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	css := []byte(theme.SiteCSS(elements))
	w.Header().Set(config.HCType, config.CTypeCSS)
	w.Header().Set(config.HETag, util.ContentHash(css))
	w.WriteHeader(http.StatusOK)
	w.Write(css)
}

func servePalettes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, theme.Palettes())
}

func serveTemplates(w http.ResponseWriter, r *http.Request) {
	names, err := templates.Names()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	list := make([]*templates.Template, 0, len(names))
	for _, name := range names {
		tmpl, err := templates.Load(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		list = append(list, tmpl)
	}
	writeJSON(w, http.StatusOK, list)
}

func withCORS(origins []string, h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(h)
}

func cacheIt(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")

		// Add etag header to response if it's a static file
		if hash, ok := cache.GetStaticHash(r.URL.Path); ok {
			w.Header().Set(config.HCacheControl, "public, max-age=3600")
			w.Header().Set(config.HETag, hash)
		}

		h(w, r)
	}
}

func secureHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		h(w, r)
	}
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	elementId := r.URL.Query().Get("element")
	if elementId == "" {
		http.Error(w, "Element parameter required", http.StatusBadRequest)
		return
	}

	w.Header().Set(config.HCType, "text/event-stream")
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	client := sse.NewClient(model.ElementId(elementId))
	clients.Add(client)
	mainLogger.Debug().Str("element_id", elementId).Msg("SSE client connected")

	defer func() {
		clients.Delete(client)
		mainLogger.Debug().Str("element_id", elementId).Msg("SSE client disconnected")
	}()

	notify := r.Context().Done()
	for {
		select {
		case msg, ok := <-client.Msg:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-notify:
			return
		}
	}
}

func handleElementChange(elementId model.ElementId) {
	clients.Broadcast(elementId, "updated")
}
