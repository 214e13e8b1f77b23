/*
Package server exposes the render pipeline over HTTP: tile and region
rendering, raw tile access, autosettings estimation, and channel-group
persistence.  Routing uses goji with JWT bearer auth; error bodies are
always a one-line JSON object.
*/
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/cors"
	"github.com/wblakecaldwell/profiler"
	"github.com/zenazn/goji/graceful"
	"github.com/zenazn/goji/web"
	"gocloud.dev/blob"

	"github.com/wsiserve/wsiserve/metadata"
	"github.com/wsiserve/wsiserve/render"
	"github.com/wsiserve/wsiserve/storage"
	"github.com/wsiserve/wsiserve/wsi"
)

// WebHelp is served from the root path.
const WebHelp = `
wsiserve: a multi-channel whole-slide image tile render server

	GET  /image/{uuid}/render_tile/{x}/{y}/{z}/{t}/{level}/*channels*
	GET  /image/{uuid}/raw_tile/{x}/{y}/{z}/{t}/{level}/{channel}
	GET  /image/{uuid}/omero_render_tile/{z}/{t}/{level}/{x}/{y}
	GET  /image/{uuid}/prerendered_tile/{x}/{y}/{z}/{t}/{level}/{channel_group}
	GET  /image/{uuid}/render_region/{x}/{y}/{width}/{height}/{z}/{t}/*channels*
	GET  /image/{uuid}/autosettings/{channel}
	GET  /image/{uuid}/channel_group
	POST /image/{uuid}/channel_group
	POST /fileset/{uuid}/sync
`

// Service ties the render pipeline to its HTTP surface.  It is constructed
// once at startup from the parsed configuration; handlers share it read-only.
type Service struct {
	config    *Config
	tiles     render.TileSource
	assembler *render.Assembler
	meta      metadata.Store
	bucket    *blob.Bucket
	tileCache *storage.TileCache
	permCache *storage.PermissionCache
	rendered  *storage.RenderedTileCache
	activity  *storage.ActivityProducer

	startupTime time.Time
}

// NewService wires the service from pre-constructed dependencies.  The
// rendered tile cache is attached afterward since its miss path needs the
// service itself as renderer.
func NewService(config *Config, tiles render.TileSource, meta metadata.Store,
	bucket *blob.Bucket, tileCache *storage.TileCache, permCache *storage.PermissionCache,
	activity *storage.ActivityProducer) *Service {

	concurrency := config.Server.FetchWorkers
	if concurrency <= 0 {
		concurrency = render.DefaultFetchConcurrency
	}
	return &Service{
		config:      config,
		tiles:       tiles,
		assembler:   &render.Assembler{Source: tiles, TileSize: wsi.DefaultTileSize, Concurrency: concurrency},
		meta:        meta,
		bucket:      bucket,
		tileCache:   tileCache,
		permCache:   permCache,
		activity:    activity,
		startupTime: time.Now(),
	}
}

// AttachRenderedCache hooks up the optional prerendered tile cache.
func (s *Service) AttachRenderedCache(rc *storage.RenderedTileCache) {
	s.rendered = rc
}

// BadRequest writes an error JSON body with HTTP 400 and logs the message.
func BadRequest(w http.ResponseWriter, r *http.Request, message string, args ...interface{}) {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	errorMsg := fmt.Sprintf("%s (%s).", message, r.URL)
	wsi.Errorf("%s\n", errorMsg)
	writeErrorJSON(w, http.StatusBadRequest, errorMsg)
}

// ErrorJSON maps an error to its HTTP status and writes the standard
// {"error": <message>} body.  Internal errors keep their detail server-side.
func ErrorJSON(w http.ResponseWriter, r *http.Request, err error) {
	status := wsi.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		wsi.Errorf("internal error on %s: %v\n", r.URL, err)
		msg = "internal server error"
	} else {
		wsi.Debugf("client error on %s: %v\n", r.URL, err)
	}
	writeErrorJSON(w, status, msg)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(map[string]string{"error": message})
	fmt.Fprint(w, string(body))
}

// writeJSON writes v as a JSON 200 response.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		wsi.Errorf("unable to encode JSON response: %v\n", err)
	}
}

// requestContext derives the per-request deadline context.
func (s *Service) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.config.RequestTimeout())
}

func (s *Service) helpHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, WebHelp)
}

func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"uptime":     time.Since(s.startupTime).String(),
		"goroutines": runtime.NumGoroutine(),
	})
}

// initRoutes builds the goji mux with auth middleware and CORS.
func (s *Service) initRoutes() http.Handler {
	mux := web.New()
	mux.Use(s.isAuthorized)

	mux.Get("/", http.HandlerFunc(s.helpHandler))
	mux.Get("/health", http.HandlerFunc(s.healthHandler))

	mux.Get("/image/:uuid/render_tile/:x/:y/:z/:t/:level/*", s.renderTileHandler)
	mux.Get("/image/:uuid/raw_tile/:x/:y/:z/:t/:level/:channel", s.rawTileHandler)
	mux.Get("/image/:uuid/omero_render_tile/:z/:t/:level/:x/:y", s.omeroRenderTileHandler)
	mux.Get("/image/:uuid/prerendered_tile/:x/:y/:z/:t/:level/:group", s.prerenderedTileHandler)
	mux.Get("/image/:uuid/render_region/:x/:y/:width/:height/:z/:t/*", s.renderRegionHandler)
	mux.Get("/image/:uuid/autosettings/:channel", s.autoSettingsHandler)
	mux.Get("/image/:uuid/channel_group", s.listChannelGroupsHandler)
	mux.Post("/image/:uuid/channel_group", s.createChannelGroupHandler)
	mux.Post("/fileset/:uuid/sync", s.syncFilesetHandler)

	corsOptions := cors.Options{
		AllowedOrigins: s.config.Server.CorsOrigins,
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept"},
	}
	if len(corsOptions.AllowedOrigins) == 0 {
		corsOptions.AllowedOrigins = []string{"*"}
	}
	return cors.New(corsOptions).Handler(mux)
}

// Serve starts profiling endpoints and the HTTP server, blocking until
// shutdown.
func (s *Service) Serve() error {
	profiler.AddMemoryProfilingHandlers()
	profiler.StartProfiling()

	handler := s.initRoutes()
	wsi.Infof("Web server listening at %s ...\n", s.config.Server.HTTPAddress)
	graceful.HandleSignals()
	return graceful.ListenAndServe(s.config.Server.HTTPAddress, handler)
}

// Shutdown flushes the activity producer and closes stores.
func (s *Service) Shutdown() {
	delay := s.config.Server.ShutdownDelay
	if delay > 0 {
		wsi.Infof("Waiting %d seconds for any lingering requests...\n", delay)
		time.Sleep(time.Duration(delay) * time.Second)
	}
	s.activity.Shutdown()
	if err := s.meta.Close(); err != nil {
		wsi.Errorf("error closing metadata store: %v\n", err)
	}
	if s.bucket != nil {
		if err := s.bucket.Close(); err != nil {
			wsi.Errorf("error closing tile bucket: %v\n", err)
		}
	}
	wsi.Shutdown()
}
