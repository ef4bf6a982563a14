// Package server resolves tile and metadata requests against an archive.
// Resolve is the transport-independent core; ServeHTTP adapts it to net/http.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb/maptile"
	"github.com/sirupsen/logrus"

	"github.com/cadastral/tiler/mbtiles"
	"github.com/cadastral/tiler/metrics"
	"github.com/cadastral/tiler/tile"
	"github.com/cadastral/tiler/tileerr"
	"github.com/cadastral/tiler/tilejson"
)

const defaultHost = "example.com"

const (
	extPBF = "." + tile.PBF
	extMVT = "." + tile.MVT
)

// Route labels, also used for metrics.
const (
	RouteMetadata = "metadata"
	RouteTile     = "tile"
	RouteNotFound = "not_found"
)

// Response is a fully resolved reply. Body holds raw bytes; transports that
// can only carry text use Base64Body.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	// Binary marks a payload that must be base64-framed on text-only transports.
	Binary bool
}

// Base64Body returns the body framed for a text-only transport.
func (r Response) Base64Body() string {
	return base64.StdEncoding.EncodeToString(r.Body)
}

// Config configures a Handler.
type Config struct {
	ArchivePath string
	// Scheme of the synthesized tiles URL in metadata responses.
	Scheme string
	// CacheSize is the number of tile lookups kept in memory. Zero disables the cache.
	CacheSize int
	// Pool supplies archive readers. Nil means a private pool closed by Close.
	Pool    *mbtiles.Pool
	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
}

type lookup struct {
	data  []byte
	found bool
}

// Handler is safe for concurrent use. The only state shared between requests
// is the archive handle and the optional lookup cache, both read-mostly.
type Handler struct {
	cfg      Config
	pool     *mbtiles.Pool
	ownsPool bool
	cache    *lru.Cache[maptile.Tile, lookup]
	log      logrus.FieldLogger
}

func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	h := &Handler{cfg: cfg, pool: cfg.Pool, log: cfg.Logger}
	if h.pool == nil {
		h.pool = mbtiles.NewPool()
		h.ownsPool = true
	}
	if cfg.CacheSize > 0 {
		c, err := lru.New[maptile.Tile, lookup](cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		h.cache = c
	}
	return h, nil
}

// Close releases the archive handle when the handler owns its pool.
func (h *Handler) Close() error {
	if h.cache != nil {
		h.cache.Purge()
	}
	if h.ownsPool {
		return h.pool.Close()
	}
	return nil
}

// Resolve answers one request. path is percent-decoded with leading and
// trailing slashes trimmed. Every outcome, including panics, is a Response.
func (h *Handler) Resolve(ctx context.Context, path, host string) (resp Response) {
	start := time.Now()
	route := RouteNotFound
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorf("panic resolving %q: %v", path, r)
			resp = errorResponse(http.StatusInternalServerError, fmt.Sprint(r))
		}
		h.cfg.Metrics.ObserveRequest(route, resp.Status, time.Since(start))
	}()

	switch {
	case path == "metadata.json" || path == "metadata":
		route = RouteMetadata
		return h.metadata(ctx, host)
	case strings.Contains(path, extPBF) || strings.Contains(path, extMVT):
		trimmed := strings.ReplaceAll(strings.ReplaceAll(path, extPBF, ""), extMVT, "")
		parts := strings.Split(trimmed, "/")
		if len(parts) >= 3 {
			route = RouteTile
			n := len(parts)
			return h.tile(ctx, parts[n-3], parts[n-2], parts[n-1])
		}
	}
	return errorResponse(http.StatusNotFound, "Not found")
}

func (h *Handler) metadata(ctx context.Context, host string) Response {
	r, err := h.pool.Get(h.cfg.ArchivePath)
	if err != nil {
		return h.failure(err)
	}
	md, err := r.Metadata(ctx)
	if err != nil {
		return h.failure(err)
	}
	if host == "" {
		host = defaultHost
	}
	tmpl := fmt.Sprintf("%s://%s/%s", h.cfg.Scheme, host, tile.KeyTemplate)
	body, err := json.Marshal(tilejson.Translate(tilejson.FromMap(md), tmpl))
	if err != nil {
		return h.failure(err)
	}
	return Response{
		Status: http.StatusOK,
		Header: http.Header{
			"Content-Type":  {tile.ContentTypeJSON},
			"Cache-Control": {tile.CacheControlMetadata},
		},
		Body: body,
	}
}

func (h *Handler) tile(ctx context.Context, z, x, y string) Response {
	public, err := tile.Parse(z, x, y)
	if err != nil {
		return h.failure(err)
	}
	archive, err := tile.ToArchive(public)
	if err != nil {
		return h.failure(err)
	}
	l, err := h.lookup(ctx, archive)
	if err != nil {
		return h.failure(err)
	}
	if !l.found {
		return Response{
			Status: http.StatusNoContent,
			Header: http.Header{"Cache-Control": {tile.CacheControlMissingTile}},
		}
	}
	return Response{
		Status: http.StatusOK,
		Header: http.Header{
			"Content-Type":     {tile.ContentTypeVectorTile},
			"Content-Encoding": {tile.GZIP},
			"Cache-Control":    {tile.CacheControlServedTile},
		},
		Body:   l.data,
		Binary: true,
	}
}

func (h *Handler) lookup(ctx context.Context, t maptile.Tile) (lookup, error) {
	if h.cache != nil {
		if l, ok := h.cache.Get(t); ok {
			h.cfg.Metrics.CacheHit()
			return l, nil
		}
		h.cfg.Metrics.CacheMiss()
	}
	r, err := h.pool.Get(h.cfg.ArchivePath)
	if err != nil {
		return lookup{}, err
	}
	data, found, err := r.Lookup(ctx, t)
	if err != nil {
		return lookup{}, err
	}
	// an empty payload cannot be decoded as gzip, so it is served as absent
	l := lookup{data: data, found: found && len(data) > 0}
	if h.cache != nil {
		h.cache.Add(t, l)
	}
	return l, nil
}

func (h *Handler) failure(err error) Response {
	status := tileerr.StatusOf(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorf("Error: %s", err)
	} else {
		h.log.Debugf("rejected request: %s", err)
	}
	return errorResponse(status, err.Error())
}

func errorResponse(status int, msg string) Response {
	body, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		body = []byte(`{"error":"internal error"}`)
	}
	return Response{
		Status: status,
		Header: http.Header{"Content-Type": {tile.ContentTypeJSON}},
		Body:   body,
	}
}

// ServeHTTP resolves r and writes the response.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h.Resolve(r.Context(), strings.Trim(r.URL.Path, "/"), r.Host)
	for k, v := range resp.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) == 0 {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		h.log.Debugf("write response: %s", err)
	}
}
