package server

import (
	"io"
	"net/http"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// RouterOptions are the HTTP-only concerns around a Handler.
type RouterOptions struct {
	// CORS enables a permissive Access-Control-Allow-Origin: * policy.
	CORS bool
	// Gatherer, when set, is exposed at /metrics.
	Gatherer prometheus.Gatherer
	// AccessLog receives one entry per request. Nil disables access logging.
	AccessLog logrus.FieldLogger
}

func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	if opts.AccessLog != nil {
		router.Use(loggingMiddleware(opts.AccessLog))
	}
	if opts.CORS {
		router.Use(ghandlers.CORS(
			ghandlers.AllowedOrigins([]string{"*"}),
			ghandlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodOptions}),
			ghandlers.AllowedHeaders([]string{"Origin", "X-Requested-With", "Content-Type", "Accept"}),
		))
	}

	// /ping is a simple server healthcheck endpoint
	router.Path("/ping").HandlerFunc(pingPong).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		router.Path("/metrics").Handler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	router.PathPrefix("/").Handler(h).Methods(http.MethodGet, http.MethodHead)
	return router
}

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

func loggingMiddleware(logger logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return ghandlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p ghandlers.LogFormatterParams) {
			logger.WithFields(logrus.Fields{
				"method": p.Request.Method,
				"uri":    p.URL.RequestURI(),
				"host":   p.Request.Host,
				"remote": p.Request.RemoteAddr,
				"status": p.StatusCode,
				"size":   p.Size,
			}).Info("request")
		})
	}
}
