package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/mockstatsd/pkg/healthcheck"
)

// HttpServer serves the inspection API of a mock server.
type HttpServer struct {
	logger  logrus.FieldLogger
	address string
	Router  *mux.Router
}

type route struct {
	path    string
	handler http.HandlerFunc
	method  string
	name    string
}

var done = struct{}{}

// NewHttpServer creates the inspection API for inspector. healthChecks are reported on /healthcheck.
func NewHttpServer(
	logger logrus.FieldLogger,
	inspector Inspector,
	address string,
	healthChecks []healthcheck.HealthcheckFunc,
) (*HttpServer, error) {
	if inspector == nil {
		return nil, fmt.Errorf("inspector is required")
	}

	server := &HttpServer{
		logger:  logger,
		address: address,
	}

	ih := &inspectorHandler{logger: logger, inspector: inspector}
	hc := &healthChecker{logger: logger, healthChecks: healthChecks}
	routes := []route{
		{path: "/metrics/{name}", handler: ih.metric, method: http.MethodGet, name: "metric_get"},
		{path: "/sets/{name}", handler: ih.set, method: http.MethodGet, name: "set_get"},
		{path: "/calls", handler: ih.calls, method: http.MethodGet, name: "calls_get"},
		{path: "/reset", handler: ih.reset, method: http.MethodPost, name: "reset_post"},
		{path: "/healthcheck", handler: hc.healthCheck, method: http.MethodGet, name: "healthcheck_get"},
	}

	router, err := createRoutes(routes)
	if err != nil {
		return nil, err
	}
	router.NotFoundHandler = server.logRequest(http.HandlerFunc(server.notFound))
	router.Use(server.logRequest)
	server.Router = router

	logger.WithField("address", address).Info("Created server")

	return server, nil
}

func (hs *HttpServer) notFound(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("not found"))
}

func createRoutes(routes []route) (*mux.Router, error) {
	router := mux.NewRouter()

	for _, route := range routes {
		r := router.HandleFunc(route.path, route.handler).Methods(route.method).Name(route.name)
		if err := r.GetError(); err != nil {
			return nil, fmt.Errorf("error creating route %s: %w", route.name, err)
		}
	}

	return router, nil
}

func (hs *HttpServer) logRequest(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logFields := logrus.Fields{
			"srcip": strings.Split(req.RemoteAddr, ":")[0],
			"path":  req.URL.Path,
		}
		if route := mux.CurrentRoute(req); route == nil {
			logFields["method"] = req.Method
		} else {
			logFields["route"] = route.GetName()
		}

		start := time.Now()
		handler.ServeHTTP(w, req)
		dur := time.Since(start)

		logFields["duration"] = float64(dur) / float64(time.Millisecond)
		hs.logger.WithFields(logFields).Debug("request")
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func (hs *HttpServer) Run(ctx context.Context) {
	l, err := net.Listen("tcp", hs.address)
	if err != nil {
		hs.logger.WithError(err).Error("web server failed to listen")
		return
	}
	hs.Serve(ctx, l)
}

// Serve serves on l until ctx is done. l is closed on return.
func (hs *HttpServer) Serve(ctx context.Context, l net.Listener) {
	server := &http.Server{
		Handler: hs.Router,
	}

	chStopped := make(chan struct{}, 1)
	go hs.waitAndStop(ctx, server, chStopped)

	hs.logger.WithField("address", l.Addr().String()).Info("listening")

	err := server.Serve(l)
	if err != http.ErrServerClosed {
		hs.logger.WithError(err).Error("web server failed")
		return
	}

	// Wait for graceful shutdown of existing connections
	select {
	case <-chStopped:
		// happy
	case <-time.After(6 * time.Second):
		hs.logger.Info("timeout waiting for webserver to stop")
	}
}

// waitAndStop will gracefully shut down the Server when the Context passed is cancelled.  It signals
// on chStopped when it is done.
func (hs *HttpServer) waitAndStop(ctx context.Context, server *http.Server, chStopped chan<- struct{}) {
	<-ctx.Done()

	hs.logger.Info("shutting down web server")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(timeoutCtx); err != nil {
		hs.logger.WithError(err).Warn("failed to stop web server")
	}
	chStopped <- done
}
