package web

import (
	"net/http"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/mockstatsd"
)

// Inspector is the query surface exposed over HTTP.
type Inspector interface {
	Metric(name string, tags mockstatsd.Tags) (float64, bool)
	MetricContents(name string, tags mockstatsd.Tags) ([]float64, bool)
	Calls() []string
	Reset()
}

type metricResponse struct {
	Name  string          `json:"name"`
	Tags  mockstatsd.Tags `json:"tags,omitempty"`
	Value float64         `json:"value"`
}

type setResponse struct {
	Name   string          `json:"name"`
	Tags   mockstatsd.Tags `json:"tags,omitempty"`
	Values []float64       `json:"values"`
}

type callsResponse struct {
	Calls []string `json:"calls"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type inspectorHandler struct {
	logger    logrus.FieldLogger
	inspector Inspector
}

// queryTags reads repeated tag=k:v query parameters. No parameter means a name-only query.
func queryTags(req *http.Request) (mockstatsd.Tags, error) {
	return mockstatsd.ParseTags(req.URL.Query()["tag"])
}

func (ih *inspectorHandler) metric(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["name"]
	tags, err := queryTags(req)
	if err != nil {
		ih.respond(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	value, ok := ih.inspector.Metric(name, tags)
	if !ok {
		ih.respond(w, http.StatusNotFound, errorResponse{Error: "metric not found"})
		return
	}
	ih.respond(w, http.StatusOK, metricResponse{Name: name, Tags: tags, Value: value})
}

func (ih *inspectorHandler) set(w http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["name"]
	tags, err := queryTags(req)
	if err != nil {
		ih.respond(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	values, ok := ih.inspector.MetricContents(name, tags)
	if !ok {
		ih.respond(w, http.StatusNotFound, errorResponse{Error: "set not found"})
		return
	}
	ih.respond(w, http.StatusOK, setResponse{Name: name, Tags: tags, Values: values})
}

func (ih *inspectorHandler) calls(w http.ResponseWriter, req *http.Request) {
	calls := ih.inspector.Calls()
	if calls == nil {
		// Force it render as an array, not null
		calls = []string{}
	}
	ih.respond(w, http.StatusOK, callsResponse{Calls: calls})
}

func (ih *inspectorHandler) reset(w http.ResponseWriter, req *http.Request) {
	ih.inspector.Reset()
	ih.logger.Info("Reset by request")
	w.WriteHeader(http.StatusNoContent)
}

func (ih *inspectorHandler) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	if err := jsoniter.NewEncoder(w).Encode(body); err != nil {
		ih.logger.WithError(err).Warn("failed to write response")
	}
}
