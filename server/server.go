package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/CenterForOpenScience/pigeon-services/archive"
	"github.com/CenterForOpenScience/pigeon-services/models/common"
	"github.com/CenterForOpenScience/pigeon-services/models/service"
	"github.com/CenterForOpenScience/pigeon-services/network"
	"github.com/CenterForOpenScience/pigeon-services/util"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/op/go-logging"
)

const statusQueued = "queued"

// JobStore reads job results. network.RedisClient implements it.
type JobStore interface {
	JobResultsForGUID(guid string) (map[string]*service.JobResult, error)
}

// Server is the HTTP front end the OSF calls. It does no archiving
// itself. It validates requests, queues them in NSQ for the workers,
// and reports the results the workers leave in Redis.
type Server struct {
	Config  *common.Config
	Jobs    JobStore
	LogFile string
	Logger  *logging.Logger
	Queue   network.NSQClientInterface
	router  chi.Router
}

func NewServer(config *common.Config, queue network.NSQClientInterface, jobs JobStore, logger *logging.Logger, logFile string) *Server {
	s := &Server{
		Config:  config,
		Jobs:    jobs,
		LogFile: logFile,
		Logger:  logger,
		Queue:   queue,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.index)
	r.Get("/logs", s.logs)
	r.Get("/archive/{guid}", s.archive)
	r.Post("/archive/{guid}", s.archive)
	r.Post("/metadata/{guid}", s.metadata)
	r.Get("/status/{guid}", s.status)
	return r
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on Config.ServerHost:Config.ServerPort.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.Config.ServerHost, s.Config.ServerPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Logger.Infof("Listening on %s", addr)
	return httpServer.ListenAndServe()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Infof("%s %s %d (%s) [%s]", r.Method, r.URL.Path, ww.Status(),
			time.Since(started), middleware.GetReqID(r.Context()))
	})
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"🐦": "👍"})
}

func (s *Server) logs(w http.ResponseWriter, r *http.Request) {
	if s.LogFile == "" || !util.FileExists(s.LogFile) {
		writeError(w, http.StatusNotFound, "no log file")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeFile(w, r, s.LogFile)
}

// archive queues an archive job. The response only says the job was
// queued. The OSF hears about the result from the worker's callback.
func (s *Server) archive(w http.ResponseWriter, r *http.Request) {
	guid, ok := s.guidParam(w, r)
	if !ok {
		return
	}
	if err := s.Queue.EnqueueArchive(r.Context(), guid); err != nil {
		s.Logger.Errorf("Could not queue archive for %s: %v", guid, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{guid: statusQueued})
}

// metadata checks the patch here, so a caller that sends keys we will
// never write hears about it now instead of in a failed job.
func (s *Server) metadata(w http.ResponseWriter, r *http.Request) {
	guid, ok := s.guidParam(w, r)
	if !ok {
		return
	}
	patch := service.MetadataRecord{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("request body is not a JSON object: %v", err))
		return
	}
	if err := archive.CheckPatch(patch); err != nil {
		var invalidKeys *common.InvalidMetadataKeyError
		if errors.As(err, &invalidKeys) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":        err.Error(),
				"invalid_keys": invalidKeys.Keys,
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Queue.EnqueueMetadata(r.Context(), guid, patch); err != nil {
		s.Logger.Errorf("Could not queue metadata sync for %s: %v", guid, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{guid: statusQueued})
}

type jobStatus struct {
	Status string `json:"status"`
	*service.JobResult
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	guid, ok := s.guidParam(w, r)
	if !ok {
		return
	}
	results, err := s.Jobs.JobResultsForGUID(guid)
	if err != nil {
		s.Logger.Errorf("Could not read job results for %s: %v", guid, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no jobs for %s", guid))
		return
	}
	statuses := make(map[string]jobStatus, len(results))
	for operation, result := range results {
		statuses[operation] = jobStatus{Status: result.Status(), JobResult: result}
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) guidParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	guid := chi.URLParam(r, "guid")
	if !util.LooksLikeGUID(guid) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%q is not a guid", guid))
		return "", false
	}
	return guid, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
