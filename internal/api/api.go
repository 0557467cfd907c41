package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drukpa1455/crewai-job/internal/documents"
	"github.com/drukpa1455/crewai-job/internal/pipeline"
	"github.com/drukpa1455/crewai-job/internal/scrape"
	"github.com/drukpa1455/crewai-job/pkg/errors"
	"github.com/drukpa1455/crewai-job/pkg/logger"
	"github.com/drukpa1455/crewai-job/pkg/types"
)

const maxBodyBytes = 1 << 20

type Fetcher interface {
	Fetch(ctx context.Context, url string) (types.JobPosting, error)
}

type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]types.Run, error)
}

// RunFunc executes one pipeline run for the given variant.
type RunFunc func(ctx context.Context, url string, variant types.Variant) (*pipeline.Result, error)

type Server struct {
	port     int
	fetcher  Fetcher
	run      RunFunc
	runs     RunLister
	gatherer prometheus.Gatherer
	srv      *http.Server
}

func NewServer(port int, fetcher Fetcher, run RunFunc, runs RunLister, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		port:     port,
		fetcher:  fetcher,
		run:      run,
		runs:     runs,
		gatherer: gatherer,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next(w, r)
	}
}

func chain(h http.HandlerFunc, methods ...string) http.HandlerFunc {
	return RequestID(Logger(Recover(enableCORS(MethodChecker(methods...)(h)))))
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/extract", chain(s.handleExtract, http.MethodPost))
	mux.HandleFunc("/api/validate/cv", chain(s.handleValidateCV, http.MethodPost))
	mux.HandleFunc("/api/validate/cover-letter", chain(s.handleValidateCoverLetter, http.MethodPost))
	mux.HandleFunc("/api/run", chain(s.handleRun, http.MethodPost))
	mux.HandleFunc("/api/runs", chain(s.handleRuns, http.MethodGet))
	mux.HandleFunc("/healthz", chain(s.handleHealth, http.MethodGet))
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "port", s.port)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("Shutting down API server")
		return s.srv.Shutdown(shutdownCtx)
	}
}

type urlRequest struct {
	URL     string        `json:"url"`
	Variant types.Variant `json:"variant,omitempty"`
}

func decodeURLRequest(r *http.Request) (urlRequest, *errors.ApiError) {
	var req urlRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return req, errors.ErrBadRequest("Invalid request body")
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return req, errors.ErrBadRequest("No job URL provided")
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		return req, errors.ErrBadRequest("Job URL must start with http:// or https://")
	}
	return req, nil
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())
	req, apiErr := decodeURLRequest(r)
	if apiErr != nil {
		RespondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	posting, err := s.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		RespondWithError(w, classify(err).WithRequestID(requestID))
		return
	}
	RespondWithJSON(w, http.StatusOK, posting)
}

func (s *Server) handleValidateCV(w http.ResponseWriter, r *http.Request) {
	s.validate(w, r, func(b []byte) (any, error) { return documents.DecodeCV(b) })
}

func (s *Server) handleValidateCoverLetter(w http.ResponseWriter, r *http.Request) {
	s.validate(w, r, func(b []byte) (any, error) { return documents.DecodeCoverLetter(b) })
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request, decode func([]byte) (any, error)) {
	requestID := logger.GetRequestID(r.Context())
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		RespondWithError(w, errors.ErrBadRequest("Failed to read request body").WithRequestID(requestID))
		return
	}
	doc, err := decode(body)
	var verr *documents.ValidationError
	switch {
	case stderrors.As(err, &verr):
		RespondWithError(w, classify(err).WithRequestID(requestID))
		return
	case err != nil:
		RespondWithError(w, errors.ErrBadRequest(err.Error()).WithRequestID(requestID))
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{"valid": true, "document": doc})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())
	req, apiErr := decodeURLRequest(r)
	if apiErr != nil {
		RespondWithError(w, apiErr.WithRequestID(requestID))
		return
	}
	if req.Variant == "" {
		req.Variant = types.VariantReview
	}
	if !req.Variant.Valid() {
		RespondWithError(w, errors.ErrBadRequest("variant must be review or render").WithRequestID(requestID))
		return
	}

	res, err := s.run(r.Context(), req.URL, req.Variant)
	if err != nil {
		apiErr := classify(err).WithRequestID(requestID)
		if res != nil {
			apiErr.WithFields(map[string]string{"run_id": res.Run.ID})
		}
		RespondWithError(w, apiErr)
		return
	}
	RespondWithJSON(w, http.StatusOK, res)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	requestID := logger.GetRequestID(r.Context())
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			RespondWithError(w, errors.ErrBadRequest("limit must be between 1 and 500").WithRequestID(requestID))
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list runs", "error", err, "request_id", requestID)
		RespondWithError(w, errors.ErrInternalServer("Failed to list runs").WithRequestID(requestID))
		return
	}
	if runs == nil {
		runs = []types.Run{}
	}
	RespondWithJSON(w, http.StatusOK, runs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// classify maps pipeline errors onto API errors.
func classify(err error) *errors.ApiError {
	var verr *documents.ValidationError
	switch {
	case stderrors.As(err, &verr):
		fields := make([]any, len(verr.Fields))
		for i, f := range verr.Fields {
			fields[i] = f
		}
		return errors.ErrUnprocessable(verr.Error()).WithFields(fields...)
	case stderrors.Is(err, scrape.ErrIncompletePosting):
		return errors.ErrUnprocessable(err.Error())
	case stderrors.Is(err, pipeline.ErrRunInProgress):
		return errors.ErrConflict(err.Error())
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.New(http.StatusGatewayTimeout, "Timeout", err.Error())
	case stderrors.Is(err, scrape.ErrFetch):
		return errors.ErrBadGateway(err.Error())
	}
	return errors.ErrLLMProcessing(err.Error())
}
