// Package server exposes the query engine over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/chatdb"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/config"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/ingest"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/logging"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/schema"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/templates"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/utils"
)

// MaxUploadSize bounds CSV uploads.
const MaxUploadSize = 32 << 20

// Engine is the subset of chatdb.Service served over HTTP.
type Engine interface {
	GenerateTemplates(ctx context.Context, filters map[string][]string) ([]templates.Template, error)
	SampleQueries(ctx context.Context, n int, construct string) ([]chatdb.DescribedQuery, error)
	MapNaturalLanguage(ctx context.Context, question string) (chatdb.MappedQuestion, error)
	DescribeQuery(sql string, constructs []string) string
	ExecuteQuery(ctx context.Context, query string, params []any) ([]map[string]any, error)
	TableOverview(ctx context.Context, filters map[string][]string, sampleRows int) ([]chatdb.TableOverview, error)
	GenerateModelQueries(ctx context.Context, n int) ([]chatdb.DescribedQuery, error)
	ImportCSV(ctx context.Context, table string, r io.Reader) (chatdb.ImportResult, error)
	ListDatabases(ctx context.Context) ([]string, error)
	Ready(ctx context.Context) error
}

var _ Engine = (*chatdb.Service)(nil)

type Server struct {
	engine       Engine
	cfg          config.ServerConfig
	defaultCount int
	logger       *zap.Logger
	router       chi.Router
}

// New builds the router. defaultCount is used when a sample request gives no count.
func New(engine Engine, cfg config.ServerConfig, defaultCount int, logger *zap.Logger) *Server {
	s := &Server{
		engine:       engine,
		cfg:          cfg,
		defaultCount: defaultCount,
		logger:       logging.OrNop(logger),
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/databases", s.listDatabases)
		r.Get("/tables", s.tables)
		r.Get("/templates", s.templates)
		r.Post("/sample", s.sample)
		r.Post("/ask", s.ask)
		r.Post("/describe", s.describe)
		r.Post("/query", s.query)
		r.Post("/model-queries", s.modelQueries)
		r.Post("/upload/csv", s.uploadCSV)
	})
	return r
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP API", zap.String("addr", s.cfg.Addr), zap.Strings("allowed_origins", s.cfg.AllowedOrigins))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("Shutting down HTTP API")
		return srv.Shutdown(shutdownCtx)
	}
}

type sampleRequest struct {
	Count     *int   `json:"count"`
	Construct string `json:"construct"`
}

type askRequest struct {
	Question string `json:"question"`
	Execute  bool   `json:"execute"`
}

type askResponse struct {
	chatdb.MappedQuestion
	Description string           `json:"description,omitempty"`
	Rows        []map[string]any `json:"rows,omitempty"`
}

type describeRequest struct {
	SQL        string   `json:"sql"`
	Constructs []string `json:"constructs"`
}

type queryRequest struct {
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

type modelRequest struct {
	Count int `json:"count"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ready(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listDatabases(w http.ResponseWriter, r *http.Request) {
	dbs, err := s.engine.ListDatabases(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"databases": dbs})
}

func (s *Server) tables(w http.ResponseWriter, r *http.Request) {
	filters, err := utils.ParseTablesFlag(r.URL.Query().Get("tables"))
	if err != nil {
		s.writeError(w, &chatdb.ErrInvalidInput{Msg: "invalid tables filter", Err: err})
		return
	}
	rows := 0
	if v := r.URL.Query().Get("rows"); v != "" {
		if rows, err = strconv.Atoi(v); err != nil || rows < 0 {
			s.writeError(w, &chatdb.ErrInvalidInput{Msg: "rows must be a non-negative integer"})
			return
		}
	}
	out, err := s.engine.TableOverview(r.Context(), filters, rows)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": out})
}

func (s *Server) templates(w http.ResponseWriter, r *http.Request) {
	filters, err := utils.ParseTablesFlag(r.URL.Query().Get("tables"))
	if err != nil {
		s.writeError(w, &chatdb.ErrInvalidInput{Msg: "invalid tables filter", Err: err})
		return
	}
	out, err := s.engine.GenerateTemplates(r.Context(), filters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (s *Server) sample(w http.ResponseWriter, r *http.Request) {
	var req sampleRequest
	if !s.decode(w, r, &req) {
		return
	}
	count := s.defaultCount
	if req.Count != nil {
		count = *req.Count
	}
	if count < 0 {
		s.writeError(w, &chatdb.ErrInvalidInput{Msg: "count must not be negative"})
		return
	}
	out, err := s.engine.SampleQueries(r.Context(), count, req.Construct)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": out})
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}
	mapped, err := s.engine.MapNaturalLanguage(r.Context(), req.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := askResponse{MappedQuestion: mapped}
	if mapped.Matched {
		resp.Description = s.engine.DescribeQuery(mapped.SQL, nil)
		if req.Execute {
			rows, err := s.engine.ExecuteQuery(r.Context(), mapped.SQL, nil)
			if err != nil {
				s.writeError(w, err)
				return
			}
			resp.Rows = rows
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) describe(w http.ResponseWriter, r *http.Request) {
	var req describeRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"description": s.engine.DescribeQuery(req.SQL, req.Constructs)})
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}
	rows, err := s.engine.ExecuteQuery(r.Context(), req.Query, req.Params)
	if chatdb.IsQueryExecution(err) {
		// Caller-supplied SQL that fails is a bad request.
		err = &chatdb.ErrInvalidInput{Msg: "query failed", Err: err}
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (s *Server) modelQueries(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Count <= 0 {
		req.Count = s.defaultCount
	}
	out, err := s.engine.GenerateModelQueries(r.Context(), req.Count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": out})
}

func (s *Server) uploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		s.writeError(w, &chatdb.ErrInvalidInput{Msg: "invalid multipart upload", Err: err})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, &chatdb.ErrInvalidInput{Msg: "no file part in the request", Err: err})
		return
	}
	defer file.Close()

	table := r.FormValue("table")
	if table == "" {
		table = ingest.TableNameFromPath(header.Filename)
	}
	res, err := s.engine.ImportCSV(r.Context(), table, file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Data imported successfully into %s.", res.Table),
		"import":  res,
	})
}

// decode reads a JSON body into v. An empty body leaves v at its zero value.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, &chatdb.ErrInvalidInput{Msg: "invalid JSON body", Err: err})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Int("status", code), zap.Error(err))
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusCode(err error) int {
	switch {
	case chatdb.IsInvalidInput(err):
		return http.StatusBadRequest
	case schema.IsSchemaUnavailable(err), chatdb.IsModelUnavailable(err):
		return http.StatusServiceUnavailable
	case chatdb.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
