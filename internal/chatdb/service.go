// Package chatdb ties the query engine together behind one Service used by the CLI and HTTP API.
package chatdb

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/database"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/describe"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/genai"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/ingest"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/logging"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/nlmap"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/resolver"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/sampler"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/schema"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/sqltext"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/templates"
)

// DefaultSampleRows is the number of rows TableOverview shows when none is requested.
const DefaultSampleRows = 5

type Service struct {
	store        database.Store
	llm          genai.LLMClient
	introspector *schema.Introspector
	mapper       *nlmap.Mapper
	cfg          Config
	logger       *zap.Logger

	// mu serializes sampling; the resolver's random source is not safe for concurrent use.
	mu      sync.Mutex
	sampler *sampler.Sampler
}

type Config struct {
	// DBName is reported to the model as the database id.
	DBName      string
	MaxAttempts int
	// Seed fixes the random source; 0 seeds randomly.
	Seed  int64
	Retry RetryOptions
}

// DescribedQuery is a generated query with its plain-English description.
type DescribedQuery struct {
	sampler.GeneratedQuery
	Description string `json:"description"`
}

// MappedQuestion is the outcome of a natural-language mapping.
type MappedQuestion struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
	Matched  bool   `json:"matched"`
}

// TableOverview is a table's structure plus a few rows of data.
type TableOverview struct {
	Table schema.TableInfo `json:"table"`
	Rows  []map[string]any `json:"rows"`
}

// ImportResult reports a finished CSV import.
type ImportResult struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// NewService wires the engine around store. llm may be nil, which disables model generation. When
// store also implements database.Admin, database listing and CSV import are available.
func NewService(store database.Store, llm genai.LLMClient, cfg Config, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger)
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryOptions
	}
	in := schema.NewIntrospector(store, logger)
	r := resolver.New(store, resolver.NewRand(cfg.Seed), logger)
	return &Service{
		store:        store,
		llm:          llm,
		introspector: in,
		mapper:       nlmap.New(in, logger),
		sampler:      sampler.New(in, r, cfg.MaxAttempts, logger),
		cfg:          cfg,
		logger:       logger,
	}
}

// GenerateTemplates returns the templates for the live schema, restricted by filters.
func (s *Service) GenerateTemplates(ctx context.Context, filters map[string][]string) ([]templates.Template, error) {
	m, err := s.introspector.Introspect(ctx, filters)
	if err != nil {
		return nil, err
	}
	out := templates.Generate(m)
	s.logger.Info("Generated templates", zap.Int("tables", m.Len()), zap.Int("templates", len(out)))
	return out, nil
}

// SampleQueries returns up to n distinct executable queries, each with its description.
func (s *Service) SampleQueries(ctx context.Context, n int, construct string) ([]DescribedQuery, error) {
	startTime := time.Now()
	s.mu.Lock()
	queries, err := s.sampler.Sample(ctx, n, construct)
	s.mu.Unlock()
	if err != nil {
		if cerr := contextError(ctx, "query sampling"); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	s.logger.Info("Sampled queries",
		zap.Int("requested", n),
		zap.Int("returned", len(queries)),
		zap.Duration("elapsed", time.Since(startTime)))
	return describeAll(queries), nil
}

// MapNaturalLanguage maps question onto SQL against the live schema.
func (s *Service) MapNaturalLanguage(ctx context.Context, question string) (MappedQuestion, error) {
	if strings.TrimSpace(question) == "" {
		return MappedQuestion{}, &ErrInvalidInput{Msg: "question is required"}
	}
	sql, err := s.mapper.Map(ctx, question)
	if err != nil {
		return MappedQuestion{}, err
	}
	return MappedQuestion{Question: question, SQL: sql, Matched: !nlmap.IsNoMapping(sql)}, nil
}

// DescribeQuery returns the plain-English description of sql. It never fails.
func (s *Service) DescribeQuery(sql string, constructs []string) string {
	return describe.Describe(sql, constructs...)
}

// ExecuteQuery runs query with optional positional params and returns the rows.
func (s *Service) ExecuteQuery(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &ErrInvalidInput{Msg: "query is required"}
	}
	rows, err := s.store.Execute(ctx, query, params...)
	if err != nil {
		if cerr := contextError(ctx, "query execution"); cerr != nil {
			return nil, cerr
		}
		return nil, &ErrQueryExecution{Msg: "failed to execute query", Err: err}
	}
	s.logger.Debug("Executed query", zap.String("query", query), zap.Int("rows", len(rows)))
	return rows, nil
}

// TableOverview returns the structure and up to sampleRows rows of every table selected by filters.
// sampleRows <= 0 selects DefaultSampleRows.
func (s *Service) TableOverview(ctx context.Context, filters map[string][]string, sampleRows int) ([]TableOverview, error) {
	if sampleRows <= 0 {
		sampleRows = DefaultSampleRows
	}
	m, err := s.introspector.Introspect(ctx, filters)
	if err != nil {
		return nil, err
	}
	out := make([]TableOverview, 0, m.Len())
	for _, t := range m.Tables() {
		columns := "*"
		if names := t.ColumnNames(); len(names) > 0 {
			quoted := make([]string, len(names))
			for i, name := range names {
				quoted[i] = s.quoteIdentifier(name)
			}
			columns = strings.Join(quoted, ", ")
		}
		query := fmt.Sprintf("SELECT %s FROM %s LIMIT %d", columns, s.quoteIdentifier(t.Name), sampleRows)
		rows, err := s.ExecuteQuery(ctx, query, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read sample rows of %s: %w", t.Name, err)
		}
		out = append(out, TableOverview{Table: t, Rows: rows})
	}
	return out, nil
}

// quoteIdentifier quotes name when the store knows its dialect's quoting and returns it unchanged
// otherwise.
func (s *Service) quoteIdentifier(name string) string {
	if q, ok := s.store.(database.Quoter); ok {
		return q.QuoteIdentifier(name)
	}
	return name
}

// GenerateModelQueries asks the configured model for up to n queries over the live schema. Candidates
// that are not placeholder-free SELECT statements are dropped, as are repeats.
func (s *Service) GenerateModelQueries(ctx context.Context, n int) ([]DescribedQuery, error) {
	if s.llm == nil {
		return nil, &ErrModelUnavailable{Msg: "no Gemini API key configured; model query generation is disabled"}
	}
	if n <= 0 {
		return []DescribedQuery{}, nil
	}

	m, err := s.introspector.Introspect(ctx, nil)
	if err != nil {
		return nil, err
	}
	input, err := m.ModelInput(s.cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to build model input: %w", err)
	}

	candidates, err := withRetry(ctx, s.cfg.Retry, s.logger, func(ctx context.Context) ([]string, error) {
		out, err := s.llm.GenerateQueries(ctx, string(input), n)
		if err != nil {
			if cerr := contextError(ctx, "model query generation"); cerr != nil {
				return nil, cerr
			}
			return nil, &ErrModelUnavailable{Msg: "query generation failed", Err: err}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	queries := validCandidates(candidates, n)
	if dropped := len(candidates) - len(queries); dropped > 0 {
		s.logger.Info("Dropped model candidates", zap.Int("dropped", dropped), zap.Int("kept", len(queries)))
	}
	return describeAll(queries), nil
}

func validCandidates(candidates []string, n int) []sampler.GeneratedQuery {
	seen := make(map[string]bool)
	out := make([]sampler.GeneratedQuery, 0, n)
	for _, c := range candidates {
		sql := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(c), ";"))
		if sql == "" || seen[sql] || sqltext.LeadingKeyword(sql) != "SELECT" || sqltext.HasPlaceholder(sql) {
			continue
		}
		seen[sql] = true
		out = append(out, sampler.GeneratedQuery{SQL: sql, SourceTable: sourceTable(sql), Constructs: sqltext.Constructs(sql)})
		if len(out) == n {
			break
		}
	}
	return out
}

// sourceTable returns the first table named in the FROM clause, or "".
func sourceTable(sql string) string {
	from, ok := sqltext.Clause(sql, "FROM")
	if !ok {
		return ""
	}
	fields := strings.FieldsFunc(from, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], "`\"")
}

func describeAll(queries []sampler.GeneratedQuery) []DescribedQuery {
	out := make([]DescribedQuery, len(queries))
	for i, q := range queries {
		out[i] = DescribedQuery{GeneratedQuery: q, Description: describe.Describe(q.SQL)}
	}
	return out
}

// ImportCSV loads the CSV in r into table, creating it when missing.
func (s *Service) ImportCSV(ctx context.Context, table string, r io.Reader) (ImportResult, error) {
	admin, ok := s.store.(database.Admin)
	if !ok {
		return ImportResult{}, fmt.Errorf("the configured store does not support imports")
	}
	table = ingest.SanitizeName(table)
	if table == "" {
		return ImportResult{}, &ErrInvalidInput{Msg: "table name is required"}
	}
	headers, rows, err := ingest.ParseCSV(r)
	if err != nil {
		return ImportResult{}, &ErrInvalidInput{Msg: "failed to parse CSV file", Err: err}
	}
	n, err := admin.ImportRows(ctx, table, headers, rows)
	if err != nil {
		return ImportResult{}, &ErrQueryExecution{Msg: fmt.Sprintf("failed to import into %s", table), Err: err}
	}
	s.logger.Info("Imported CSV", zap.String("table", table), zap.Int("columns", len(headers)), zap.Int("rows", n))
	return ImportResult{Table: table, Columns: headers, Rows: n}, nil
}

// ListDatabases lists the databases visible on the server.
func (s *Service) ListDatabases(ctx context.Context) ([]string, error) {
	admin, ok := s.store.(database.Admin)
	if !ok {
		return nil, fmt.Errorf("the configured store does not support listing databases")
	}
	dbs, err := admin.ListDatabases(ctx)
	if err != nil {
		return nil, &ErrQueryExecution{Msg: "failed to list databases", Err: err}
	}
	return dbs, nil
}

// Ready checks that the schema can be read.
func (s *Service) Ready(ctx context.Context) error {
	_, err := s.introspector.ListTables(ctx)
	return err
}
