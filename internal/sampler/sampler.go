/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package sampler

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/logging"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/resolver"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/schema"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/sqltext"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/templates"
)

// DefaultMaxAttempts is the global attempt budget of one Sample call.
const DefaultMaxAttempts = 50

// GeneratedQuery is a resolved, executable query.
type GeneratedQuery struct {
	SQL         string   `json:"sql"`
	SourceTable string   `json:"source_table"`
	Constructs  []string `json:"constructs"`
}

// Introspector is the schema source used by the sampler.
type Introspector interface {
	Introspect(ctx context.Context, filters map[string][]string) (*schema.SchemaMap, error)
}

type Sampler struct {
	introspector Introspector
	resolver     *resolver.Resolver
	maxAttempts  int
	logger       *zap.Logger
}

// New returns a Sampler. maxAttempts <= 0 selects DefaultMaxAttempts. The sampler draws templates
// from the resolver's random source.
func New(in Introspector, r *resolver.Resolver, maxAttempts int, logger *zap.Logger) *Sampler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Sampler{introspector: in, resolver: r, maxAttempts: maxAttempts, logger: logging.OrNop(logger)}
}

// Sample returns up to n distinct resolved queries. When construct is set only templates containing
// it are eligible and at most one query is returned. Fewer than n results is a partial success.
func (s *Sampler) Sample(ctx context.Context, n int, construct string) ([]GeneratedQuery, error) {
	if n <= 0 {
		return []GeneratedQuery{}, nil
	}

	m, err := s.introspector.Introspect(ctx, nil)
	if err != nil {
		return nil, err
	}

	eligible := templates.Generate(m)
	construct = strings.TrimSpace(construct)
	if construct != "" {
		eligible = filterByConstruct(eligible, construct)
		if len(eligible) == 0 {
			s.logger.Info("No template uses the requested construct", zap.String("construct", construct))
			return []GeneratedQuery{}, nil
		}
		n = 1
	}
	if len(eligible) == 0 {
		return []GeneratedQuery{}, nil
	}

	rng := s.resolver.Rand()
	seen := make(map[string]bool)
	out := make([]GeneratedQuery, 0, n)
	attempts := 0
	for len(out) < n && attempts < s.maxAttempts {
		attempts++
		tmpl := eligible[rng.IntN(len(eligible))]
		sql, err := s.resolver.Resolve(ctx, tmpl, m)
		if err != nil {
			return nil, err
		}
		if seen[sql] {
			continue
		}
		seen[sql] = true
		out = append(out, GeneratedQuery{SQL: sql, SourceTable: tmpl.Table, Constructs: sqltext.Constructs(tmpl.SQL)})
	}

	if len(out) < n {
		s.logger.Info("Sample budget exhausted before reaching requested count",
			zap.Int("requested", n), zap.Int("generated", len(out)), zap.Int("attempts", attempts))
	}
	return out, nil
}

func filterByConstruct(all []templates.Template, construct string) []templates.Template {
	var out []templates.Template
	for _, t := range all {
		if sqltext.HasConstruct(t.SQL, construct) {
			out = append(out, t)
		}
	}
	return out
}
