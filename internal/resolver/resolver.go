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

// Package resolver turns templates into executable SQL by substituting placeholders with values
// sampled from the live table, or with fixed defaults when no usable value is available.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/database"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/logging"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/schema"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/sqltext"
	"github.com/GoogleCloudPlatform/chatdb-query-engine/internal/templates"
)

// Defaults substituted when no live value is usable.
const (
	DefaultNumeric     = "0"
	DefaultCategorical = "''"
	DefaultDate        = "'2000-01-01'"
	DefaultLikePattern = "'%'"
)

// ErrUnknownPlaceholder is returned for a placeholder kind the resolver has no rule for.
var ErrUnknownPlaceholder = errors.New("unknown placeholder")

// Resolver substitutes template placeholders. It is not safe for concurrent use because it owns
// its random source.
type Resolver struct {
	store  database.Store
	rng    *rand.Rand
	logger *zap.Logger
}

// New returns a Resolver sampling from store. A nil rng is replaced by a randomly seeded one.
func New(store database.Store, rng *rand.Rand, logger *zap.Logger) *Resolver {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Resolver{store: store, rng: rng, logger: logging.OrNop(logger)}
}

// NewRand returns a random source for seed, or a randomly seeded one when seed is 0.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// Rand exposes the resolver's random source so callers sharing it stay reproducible under one seed.
func (r *Resolver) Rand() *rand.Rand {
	return r.rng
}

// Resolve substitutes every placeholder of tmpl. Each live value is a fresh store round trip.
// Sampling failures fall back to defaults and are logged, never returned. The only errors are an
// unknown placeholder kind and a cancelled context.
func (r *Resolver) Resolve(ctx context.Context, tmpl templates.Template, m *schema.SchemaMap) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	kinds := sqltext.Placeholders(tmpl.SQL)
	for _, kind := range kinds {
		if !known(kind) {
			return "", fmt.Errorf("%w: {%s} in %q", ErrUnknownPlaceholder, kind, tmpl.SQL)
		}
	}
	if len(kinds) == 0 {
		return tmpl.SQL, nil
	}

	table, ok := m.Table(tmpl.Table)
	if !ok {
		r.logger.Warn("Template table missing from schema, using defaults", zap.String("table", tmpl.Table))
	}

	values := make([]string, len(kinds))
	for i, kind := range kinds {
		values[i] = r.value(ctx, table, kind)
	}
	orderPair(kinds, values, templates.NumericLow, templates.NumericHigh, lessNumeric)
	orderPair(kinds, values, templates.DateStart, templates.DateEnd, lessText)

	return sqltext.ReplacePlaceholders(tmpl.SQL, func(i int, _ string) string {
		return values[i]
	}), nil
}

func known(kind string) bool {
	for _, k := range templates.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (r *Resolver) value(ctx context.Context, table schema.TableInfo, kind string) string {
	switch kind {
	case templates.Numeric, templates.NumericLow, templates.NumericHigh:
		v, ok := r.sample(ctx, table, table.Numeric(), false, kind)
		if !ok {
			return DefaultNumeric
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			r.logger.Warn("Sampled value is not numeric, using default",
				zap.String("table", table.Name), zap.String("kind", kind), zap.String("value", v))
			return DefaultNumeric
		}
		return v
	case templates.Categorical:
		v, ok := r.sample(ctx, table, table.Categorical(), true, kind)
		if !ok {
			return DefaultCategorical
		}
		return QuoteLiteral(v)
	case templates.Date, templates.DateStart, templates.DateEnd:
		v, ok := r.sample(ctx, table, table.DateLike(), false, kind)
		if !ok {
			return DefaultDate
		}
		return QuoteLiteral(v)
	case templates.LikePattern:
		v, ok := r.sample(ctx, table, table.Categorical(), true, kind)
		if !ok || v == "" {
			return DefaultLikePattern
		}
		prefix := []rune(v)
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}
		return QuoteLiteral("%" + string(prefix) + "%")
	case templates.Order:
		if r.rng.IntN(2) == 0 {
			return "ASC"
		}
		return "DESC"
	}
	return ""
}

// sample picks one candidate column uniformly and samples a value from it. ok is false when there is
// no candidate, no value, or the sample failed.
func (r *Resolver) sample(ctx context.Context, table schema.TableInfo, candidates []schema.ColumnInfo, distinct bool, kind string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	col := candidates[r.rng.IntN(len(candidates))]

	v, ok, err := r.store.SampleValue(ctx, table.Name, col.Name, distinct)
	if err != nil {
		r.logger.Warn("Sampling failed, using default",
			zap.String("table", table.Name), zap.String("column", col.Name), zap.String("kind", kind), zap.Error(err))
		return "", false
	}
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if sqltext.HasPlaceholder(v) {
		r.logger.Warn("Sampled value looks like a placeholder, using default",
			zap.String("table", table.Name), zap.String("column", col.Name))
		return "", false
	}
	return v, true
}

// orderPair swaps the values of the first low and high placeholders when they are out of order.
func orderPair(kinds, values []string, low, high string, less func(a, b string) bool) {
	lo, hi := -1, -1
	for i, k := range kinds {
		if k == low && lo < 0 {
			lo = i
		}
		if k == high && hi < 0 {
			hi = i
		}
	}
	if lo < 0 || hi < 0 {
		return
	}
	if less(values[hi], values[lo]) {
		values[lo], values[hi] = values[hi], values[lo]
	}
}

func lessNumeric(a, b string) bool {
	x, errA := strconv.ParseFloat(a, 64)
	y, errB := strconv.ParseFloat(b, 64)
	if errA != nil || errB != nil {
		return false
	}
	return x < y
}

func lessText(a, b string) bool {
	return a < b
}

// QuoteLiteral renders s as a single-quoted SQL string literal.
func QuoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `''`)
	return "'" + s + "'"
}
