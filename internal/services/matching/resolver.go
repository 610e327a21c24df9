// Package matching maps free-typed supplier names onto the supplier list.
package matching

import (
	"context"
	"sort"
	"strings"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/models"
	"invoice-bookkeeping-backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultThreshold    = 90.0
	DefaultSuggestLimit = 10

	// suggestFloor drops names that share almost nothing with the query.
	suggestFloor = 50.0
)

type Resolver struct {
	db        *gorm.DB
	suppliers *repository.SupplierRepository
	threshold float64
	log       *zap.Logger
}

type Option func(*Resolver)

func WithThreshold(t float64) Option {
	return func(r *Resolver) {
		if t > 0 && t <= 100 {
			r.threshold = t
		}
	}
}

func NewResolver(db *gorm.DB, log *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		db:        db,
		suppliers: repository.NewSupplierRepository(db),
		threshold: DefaultThreshold,
		log:       log.Named("matching"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithTx returns a resolver that reads and creates suppliers inside tx.
func (r *Resolver) WithTx(tx *gorm.DB) *Resolver {
	cp := *r
	cp.db = tx
	cp.suppliers = r.suppliers.WithTx(tx)
	return &cp
}

// Match is a scored supplier candidate.
type Match struct {
	Supplier models.Supplier
	Score    float64
}

// Best returns the highest scoring stored supplier for raw, or nil when no
// name reaches the threshold.
func (r *Resolver) Best(ctx context.Context, raw string) (*Match, error) {
	name := strings.TrimSpace(raw)
	exact, err := r.suppliers.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if exact != nil {
		return &Match{Supplier: *exact, Score: 100}, nil
	}

	all, err := r.suppliers.List(ctx)
	if err != nil {
		return nil, err
	}
	var best *Match
	for _, s := range all {
		score := Similarity(name, s.Name)
		if score >= r.threshold && (best == nil || score > best.Score) {
			best = &Match{Supplier: s, Score: score}
		}
	}
	return best, nil
}

// Resolve returns the stored supplier that raw refers to, creating a new
// supplier named raw when nothing is close enough.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*models.Supplier, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return nil, apperror.Validation("supplier", "supplier is required")
	}
	if len([]rune(name)) > models.MaxSupplierLen {
		return nil, apperror.Validationf("supplier", "supplier must be at most %d characters", models.MaxSupplierLen)
	}

	m, err := r.Best(ctx, name)
	if err != nil {
		return nil, err
	}
	if m != nil {
		if m.Score < 100 {
			r.log.Debug("supplier name matched",
				zap.String("input", name),
				zap.String("supplier", m.Supplier.Name),
				zap.Float64("score", m.Score),
			)
		}
		return &m.Supplier, nil
	}

	s := &models.Supplier{ID: uuid.Must(uuid.NewV7()), Name: name}
	// a savepoint when r.db is already a transaction, so a unique violation
	// leaves the caller's transaction usable for the lookup below
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.suppliers.WithTx(tx).Create(ctx, s)
	})
	if err != nil {
		if apperror.IsAlreadyExists(err) {
			// created concurrently
			return r.suppliers.FindByName(ctx, name)
		}
		return nil, err
	}
	r.log.Info("supplier created", zap.String("supplier", name))
	return s, nil
}

// Suggest ranks stored names against q for the form's supplier dropdown.
// Names containing q come first, then the rest by similarity. An empty q
// returns the first n names alphabetically.
func (r *Resolver) Suggest(ctx context.Context, q string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultSuggestLimit
	}
	names, err := r.suppliers.Names(ctx)
	if err != nil {
		return nil, err
	}
	query := normalizeName(q)
	if query == "" {
		return names[:min(n, len(names))], nil
	}

	type ranked struct {
		name     string
		contains bool
		score    float64
	}
	var candidates []ranked
	qTokens := strings.Fields(query)
	for _, name := range names {
		norm := normalizeName(name)
		c := ranked{
			name:     name,
			contains: strings.Contains(norm, query),
			score:    tokenScore(qTokens, strings.Fields(norm)),
		}
		if c.contains || c.score >= suggestFloor {
			candidates = append(candidates, c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.contains != b.contains {
			return a.contains
		}
		if a.score != b.score {
			return a.score > b.score
		}
		return a.name < b.name
	})

	out := make([]string, 0, min(n, len(candidates)))
	for _, c := range candidates[:min(n, len(candidates))] {
		out = append(out, c.name)
	}
	return out, nil
}
