package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/incomeengine/internal/cadence"
	"github.com/smallbiznis/incomeengine/internal/config"
	"github.com/smallbiznis/incomeengine/internal/engine/domain"
	ledgerdomain "github.com/smallbiznis/incomeengine/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Registrations []domain.Registration
	Ledger        ledgerdomain.Service
	Log           *zap.Logger
	Overrides     *config.EnginesConfigHolder `optional:"true"`
}

// Entry is one registered engine with the cadence currently in effect.
type Entry struct {
	Name    string
	Engine  domain.Engine
	Cadence cadence.Cadence
}

// Registry is the fixed, load-time set of engines.
type Registry struct {
	order     []string
	engines   map[string]domain.Registration
	ledger    ledgerdomain.Service
	overrides *config.EnginesConfigHolder
	log       *zap.Logger
}

func New(p Params) (*Registry, error) {
	r := &Registry{
		engines:   make(map[string]domain.Registration, len(p.Registrations)),
		ledger:    p.Ledger,
		overrides: p.Overrides,
		log:       p.Log.Named("engine.registry"),
	}
	for _, reg := range p.Registrations {
		if reg.Engine == nil {
			continue
		}
		name := strings.TrimSpace(reg.Engine.Name())
		if name == "" {
			return nil, ledgerdomain.ErrInvalidEngineName
		}
		if _, exists := r.engines[name]; exists {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateEngine, name)
		}
		r.engines[name] = reg
		r.order = append(r.order, name)
	}
	return r, nil
}

func (r *Registry) Get(name string) (domain.Engine, error) {
	reg, ok := r.engines[strings.TrimSpace(name)]
	if !ok {
		return nil, domain.ErrEngineNotFound
	}
	return reg.Engine, nil
}

// Cadence returns the override from engines.yml when present, otherwise the
// built-in cadence.
func (r *Registry) Cadence(name string) (cadence.Cadence, error) {
	reg, ok := r.engines[strings.TrimSpace(name)]
	if !ok {
		return cadence.Cadence{}, domain.ErrEngineNotFound
	}
	if c, ok := r.overrides.CadenceFor(name); ok {
		return c, nil
	}
	return reg.Cadence, nil
}

// All lists engines in registration order.
func (r *Registry) All() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		c, _ := r.Cadence(name)
		out = append(out, Entry{Name: name, Engine: r.engines[name].Engine, Cadence: c})
	}
	return out
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Init makes sure every engine has a config row. Existing rows are left
// untouched, so calling it again is harmless.
func (r *Registry) Init(ctx context.Context) error {
	var errs error
	for _, name := range r.order {
		if err := r.ledger.UpsertEngineConfig(ctx, name); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		r.log.Debug("engine config ensured", zap.String("engine", name))
	}
	if errs != nil {
		return errs
	}
	r.log.Info("engine registry initialized", zap.Int("engines", len(r.order)))
	return nil
}
