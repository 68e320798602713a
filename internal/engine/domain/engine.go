package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/incomeengine/internal/cadence"
)

// Engine is an independently schedulable unit of revenue work. Run returns
// the sum of the earnings it recorded during this invocation. Engines handle
// their own sub-step failures and only return an error for conditions they
// cannot recover from.
type Engine interface {
	Name() string
	Run(ctx context.Context) (decimal.Decimal, error)
}

// Registration binds an engine to its built-in cadence.
type Registration struct {
	Engine  Engine
	Cadence cadence.Cadence
}

// EngineFunc adapts a function into an Engine.
type EngineFunc struct {
	EngineName string
	Fn         func(ctx context.Context) (decimal.Decimal, error)
}

func (f EngineFunc) Name() string { return f.EngineName }

func (f EngineFunc) Run(ctx context.Context) (decimal.Decimal, error) {
	return f.Fn(ctx)
}
