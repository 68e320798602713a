package registry

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("engine.registry",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, r *Registry) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return r.Init(ctx)
			},
		})
	}),
)
