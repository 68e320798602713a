package engines

import (
	"github.com/smallbiznis/incomeengine/internal/engine/estimate"
	"go.uber.org/fx"
)

var Module = fx.Module("engines",
	fx.Provide(estimate.Provide),
	fx.Provide(Catalogue),
)
