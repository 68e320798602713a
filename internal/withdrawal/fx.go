package withdrawal

import (
	"github.com/smallbiznis/incomeengine/internal/withdrawal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("withdrawal.service",
	fx.Provide(service.New),
)
