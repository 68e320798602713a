package payout

import (
	"github.com/smallbiznis/incomeengine/internal/clock"
	"github.com/smallbiznis/incomeengine/internal/config"
	"github.com/smallbiznis/incomeengine/internal/payout/adapters"
	"github.com/smallbiznis/incomeengine/internal/payout/adapters/cashapp"
	"github.com/smallbiznis/incomeengine/internal/payout/adapters/paypal"
	"github.com/smallbiznis/incomeengine/internal/providers/transport"
	"go.uber.org/fx"
)

var Module = fx.Module("payout",
	fx.Provide(func(cfg config.Config, client *transport.Client, clk clock.Clock) *paypal.Adapter {
		return paypal.New(paypal.Config{
			ClientID: cfg.Payouts.PayPalClientID,
			Secret:   cfg.Payouts.PayPalSecret,
			Email:    cfg.Payouts.PayPalEmail,
			Live:     cfg.Payouts.PayPalLive(),
		}, client, clk)
	}),
	fx.Provide(func(cfg config.Config) *cashapp.Adapter {
		return cashapp.New(cfg.Payouts.CashAppTag)
	}),
	fx.Provide(func(pp *paypal.Adapter, ca *cashapp.Adapter) *adapters.Registry {
		return adapters.NewRegistry(pp, ca)
	}),
)
