package ratelimit

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewLoginLimiter),
	fx.Invoke(closeOnStop),
)

func closeOnStop(lc fx.Lifecycle, limiter *LoginLimiter) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return limiter.Close()
		},
	})
}
