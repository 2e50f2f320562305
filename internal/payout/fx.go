package payout

import (
	"go.uber.org/fx"

	"github.com/rovamart/payguard/internal/payout/repository"
	"github.com/rovamart/payguard/internal/payout/service"
)

var Module = fx.Module("payout",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
