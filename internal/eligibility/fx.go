package eligibility

import (
	"github.com/rovamart/payguard/internal/eligibility/service"
	"go.uber.org/fx"
)

var Module = fx.Module("eligibility.service",
	fx.Provide(service.NewService),
)
