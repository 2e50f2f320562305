package observability

import (
	"go.uber.org/fx"

	"github.com/rovamart/payguard/internal/observability/metrics"
)

var Module = fx.Module("observability",
	fx.Provide(
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
)
