package compliance

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/rovamart/payguard/internal/clock"
	"github.com/rovamart/payguard/internal/compliance/consumer"
	"github.com/rovamart/payguard/internal/compliance/event"
	"github.com/rovamart/payguard/internal/compliance/repository"
	"github.com/rovamart/payguard/internal/compliance/service"
)

var Module = fx.Module("compliance",
	fx.Provide(
		repository.Provide,
		repository.ProvideOutbox,
		service.NewService,
		consumer.New,
		newPublisher,
	),
	fx.Invoke(consumer.Run),
)

func newPublisher(node *snowflake.Node, clk clock.Clock) event.Publisher {
	return event.NewOutboxPublisher(node, func() time.Time { return clk.Now() })
}
