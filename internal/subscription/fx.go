package subscription

import (
	"github.com/smallbiznis/lexora/internal/subscription/repository"
	"github.com/smallbiznis/lexora/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
