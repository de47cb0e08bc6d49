package payment

import (
	"github.com/smallbiznis/lexora/internal/payment/repository"
	"github.com/smallbiznis/lexora/internal/payment/service"
	"github.com/smallbiznis/lexora/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(
		repository.Provide,
		service.New,
		webhook.NewVerifierFromConfig,
		webhook.New,
	),
)
