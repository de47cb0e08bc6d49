package invoice

import (
	"github.com/smallbiznis/lexora/internal/invoice/render"
	"github.com/smallbiznis/lexora/internal/invoice/repository"
	"github.com/smallbiznis/lexora/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice",
	fx.Provide(
		repository.Provide,
		render.NewPDFRenderer,
		service.New,
	),
)
