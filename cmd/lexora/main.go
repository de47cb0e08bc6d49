package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexora/internal/clock"
	"github.com/smallbiznis/lexora/internal/config"
	"github.com/smallbiznis/lexora/internal/invoice"
	"github.com/smallbiznis/lexora/internal/migration"
	"github.com/smallbiznis/lexora/internal/notify"
	"github.com/smallbiznis/lexora/internal/observability"
	"github.com/smallbiznis/lexora/internal/payment"
	"github.com/smallbiznis/lexora/internal/scheduler"
	"github.com/smallbiznis/lexora/internal/server"
	"github.com/smallbiznis/lexora/internal/subscription"
	"github.com/smallbiznis/lexora/internal/usage"
	"github.com/smallbiznis/lexora/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		notify.Module,
		subscription.Module,
		usage.Module,
		payment.Module,
		invoice.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
