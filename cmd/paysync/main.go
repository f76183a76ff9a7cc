package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysync/internal/config"
	"github.com/smallbiznis/paysync/internal/gateway"
	"github.com/smallbiznis/paysync/internal/metrics"
	"github.com/smallbiznis/paysync/internal/migration"
	"github.com/smallbiznis/paysync/internal/order"
	"github.com/smallbiznis/paysync/internal/orderlock"
	"github.com/smallbiznis/paysync/internal/ordermail"
	"github.com/smallbiznis/paysync/internal/paymentmethod"
	"github.com/smallbiznis/paysync/internal/providers/email"
	"github.com/smallbiznis/paysync/internal/refund"
	"github.com/smallbiznis/paysync/internal/server"
	"github.com/smallbiznis/paysync/internal/settings"
	"github.com/smallbiznis/paysync/internal/transaction"
	"github.com/smallbiznis/paysync/internal/webhook"
	"github.com/smallbiznis/paysync/pkg/db"
	"github.com/smallbiznis/paysync/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		metrics.Module,
		migration.Module,

		// Functional Domains
		settings.Module,
		gateway.Module,
		order.Module,
		orderlock.Module,
		refund.Module,
		transaction.Module,
		email.Module,
		ordermail.Module,
		paymentmethod.Module,
		webhook.Module,

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
