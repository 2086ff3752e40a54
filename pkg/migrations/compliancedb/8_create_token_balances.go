package compliancedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/harborfin/compliance-middleware/pkg/pgutil/migrations"
	tokenstore "github.com/harborfin/compliance-middleware/pkg/token/store"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating token_balances table...")
		return mghelper.CreateSchema(ctx, db, &tokenstore.BalanceDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping token_balances table...")
		return mghelper.DropTables(ctx, db, &tokenstore.BalanceDao{})
	})
}
