package compliancedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	gatestore "github.com/harborfin/compliance-middleware/pkg/gate/store"
	mghelper "github.com/harborfin/compliance-middleware/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating venue_positions table...")
		return mghelper.CreateSchema(ctx, db, &gatestore.PositionDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping venue_positions table...")
		return mghelper.DropTables(ctx, db, &gatestore.PositionDao{})
	})
}
