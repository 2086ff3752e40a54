package compliancedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	identitystore "github.com/harborfin/compliance-middleware/pkg/identity/store"
	mghelper "github.com/harborfin/compliance-middleware/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating identities table...")
		return mghelper.CreateSchema(ctx, db, &identitystore.IdentityDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping identities table...")
		return mghelper.DropTables(ctx, db, &identitystore.IdentityDao{})
	})
}
