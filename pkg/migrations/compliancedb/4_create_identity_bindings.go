package compliancedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/harborfin/compliance-middleware/pkg/pgutil/migrations"
	registrystore "github.com/harborfin/compliance-middleware/pkg/registry/store"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating identity_bindings table...")
		if err := mghelper.CreateSchema(ctx, db, &registrystore.BindingDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &registrystore.BindingDao{}, "identity")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping identity_bindings table...")
		return mghelper.DropTables(ctx, db, &registrystore.BindingDao{})
	})
}
