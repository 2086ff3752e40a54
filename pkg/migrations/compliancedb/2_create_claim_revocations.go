package compliancedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	issuerstore "github.com/harborfin/compliance-middleware/pkg/issuer/store"
	mghelper "github.com/harborfin/compliance-middleware/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating claim_revocations table...")
		return mghelper.CreateSchema(ctx, db, &issuerstore.RevocationDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping claim_revocations table...")
		return mghelper.DropTables(ctx, db, &issuerstore.RevocationDao{})
	})
}
