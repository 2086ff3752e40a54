package compliancedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	directorystore "github.com/harborfin/compliance-middleware/pkg/directory/store"
	mghelper "github.com/harborfin/compliance-middleware/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating trusted_issuers and claim_topics tables...")
		if err := mghelper.CreateSchema(ctx, db,
			&directorystore.TrustedIssuerDao{},
			&directorystore.ClaimTopicDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &directorystore.TrustedIssuerDao{}, "issuer")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping trusted_issuers and claim_topics tables...")
		return mghelper.DropTables(ctx, db,
			&directorystore.TrustedIssuerDao{},
			&directorystore.ClaimTopicDao{})
	})
}
