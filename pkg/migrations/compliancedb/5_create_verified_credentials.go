package compliancedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/harborfin/compliance-middleware/pkg/pgutil/migrations"
	verifierstore "github.com/harborfin/compliance-middleware/pkg/verifier/store"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating verified_credentials and used_proofs tables...")
		if err := mghelper.CreateSchema(ctx, db,
			&verifierstore.CredentialDao{},
			&verifierstore.UsedProofDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &verifierstore.CredentialDao{}, "subject")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping verified_credentials and used_proofs tables...")
		return mghelper.DropTables(ctx, db,
			&verifierstore.CredentialDao{},
			&verifierstore.UsedProofDao{})
	})
}
