package compliancedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	badgestore "github.com/harborfin/compliance-middleware/pkg/badge/store"
	mghelper "github.com/harborfin/compliance-middleware/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating badges table...")
		if err := mghelper.CreateSchema(ctx, db,
			&badgestore.BadgeDao{},
			&badgestore.BadgeIDSeq{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &badgestore.BadgeDao{}, "holder"); err != nil {
			return err
		}
		// One live badge per (holder, type).
		_, err := db.NewCreateIndex().
			Model(&badgestore.BadgeDao{}).
			Index("idx_badges_holder_credential_type").
			Column("holder", "credential_type").
			Unique().
			IfNotExists().
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping badges table...")
		return mghelper.DropTables(ctx, db,
			&badgestore.BadgeDao{},
			&badgestore.BadgeIDSeq{})
	})
}
