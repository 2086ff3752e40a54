// Package compliancedb holds all the migrations for the compliance database
package compliancedb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the compliance database
var Migrations = migrate.NewMigrations()
