package store

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"

	"github.com/harborfin/compliance-middleware/pkg/registry"
)

// BindingDao is a data access object that maps directly to the
// 'identity_bindings' table in PostgreSQL.
type BindingDao struct {
	bun.BaseModel `bun:"table:identity_bindings,alias:ib"`
	Wallet        string    `bun:"wallet,pk,type:varchar(42)"`
	Identity      string    `bun:"identity,notnull,type:varchar(42)"`
	Country       int32     `bun:"country,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,default:current_timestamp"`
}

func toBindingDao(b *registry.Binding) *BindingDao {
	return &BindingDao{
		Wallet:   b.Wallet.Hex(),
		Identity: b.Identity.Hex(),
		Country:  int32(b.Country),
	}
}

func toBinding(dao *BindingDao) *registry.Binding {
	return &registry.Binding{
		Wallet:   common.HexToAddress(dao.Wallet),
		Identity: common.HexToAddress(dao.Identity),
		Country:  uint16(dao.Country),
	}
}
