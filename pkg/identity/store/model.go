package store

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/uptrace/bun"

	"github.com/harborfin/compliance-middleware/pkg/identity"
)

// IdentityDao is a data access object that maps directly to the 'identities'
// table in PostgreSQL. Keys and claims travel as JSONB documents: the
// aggregate is always read and written whole, matching the service's
// copy-mutate-save flow.
type IdentityDao struct {
	bun.BaseModel `bun:"table:identities,alias:i"`
	Address       string     `bun:"address,pk,type:varchar(42)"`
	Keys          []keyDoc   `bun:"keys,type:jsonb,notnull"`
	Claims        []claimDoc `bun:"claims,type:jsonb,notnull"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,default:current_timestamp"`
}

type keyDoc struct {
	ID       string  `json:"id"`
	Purposes []uint8 `json:"purposes"`
	Type     uint8   `json:"type"`
}

type claimDoc struct {
	ID        string `json:"id"`
	Topic     uint64 `json:"topic"`
	Scheme    uint64 `json:"scheme"`
	Issuer    string `json:"issuer"`
	Signature string `json:"signature"`
	Data      string `json:"data"`
	URI       string `json:"uri"`
}

func toIdentityDao(id *identity.Identity) *IdentityDao {
	dao := &IdentityDao{
		Address: id.Address.Hex(),
		Keys:    make([]keyDoc, 0, len(id.Keys)),
		Claims:  make([]claimDoc, 0, len(id.Claims)),
	}
	for _, k := range id.Keys {
		purposes := make([]uint8, len(k.Purposes))
		for i, p := range k.Purposes {
			purposes[i] = uint8(p)
		}
		dao.Keys = append(dao.Keys, keyDoc{
			ID:       k.ID.Hex(),
			Purposes: purposes,
			Type:     uint8(k.Type),
		})
	}
	for _, c := range id.Claims {
		dao.Claims = append(dao.Claims, claimDoc{
			ID:        c.ID.Hex(),
			Topic:     c.Topic,
			Scheme:    c.Scheme,
			Issuer:    c.Issuer.Hex(),
			Signature: hexutil.Encode(c.Signature),
			Data:      hexutil.Encode(c.Data),
			URI:       c.URI,
		})
	}
	return dao
}

func toIdentity(dao *IdentityDao) *identity.Identity {
	id := &identity.Identity{
		Address: common.HexToAddress(dao.Address),
		Keys:    make(map[common.Hash]*identity.Key, len(dao.Keys)),
		Claims:  make(map[common.Hash]*identity.Claim, len(dao.Claims)),
	}
	for _, k := range dao.Keys {
		purposes := make([]identity.KeyPurpose, len(k.Purposes))
		for i, p := range k.Purposes {
			purposes[i] = identity.KeyPurpose(p)
		}
		keyID := common.HexToHash(k.ID)
		id.Keys[keyID] = &identity.Key{
			ID:       keyID,
			Purposes: purposes,
			Type:     identity.KeyType(k.Type),
		}
	}
	for _, c := range dao.Claims {
		claimID := common.HexToHash(c.ID)
		sig, _ := hexutil.Decode(c.Signature)
		data, _ := hexutil.Decode(c.Data)
		id.Claims[claimID] = &identity.Claim{
			ID:        claimID,
			Topic:     c.Topic,
			Scheme:    c.Scheme,
			Issuer:    common.HexToAddress(c.Issuer),
			Signature: sig,
			Data:      data,
			URI:       c.URI,
		}
	}
	return id
}
