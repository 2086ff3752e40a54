package store

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/harborfin/compliance-middleware/pkg/pgutil"
	mghelper "github.com/harborfin/compliance-middleware/pkg/pgutil/migrations"
	"github.com/harborfin/compliance-middleware/pkg/registry"
)

func setupStorage(t *testing.T) (context.Context, Storage) {
	t.Helper()
	requireDockerAccess(t)

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := mghelper.CreateSchema(ctx, db, &BindingDao{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return ctx, NewPgStorage(db)
}

func requireDockerAccess(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if sock == "" {
			continue
		}
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}

	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed registry store tests")
}

func newTestBinding(wallet, identityAddr string, country uint16) *registry.Binding {
	return &registry.Binding{
		Wallet:   common.HexToAddress(wallet),
		Identity: common.HexToAddress(identityAddr),
		Country:  country,
	}
}

func TestBindingPGStorage_BindAndGet(t *testing.T) {
	ctx, s := setupStorage(t)

	b := newTestBinding("0x1111111111111111111111111111111111111111", "0x2222222222222222222222222222222222222222", 840)
	if err := s.Bind(ctx, b); err != nil {
		t.Fatalf("Bind() failed: %v", err)
	}

	got, err := s.Get(ctx, b.Wallet)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Identity != b.Identity {
		t.Fatalf("identity mismatch: got %s want %s", got.Identity.Hex(), b.Identity.Hex())
	}
	if got.Country != 840 {
		t.Fatalf("country mismatch: got %d want 840", got.Country)
	}

	if err := s.Bind(ctx, b); !errors.Is(err, ErrBindingExists) {
		t.Fatalf("expected ErrBindingExists on re-bind, got: %v", err)
	}

	exists, err := s.Contains(ctx, b.Wallet)
	if err != nil {
		t.Fatalf("Contains() failed: %v", err)
	}
	if !exists {
		t.Fatalf("expected binding to exist")
	}
}

func TestBindingPGStorage_UpdateAndDelete(t *testing.T) {
	ctx, s := setupStorage(t)

	unknown := newTestBinding("0x3333333333333333333333333333333333333333", "0x4444444444444444444444444444444444444444", 276)
	if err := s.Update(ctx, unknown); !errors.Is(err, ErrBindingNotFound) {
		t.Fatalf("expected ErrBindingNotFound on update of unknown wallet, got: %v", err)
	}

	b := newTestBinding("0x1111111111111111111111111111111111111111", "0x2222222222222222222222222222222222222222", 840)
	if err := s.Bind(ctx, b); err != nil {
		t.Fatalf("Bind() failed: %v", err)
	}

	b.Identity = common.HexToAddress("0x5555555555555555555555555555555555555555")
	b.Country = 756
	if err := s.Update(ctx, b); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	got, err := s.Get(ctx, b.Wallet)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Identity != b.Identity || got.Country != 756 {
		t.Fatalf("update not persisted: got %s/%d", got.Identity.Hex(), got.Country)
	}

	if err := s.Delete(ctx, b.Wallet); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if err := s.Delete(ctx, b.Wallet); !errors.Is(err, ErrBindingNotFound) {
		t.Fatalf("expected ErrBindingNotFound on double delete, got: %v", err)
	}
	if _, err := s.Get(ctx, b.Wallet); !errors.Is(err, ErrBindingNotFound) {
		t.Fatalf("expected ErrBindingNotFound after delete, got: %v", err)
	}
}
