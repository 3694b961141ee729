package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
)

// newRepoDB opens a private in-memory database with foreign keys enforced and
// the given models migrated.
func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreateRepository_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	if _, err := CreateRepository(context.Background(), db, "n", "https://gitlab.com/a/b"); err == nil {
		t.Fatalf("expected error creating without table")
	}
}

func TestCreateRepository_DerivesTokenAndPersists(t *testing.T) {
	db := newRepoDB(t, &domain.Repository{})
	url := "https://gitlab.example.com/team/proj"

	tok, err := CreateRepository(context.Background(), db, "demo", url)
	if err != nil {
		t.Fatalf("CreateRepository: %v", err)
	}
	if tok != domain.TokenForURL(url) {
		t.Fatalf("token = %q, want sha1(url) %q", tok, domain.TokenForURL(url))
	}

	got, err := GetRepository(context.Background(), db, tok)
	if err != nil {
		t.Fatalf("GetRepository: %v", err)
	}
	if got.Name != "demo" || got.URL != url || got.CreatedAt.IsZero() {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestCreateRepository_SameURLTwice_OneRowSameToken(t *testing.T) {
	db := newRepoDB(t, &domain.Repository{})
	url := "https://gitlab.example.com/team/proj"

	first, err := CreateRepository(context.Background(), db, "demo", url)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := CreateRepository(context.Background(), db, "renamed", url)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if first != second {
		t.Fatalf("token changed between registrations: %q vs %q", first, second)
	}

	var n int64
	db.Model(&domain.Repository{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected exactly one row, got %d", n)
	}
	// The original name is kept: duplicates never mutate.
	got, _ := GetRepository(context.Background(), db, first)
	if got.Name != "demo" {
		t.Fatalf("duplicate registration mutated row: %+v", got)
	}
}

func TestCreateRepository_ConcurrentSameURL(t *testing.T) {
	db := newRepoDB(t, &domain.Repository{})
	url := "https://gitlab.example.com/team/race"
	// One connection: shared-cache SQLite reports table locks otherwise.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := CreateRepository(context.Background(), db, "race", url)
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("expected exactly one successful insert, got %d", created)
	}
}

func TestGetRepository_NotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Repository{})
	_, err := GetRepository(context.Background(), db, "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRepositories(t *testing.T) {
	db := newRepoDB(t, &domain.Repository{})
	ctx := context.Background()

	if out, err := ListRepositories(ctx, db); err != nil || len(out) != 0 {
		t.Fatalf("empty list: out=%v err=%v", out, err)
	}
	_, _ = CreateRepository(ctx, db, "a", "https://gitlab.com/x/a")
	_, _ = CreateRepository(ctx, db, "b", "https://gitlab.com/x/b")

	out, err := ListRepositories(ctx, db)
	if err != nil {
		t.Fatalf("ListRepositories: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 repos, got %d", len(out))
	}
}
