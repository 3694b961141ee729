package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
	"github.com/tbourn/gitlab-telegram-bot/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if _, err := repo.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedRepository(t *testing.T, db *gorm.DB, name, url string) string {
	t.Helper()
	tok, err := repo.CreateRepository(context.Background(), db, name, url)
	if err != nil {
		t.Fatalf("seed %s: %v", url, err)
	}
	return tok
}

func TestBind_Outcomes(t *testing.T) {
	db := newServiceDB(t)
	svc := NewBindingService(db, repo.Store{})
	ctx := context.Background()
	tok := seedRepository(t, db, "demo", "https://gitlab.example.com/acme/demo")

	res, err := svc.Bind(ctx, 42, "   ")
	if err != nil || res.Outcome != BindUsage {
		t.Fatalf("empty token: got %v, %v; want usage", res.Outcome, err)
	}

	res, err = svc.Bind(ctx, 42, "deadbeef")
	if err != nil || res.Outcome != BindNotFound {
		t.Fatalf("unknown token: got %v, %v; want not_found", res.Outcome, err)
	}

	res, err = svc.Bind(ctx, 42, tok)
	if err != nil || res.Outcome != BindBound {
		t.Fatalf("first bind: got %v, %v; want bound", res.Outcome, err)
	}
	if res.Repository == nil || res.Repository.Name != "demo" {
		t.Fatalf("bound repository = %+v", res.Repository)
	}

	res, err = svc.Bind(ctx, 42, " "+tok+" ")
	if err != nil || res.Outcome != BindAlreadyBound {
		t.Fatalf("second bind: got %v, %v; want already_bound", res.Outcome, err)
	}

	n, _ := repo.CountBindings(ctx, db, 42)
	if n != 1 {
		t.Fatalf("bindings after double bind = %d; want 1", n)
	}
}

func TestBind_RaceLostToDuplicate(t *testing.T) {
	// BindingExists says no, but the insert collides: still already bound.
	st := &stubBindingRepo{
		repo:      &domain.Repository{Token: "t1", Name: "demo"},
		createErr: repo.ErrDuplicate,
	}
	svc := NewBindingService(nil, st)

	res, err := svc.Bind(context.Background(), 7, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != BindAlreadyBound {
		t.Fatalf("outcome = %v; want already_bound", res.Outcome)
	}
}

func TestBind_StorageFault(t *testing.T) {
	boom := errors.New("boom")
	svc := NewBindingService(nil, &stubBindingRepo{getErr: boom})

	if _, err := svc.Bind(context.Background(), 7, "t1"); !errors.Is(err, boom) {
		t.Fatalf("err = %v; want boom", err)
	}
}

func TestUnbind_Outcomes(t *testing.T) {
	db := newServiceDB(t)
	svc := NewBindingService(db, repo.Store{})
	ctx := context.Background()
	a := seedRepository(t, db, "alpha", "https://gitlab.example.com/acme/alpha")
	b := seedRepository(t, db, "beta", "https://gitlab.example.com/acme/beta")

	// nothing bound: token is ignored
	res, err := svc.Unbind(ctx, 42, a)
	if err != nil || res.Outcome != UnbindNothing {
		t.Fatalf("no bindings: got %v, %v; want nothing", res.Outcome, err)
	}

	// single binding: removed regardless of the token given
	if _, err := svc.Bind(ctx, 42, a); err != nil {
		t.Fatal(err)
	}
	res, err = svc.Unbind(ctx, 42, "whatever")
	if err != nil || res.Outcome != UnbindUnbound {
		t.Fatalf("single binding: got %v, %v; want unbound", res.Outcome, err)
	}
	if n, _ := repo.CountBindings(ctx, db, 42); n != 0 {
		t.Fatalf("count after single unbind = %d; want 0", n)
	}

	// two bindings
	for _, tok := range []string{a, b} {
		if _, err := svc.Bind(ctx, 42, tok); err != nil {
			t.Fatal(err)
		}
	}

	res, err = svc.Unbind(ctx, 42, "")
	if err != nil || res.Outcome != UnbindAmbiguous {
		t.Fatalf("no token: got %v, %v; want ambiguous", res.Outcome, err)
	}
	if len(res.Bound) != 2 || res.Bound[0].Name != "alpha" || res.Bound[1].Name != "beta" {
		t.Fatalf("bound list = %+v", res.Bound)
	}
	if n, _ := repo.CountBindings(ctx, db, 42); n != 2 {
		t.Fatalf("ambiguous unbind must not delete; count = %d", n)
	}

	res, err = svc.Unbind(ctx, 42, "not-a-token")
	if err != nil || res.Outcome != UnbindNotBound {
		t.Fatalf("foreign token: got %v, %v; want not_bound", res.Outcome, err)
	}

	res, err = svc.Unbind(ctx, 42, b)
	if err != nil || res.Outcome != UnbindUnbound {
		t.Fatalf("explicit token: got %v, %v; want unbound", res.Outcome, err)
	}
	left, _ := repo.ListBoundRepositories(ctx, db, 42)
	if len(left) != 1 || left[0].Token != a {
		t.Fatalf("remaining = %+v; want only alpha", left)
	}
}

func TestUnbind_DoesNotTouchOtherChats(t *testing.T) {
	db := newServiceDB(t)
	svc := NewBindingService(db, repo.Store{})
	ctx := context.Background()
	tok := seedRepository(t, db, "demo", "https://gitlab.example.com/acme/demo")

	for _, chat := range []int64{1, 2} {
		if _, err := svc.Bind(ctx, chat, tok); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Unbind(ctx, 1, ""); err != nil {
		t.Fatal(err)
	}

	chats, _ := repo.FindBindingsByToken(ctx, db, tok)
	if len(chats) != 1 || chats[0].ChatID != 2 {
		t.Fatalf("bindings = %+v; want only chat 2", chats)
	}
}

func TestOutcomeStrings(t *testing.T) {
	cases := map[fmt.Stringer]string{
		BindUsage:        "usage",
		BindNotFound:     "not_found",
		BindAlreadyBound: "already_bound",
		BindBound:        "bound",
		BindOutcome(0):   "unknown",
		UnbindNothing:    "nothing",
		UnbindUnbound:    "unbound",
		UnbindAmbiguous:  "ambiguous",
		UnbindNotBound:   "not_bound",
		UnbindOutcome(0): "unknown",
	}
	for o, want := range cases {
		if got := o.String(); got != want {
			t.Errorf("%#v.String() = %q; want %q", o, got, want)
		}
	}
}

// ----- stub repo -----

type stubBindingRepo struct {
	repo      *domain.Repository
	getErr    error
	createErr error
}

func (s *stubBindingRepo) GetRepository(context.Context, *gorm.DB, string) (*domain.Repository, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.repo == nil {
		return nil, repo.ErrNotFound
	}
	return s.repo, nil
}

func (s *stubBindingRepo) CountBindings(context.Context, *gorm.DB, int64) (int64, error) {
	return 0, nil
}

func (s *stubBindingRepo) ListBoundRepositories(context.Context, *gorm.DB, int64) ([]domain.BoundRepository, error) {
	return nil, nil
}

func (s *stubBindingRepo) BindingExists(context.Context, *gorm.DB, string, int64) (bool, error) {
	return false, nil
}

func (s *stubBindingRepo) CreateBinding(context.Context, *gorm.DB, string, int64) error {
	return s.createErr
}

func (s *stubBindingRepo) DeleteBinding(context.Context, *gorm.DB, string, int64) error {
	return nil
}

func (s *stubBindingRepo) DeleteAllBindings(context.Context, *gorm.DB, int64) (int64, error) {
	return 0, nil
}
