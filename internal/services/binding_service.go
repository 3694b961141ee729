// Package services – BindingService
//
// This file implements the BindingService behind the /reg and /bye bot
// commands. It binds a chat to a repository token and unbinds it again,
// enforcing the cardinality rules: binding is idempotent per (token, chat),
// and unbinding needs a token only when the chat holds several bindings.
//
// Outcomes are tagged values (BindOutcome, UnbindOutcome) so the bot layer
// can render them however it likes.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
	"github.com/tbourn/gitlab-telegram-bot/internal/repo"
)

// BindingRepo defines the repository contract required by BindingService.
type BindingRepo interface {
	// GetRepository fetches a repository by token.
	GetRepository(ctx context.Context, db *gorm.DB, token string) (*domain.Repository, error)

	// CountBindings returns how many repositories chatID is bound to.
	CountBindings(ctx context.Context, db *gorm.DB, chatID int64) (int64, error)

	// ListBoundRepositories returns (token, name) for every binding of chatID.
	ListBoundRepositories(ctx context.Context, db *gorm.DB, chatID int64) ([]domain.BoundRepository, error)

	// BindingExists reports whether (token, chatID) is bound.
	BindingExists(ctx context.Context, db *gorm.DB, token string, chatID int64) (bool, error)

	// CreateBinding inserts (token, chatID) or returns repo.ErrDuplicate.
	CreateBinding(ctx context.Context, db *gorm.DB, token string, chatID int64) error

	// DeleteBinding removes (token, chatID) or returns repo.ErrNotFound.
	DeleteBinding(ctx context.Context, db *gorm.DB, token string, chatID int64) error

	// DeleteAllBindings removes every binding of chatID.
	DeleteAllBindings(ctx context.Context, db *gorm.DB, chatID int64) (int64, error)
}

// BindOutcome tags the result of Bind.
type BindOutcome int

const (
	// BindUsage: no token was given.
	BindUsage BindOutcome = iota + 1
	// BindNotFound: the token matches no repository.
	BindNotFound
	// BindAlreadyBound: the chat is already bound to the token.
	BindAlreadyBound
	// BindBound: a new binding was created.
	BindBound
)

// String implements fmt.Stringer (used in logs and metrics labels).
func (o BindOutcome) String() string {
	switch o {
	case BindUsage:
		return "usage"
	case BindNotFound:
		return "not_found"
	case BindAlreadyBound:
		return "already_bound"
	case BindBound:
		return "bound"
	default:
		return "unknown"
	}
}

// BindResult carries the outcome of Bind and, when the token resolved, the
// repository it belongs to.
type BindResult struct {
	Outcome    BindOutcome
	Repository *domain.Repository
}

// UnbindOutcome tags the result of Unbind.
type UnbindOutcome int

const (
	// UnbindNothing: the chat holds no binding.
	UnbindNothing UnbindOutcome = iota + 1
	// UnbindUnbound: exactly one binding was removed.
	UnbindUnbound
	// UnbindAmbiguous: several bindings and no token; see UnbindResult.Bound.
	UnbindAmbiguous
	// UnbindNotBound: several bindings, but none for the given token.
	UnbindNotBound
)

// String implements fmt.Stringer.
func (o UnbindOutcome) String() string {
	switch o {
	case UnbindNothing:
		return "nothing"
	case UnbindUnbound:
		return "unbound"
	case UnbindAmbiguous:
		return "ambiguous"
	case UnbindNotBound:
		return "not_bound"
	default:
		return "unknown"
	}
}

// UnbindResult carries the outcome of Unbind. Bound lists the chat's
// bindings when the outcome is UnbindAmbiguous.
type UnbindResult struct {
	Outcome UnbindOutcome
	Bound   []domain.BoundRepository
}

// BindingService binds and unbinds chats to repository tokens.
type BindingService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the binding store used by this service.
	Repo BindingRepo
}

// NewBindingService constructs a BindingService.
func NewBindingService(db *gorm.DB, r BindingRepo) *BindingService {
	return &BindingService{DB: db, Repo: r}
}

// Bind subscribes sender to the repository identified by token.
//
// Outcomes:
//   - BindUsage when token is empty.
//   - BindNotFound when no repository has token.
//   - BindAlreadyBound when (token, sender) exists; nothing is written.
//   - BindBound otherwise.
//
// Only storage faults are returned as errors.
func (s *BindingService) Bind(ctx context.Context, sender int64, token string) (BindResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return BindResult{Outcome: BindUsage}, nil
	}

	r, err := s.Repo.GetRepository(ctx, s.DB, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return BindResult{Outcome: BindNotFound}, nil
		}
		return BindResult{}, err
	}

	exists, err := s.Repo.BindingExists(ctx, s.DB, token, sender)
	if err != nil {
		return BindResult{}, err
	}
	if exists {
		return BindResult{Outcome: BindAlreadyBound, Repository: r}, nil
	}

	// A concurrent /reg can win between the check and the insert; the insert
	// itself is conflict-free, so treat that as already bound.
	if err := s.Repo.CreateBinding(ctx, s.DB, token, sender); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return BindResult{Outcome: BindAlreadyBound, Repository: r}, nil
		}
		return BindResult{}, err
	}
	return BindResult{Outcome: BindBound, Repository: r}, nil
}

// Unbind removes one of sender's bindings.
//
// Outcomes:
//   - UnbindNothing when sender holds no binding (token is ignored).
//   - UnbindUnbound when sender holds exactly one binding; it is removed
//     whatever token says.
//   - UnbindAmbiguous when sender holds several bindings and token is empty;
//     Bound lists them.
//   - UnbindNotBound when token is given but not bound to sender.
//   - UnbindUnbound when token is given and bound; only that binding goes.
func (s *BindingService) Unbind(ctx context.Context, sender int64, token string) (UnbindResult, error) {
	token = strings.TrimSpace(token)

	n, err := s.Repo.CountBindings(ctx, s.DB, sender)
	if err != nil {
		return UnbindResult{}, err
	}

	switch {
	case n == 0:
		return UnbindResult{Outcome: UnbindNothing}, nil

	case n == 1:
		if _, err := s.Repo.DeleteAllBindings(ctx, s.DB, sender); err != nil {
			return UnbindResult{}, err
		}
		return UnbindResult{Outcome: UnbindUnbound}, nil

	case token == "":
		bound, err := s.Repo.ListBoundRepositories(ctx, s.DB, sender)
		if err != nil {
			return UnbindResult{}, err
		}
		return UnbindResult{Outcome: UnbindAmbiguous, Bound: bound}, nil
	}

	if err := s.Repo.DeleteBinding(ctx, s.DB, token, sender); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return UnbindResult{Outcome: UnbindNotBound}, nil
		}
		return UnbindResult{}, err
	}
	return UnbindResult{Outcome: UnbindUnbound}, nil
}
