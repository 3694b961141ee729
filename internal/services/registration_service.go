// Package services – RegistrationService
//
// This file implements the RegistrationService, which turns a submitted
// name/URL pair into a repository token. It validates the URL shape, probes
// the page to make sure it is a GitLab project, and only then writes the row.
// Every validation failure, including a duplicate URL, is reported as an
// unsuccessful RegisterResult; only storage and network faults come back as
// errors.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/gitlab-telegram-bot/internal/domain"
	"github.com/tbourn/gitlab-telegram-bot/internal/repo"
)

// RepositoryRepo defines the repository contract required by the services
// that read or create Repository rows.
type RepositoryRepo interface {
	// CreateRepository inserts the row for url, or returns repo.ErrDuplicate
	// together with the existing token.
	CreateRepository(ctx context.Context, db *gorm.DB, name, url string) (string, error)

	// GetRepository fetches a repository by token.
	GetRepository(ctx context.Context, db *gorm.DB, token string) (*domain.Repository, error)

	// ListRepositories returns every registered repository.
	ListRepositories(ctx context.Context, db *gorm.DB) ([]domain.Repository, error)
}

// Prober checks that a URL serves a GitLab project page.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// repoURLPattern: http(s), a dotted host with a 2–20 letter TLD, then exactly
// owner/repo.
var repoURLPattern = regexp.MustCompile(
	`^https?://(?:[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?\.)+[A-Za-z]{2,20}/[^/\s?#]+/[^/\s?#]+$`,
)

// ValidRepositoryURL reports whether url has the owner/repository shape.
func ValidRepositoryURL(url string) bool {
	return repoURLPattern.MatchString(url)
}

// RegisterResult is what the registration page renders.
type RegisterResult struct {
	Success bool
	// Exists is set when the URL was registered before. Token then carries
	// the existing token.
	Exists bool
	Token  string
	// WebhookURL is the base callback URL GitLab should post to.
	WebhookURL string
	// BotUsername is the Telegram bot users must talk to for /reg.
	BotUsername string
	// Reason is the validation error behind an unsuccessful result.
	Reason error
}

// RegistrationService validates and creates repository tokens.
type RegistrationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the repository store used by this service.
	Repo RepositoryRepo
	// Probe checks the URL; nil skips the check.
	Probe Prober
	// BotUsername is echoed back on success.
	BotUsername string
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(db *gorm.DB, r RepositoryRepo, p Prober, botUsername string) *RegistrationService {
	return &RegistrationService{DB: db, Repo: r, Probe: p, BotUsername: botUsername}
}

// Register validates name and url and stores the repository.
//
// baseURL is the externally visible origin of this service (scheme://host);
// the webhook URL handed back is baseURL + "/gitlab/".
//
// Failures that are the submitter's fault (missing fields, bad URL shape,
// non-2xx page, missing GitLab marker, duplicate URL) yield Success=false
// with Reason set and a nil error. A probe transport failure or a storage
// failure is returned as an error.
func (s *RegistrationService) Register(ctx context.Context, name, url, baseURL string) (RegisterResult, error) {
	name = strings.TrimSpace(name)
	url = strings.TrimSpace(url)
	if name == "" || url == "" {
		return RegisterResult{Reason: ErrValidation}, nil
	}
	if !ValidRepositoryURL(url) {
		return RegisterResult{Reason: ErrInvalidURL}, nil
	}

	if s.Probe != nil {
		if err := s.Probe.Probe(ctx, url); err != nil {
			if errors.Is(err, ErrUnreachable) || errors.Is(err, ErrNotGitLab) {
				return RegisterResult{Reason: err}, nil
			}
			return RegisterResult{}, err
		}
	}

	token, err := s.Repo.CreateRepository(ctx, s.DB, name, url)
	if errors.Is(err, repo.ErrDuplicate) {
		return RegisterResult{Exists: true, Token: token, Reason: ErrRepositoryExists}, nil
	}
	if err != nil {
		return RegisterResult{}, err
	}

	return RegisterResult{
		Success:     true,
		Token:       token,
		WebhookURL:  strings.TrimRight(baseURL, "/") + "/gitlab/",
		BotUsername: s.BotUsername,
	}, nil
}

// List returns every registered repository for the index page.
func (s *RegistrationService) List(ctx context.Context) ([]domain.Repository, error) {
	return s.Repo.ListRepositories(ctx, s.DB)
}
