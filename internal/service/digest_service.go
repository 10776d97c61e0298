package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"uptrack/internal/access"
	"uptrack/internal/model"
	"uptrack/internal/notify"
	"uptrack/internal/repository"
)

// digestWindow is how far ahead a due date counts as "due soon".
const digestWindow = 48 * time.Hour

// DigestService mails owners a daily list of open todos that are overdue or due soon.
type DigestService struct {
	todos       TodoStore
	users       *repository.UserRepository
	notifier    notify.Notifier
	timeout     time.Duration
	frontendURL string
	log         zerolog.Logger
}

func NewDigestService(todos TodoStore, users *repository.UserRepository, notifier notify.Notifier, timeout time.Duration, frontendURL string, log zerolog.Logger) *DigestService {
	return &DigestService{
		todos:       todos,
		users:       users,
		notifier:    notifier,
		timeout:     timeout,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log.With().Str("component", "digest").Logger(),
	}
}

// DueSoon returns user's open todos due before now+48h, earliest first.
func (s *DigestService) DueSoon(ctx context.Context, user model.User, now time.Time) ([]model.Todo, error) {
	limit := now.UTC().Add(digestWindow)
	todos, err := s.todos.FindMany(ctx, repository.TodoFilter{
		Scope:     access.Scope{OwnerID: user.ID},
		OpenOnly:  true,
		DueBefore: &limit,
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(todos, func(i, j int) bool {
		return todos[i].DueDate.Before(*todos[j].DueDate)
	})
	return todos, nil
}

// SendDaily mails every verified user with at least one todo due soon.
// Failures for one user do not stop the others.
func (s *DigestService) SendDaily(ctx context.Context, now time.Time) (int, error) {
	users, err := s.users.ListVerified(ctx)
	if err != nil {
		return 0, err
	}

	var (
		sent int
		errs []error
	)
	for _, user := range users {
		todos, err := s.DueSoon(ctx, user, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("digest for %s: %w", user.ID, err))
			continue
		}
		if len(todos) == 0 {
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err = s.notifier.Send(sendCtx, digestMessage(s.frontendURL, user, todos, now))
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("send digest to %s: %w", user.Email, err))
			continue
		}
		sent++
	}

	s.log.Info().Int("users", len(users)).Int("sent", sent).Int("failed", len(errs)).Msg("daily digest finished")
	return sent, errors.Join(errs...)
}
