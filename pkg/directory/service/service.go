package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	apperrors "github.com/harborfin/compliance-middleware/pkg/app/errors"
	"github.com/harborfin/compliance-middleware/pkg/directory"
	"github.com/harborfin/compliance-middleware/pkg/directory/store"
)

var (
	ErrNotOwner = errors.New("caller is not the directory owner")
	ErrNoTopics = errors.New("trusted issuer must list at least one topic")
)

// Operational caps bounding directory size. These are limits on management
// operations, not protocol invariants.
const (
	maxTopicsPerIssuer = 15
)

// Service manages the trusted-issuer directory and the required claim-topic
// set. All mutations are owner-gated.
type Service struct {
	issuers store.IssuerStore
	topics  store.TopicStore
	owner   common.Address

	maxIssuers int
	maxTopics  int

	logger *zap.Logger
}

// NewService creates a new directory service
func NewService(issuers store.IssuerStore, topics store.TopicStore, owner common.Address, maxIssuers, maxTopics int, logger *zap.Logger) *Service {
	return &Service{
		issuers:    issuers,
		topics:     topics,
		owner:      owner,
		maxIssuers: maxIssuers,
		maxTopics:  maxTopics,
		logger:     logger,
	}
}

// AddTrustedIssuer registers an issuer as trusted for the given topics.
func (s *Service) AddTrustedIssuer(ctx context.Context, caller, issuer common.Address, topics []uint64) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if issuer == (common.Address{}) {
		return apperrors.BadRequestError(nil, "zero issuer address")
	}
	if len(topics) == 0 {
		return apperrors.BadRequestError(ErrNoTopics, "issuer must list at least one topic")
	}
	if len(topics) > maxTopicsPerIssuer {
		return apperrors.CapacityError(nil, fmt.Sprintf("at most %d topics per issuer", maxTopicsPerIssuer))
	}

	existing, err := s.issuers.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list trusted issuers: %w", err)
	}
	if len(existing) >= s.maxIssuers {
		return apperrors.CapacityError(nil, fmt.Sprintf("at most %d trusted issuers", s.maxIssuers))
	}

	entry := &directory.TrustedIssuer{Issuer: issuer, Topics: topics}
	if err := s.issuers.Put(ctx, entry); err != nil {
		if errors.Is(err, store.ErrIssuerExists) {
			return apperrors.ConflictError(err, "issuer already trusted")
		}
		return fmt.Errorf("failed to add trusted issuer: %w", err)
	}

	s.logger.Info("trusted issuer added",
		zap.String("issuer", issuer.Hex()),
		zap.Uint64s("topics", topics))
	return nil
}

// UpdateIssuerTopics replaces the topic set an issuer is trusted for.
func (s *Service) UpdateIssuerTopics(ctx context.Context, caller, issuer common.Address, topics []uint64) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if len(topics) == 0 {
		return apperrors.BadRequestError(ErrNoTopics, "issuer must list at least one topic")
	}
	if len(topics) > maxTopicsPerIssuer {
		return apperrors.CapacityError(nil, fmt.Sprintf("at most %d topics per issuer", maxTopicsPerIssuer))
	}

	entry := &directory.TrustedIssuer{Issuer: issuer, Topics: topics}
	if err := s.issuers.Update(ctx, entry); err != nil {
		if errors.Is(err, store.ErrIssuerNotFound) {
			return apperrors.ResourceNotFoundError(err, "issuer not trusted")
		}
		return fmt.Errorf("failed to update trusted issuer: %w", err)
	}
	return nil
}

// RemoveTrustedIssuer removes an issuer from the directory.
func (s *Service) RemoveTrustedIssuer(ctx context.Context, caller, issuer common.Address) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}

	if err := s.issuers.Delete(ctx, issuer); err != nil {
		if errors.Is(err, store.ErrIssuerNotFound) {
			return apperrors.ResourceNotFoundError(err, "issuer not trusted")
		}
		return fmt.Errorf("failed to remove trusted issuer: %w", err)
	}

	s.logger.Info("trusted issuer removed", zap.String("issuer", issuer.Hex()))
	return nil
}

// TrustedIssuers lists all directory entries in registration order.
func (s *Service) TrustedIssuers(ctx context.Context) ([]*directory.TrustedIssuer, error) {
	return s.issuers.List(ctx)
}

// IsTrustedForTopic reports whether an issuer is trusted for one specific
// topic. Trust never carries across topics.
func (s *Service) IsTrustedForTopic(ctx context.Context, issuer common.Address, topic uint64) (bool, error) {
	entry, err := s.issuers.Get(ctx, issuer)
	if err != nil {
		if errors.Is(err, store.ErrIssuerNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get trusted issuer: %w", err)
	}
	return entry.HasTopic(topic), nil
}

// TrustedIssuersForTopic lists the issuers trusted for a topic.
func (s *Service) TrustedIssuersForTopic(ctx context.Context, topic uint64) ([]common.Address, error) {
	entries, err := s.issuers.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list trusted issuers: %w", err)
	}

	var out []common.Address
	for _, entry := range entries {
		if entry.HasTopic(topic) {
			out = append(out, entry.Issuer)
		}
	}
	return out, nil
}

// AddClaimTopic appends a topic to the required set.
func (s *Service) AddClaimTopic(ctx context.Context, caller common.Address, topic uint64) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}

	existing, err := s.topics.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list claim topics: %w", err)
	}
	if len(existing) >= s.maxTopics {
		return apperrors.CapacityError(nil, fmt.Sprintf("at most %d claim topics", s.maxTopics))
	}

	if err := s.topics.Add(ctx, topic); err != nil {
		if errors.Is(err, store.ErrTopicExists) {
			return apperrors.ConflictError(err, "claim topic already required")
		}
		return fmt.Errorf("failed to add claim topic: %w", err)
	}

	s.logger.Info("claim topic added", zap.Uint64("topic", topic))
	return nil
}

// RemoveClaimTopic removes a topic from the required set.
func (s *Service) RemoveClaimTopic(ctx context.Context, caller common.Address, topic uint64) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}

	if err := s.topics.Remove(ctx, topic); err != nil {
		if errors.Is(err, store.ErrTopicNotFound) {
			return apperrors.ResourceNotFoundError(err, "claim topic not required")
		}
		return fmt.Errorf("failed to remove claim topic: %w", err)
	}

	s.logger.Info("claim topic removed", zap.Uint64("topic", topic))
	return nil
}

// RequiredTopics returns the ordered required-topic set.
func (s *Service) RequiredTopics(ctx context.Context) ([]uint64, error) {
	return s.topics.List(ctx)
}

func (s *Service) requireOwner(caller common.Address) error {
	if caller != s.owner {
		return apperrors.ForbiddenError(ErrNotOwner, "caller is not the directory owner")
	}
	return nil
}
