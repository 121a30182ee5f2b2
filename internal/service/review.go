package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/domain/entity"
)

// RequestReader loads and transitions stored requests
type RequestReader interface {
	Load(ctx context.Context, id string) (*entity.Request, error)
	List(ctx context.Context) ([]*entity.Request, error)
	UpdateStatus(ctx context.Context, id string, newStatus entity.Status, actor, note string) (*entity.Request, error)
}

// ReviewService is the treasurer's side of the tool: reading the queue
// and recording decisions. Transition legality is enforced by the store;
// this layer only names the decisions.
type ReviewService struct {
	store  RequestReader
	logger *zap.Logger
}

// NewReviewService creates the review service
func NewReviewService(store RequestReader, logger *zap.Logger) *ReviewService {
	return &ReviewService{store: store, logger: logger}
}

// Get returns one request by id
func (s *ReviewService) Get(ctx context.Context, id string) (*entity.Request, error) {
	return s.store.Load(ctx, id)
}

// List returns all requests, optionally filtered by status
func (s *ReviewService) List(ctx context.Context, status entity.Status) ([]*entity.Request, error) {
	requests, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return requests, nil
	}

	filtered := requests[:0]
	for _, request := range requests {
		if request.Metadata.Status == status {
			filtered = append(filtered, request)
		}
	}
	return filtered, nil
}

// Approve marks a pending request approved
func (s *ReviewService) Approve(ctx context.Context, id, treasurer, note string) (*entity.Request, error) {
	return s.decide(ctx, id, entity.StatusApproved, treasurer, note)
}

// Reject marks a pending request rejected
func (s *ReviewService) Reject(ctx context.Context, id, treasurer, note string) (*entity.Request, error) {
	return s.decide(ctx, id, entity.StatusRejected, treasurer, note)
}

// Hold parks a pending request while the treasurer waits on the member
func (s *ReviewService) Hold(ctx context.Context, id, treasurer, note string) (*entity.Request, error) {
	return s.decide(ctx, id, entity.StatusOnHold, treasurer, note)
}

// Reopen returns a held request to the pending queue
func (s *ReviewService) Reopen(ctx context.Context, id, treasurer, note string) (*entity.Request, error) {
	return s.decide(ctx, id, entity.StatusPending, treasurer, note)
}

func (s *ReviewService) decide(ctx context.Context, id string, decision entity.Status, treasurer, note string) (*entity.Request, error) {
	request, err := s.store.UpdateStatus(ctx, id, decision, treasurer, note)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Review decision recorded",
		zap.String("request_id", id),
		zap.String("decision", string(decision)),
		zap.String("treasurer", treasurer))

	return request, nil
}
