package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gtpooniwala/LBSClubTreasurer/internal/domain/entity"
)

type mockReader struct {
	loadFn         func(ctx context.Context, id string) (*entity.Request, error)
	listFn         func(ctx context.Context) ([]*entity.Request, error)
	updateStatusFn func(ctx context.Context, id string, newStatus entity.Status, actor, note string) (*entity.Request, error)
}

func (m *mockReader) Load(ctx context.Context, id string) (*entity.Request, error) {
	return m.loadFn(ctx, id)
}

func (m *mockReader) List(ctx context.Context) ([]*entity.Request, error) {
	return m.listFn(ctx)
}

func (m *mockReader) UpdateStatus(ctx context.Context, id string, newStatus entity.Status, actor, note string) (*entity.Request, error) {
	return m.updateStatusFn(ctx, id, newStatus, actor, note)
}

func requestWithStatus(id string, status entity.Status) *entity.Request {
	return &entity.Request{
		Metadata: entity.Metadata{RequestID: id, Status: status},
	}
}

func TestList_FiltersByStatus(t *testing.T) {
	reader := &mockReader{
		listFn: func(ctx context.Context) ([]*entity.Request, error) {
			return []*entity.Request{
				requestWithStatus("REQ-1", entity.StatusPending),
				requestWithStatus("REQ-2", entity.StatusApproved),
				requestWithStatus("REQ-3", entity.StatusPending),
			}, nil
		},
	}
	svc := NewReviewService(reader, zap.NewNop())

	pending, err := svc.List(context.Background(), entity.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "REQ-1", pending[0].Metadata.RequestID)
	assert.Equal(t, "REQ-3", pending[1].Metadata.RequestID)

	all, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDecisions_MapToStatuses(t *testing.T) {
	tests := []struct {
		name   string
		decide func(svc *ReviewService, ctx context.Context) (*entity.Request, error)
		want   entity.Status
	}{
		{"approve", func(svc *ReviewService, ctx context.Context) (*entity.Request, error) {
			return svc.Approve(ctx, "REQ-1", "treasurer", "fine")
		}, entity.StatusApproved},
		{"reject", func(svc *ReviewService, ctx context.Context) (*entity.Request, error) {
			return svc.Reject(ctx, "REQ-1", "treasurer", "no receipt")
		}, entity.StatusRejected},
		{"hold", func(svc *ReviewService, ctx context.Context) (*entity.Request, error) {
			return svc.Hold(ctx, "REQ-1", "treasurer", "waiting on member")
		}, entity.StatusOnHold},
		{"reopen", func(svc *ReviewService, ctx context.Context) (*entity.Request, error) {
			return svc.Reopen(ctx, "REQ-1", "treasurer", "receipt arrived")
		}, entity.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotStatus entity.Status
			var gotActor string
			reader := &mockReader{
				updateStatusFn: func(ctx context.Context, id string, newStatus entity.Status, actor, note string) (*entity.Request, error) {
					gotStatus = newStatus
					gotActor = actor
					return requestWithStatus(id, newStatus), nil
				},
			}
			svc := NewReviewService(reader, zap.NewNop())

			request, err := tt.decide(svc, context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.want, gotStatus)
			assert.Equal(t, "treasurer", gotActor)
			assert.Equal(t, tt.want, request.Metadata.Status)
		})
	}
}

func TestDecide_PropagatesTransitionError(t *testing.T) {
	reader := &mockReader{
		updateStatusFn: func(ctx context.Context, id string, newStatus entity.Status, actor, note string) (*entity.Request, error) {
			return nil, entity.ErrInvalidTransition
		},
	}
	svc := NewReviewService(reader, zap.NewNop())

	_, err := svc.Approve(context.Background(), "REQ-1", "treasurer", "")
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
}
