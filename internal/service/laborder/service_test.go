package laborder

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
	apperrors "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/errors"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(ext sqlx.ExtContext) error) error {
	return fn(nil)
}

type fakeLabOrderRepo struct {
	order          *model.LabOrder
	itemOK         bool
	total          int64
	completed      int64
	statusWrites   []model.LabOrderStatus
	completeCalled bool
}

func (f *fakeLabOrderRepo) GetOrderForUpdate(ctx context.Context, ext sqlx.ExtContext, id int64) (*model.LabOrder, error) {
	if f.order == nil || f.order.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *f.order
	return &copied, nil
}

func (f *fakeLabOrderRepo) CompleteItem(ctx context.Context, ext sqlx.ExtContext, orderID, itemID int64) (bool, error) {
	f.completeCalled = true
	return f.itemOK, nil
}

func (f *fakeLabOrderRepo) CountItems(ctx context.Context, ext sqlx.ExtContext, orderID int64) (int64, int64, error) {
	return f.total, f.completed, nil
}

func (f *fakeLabOrderRepo) SetOverallStatus(ctx context.Context, ext sqlx.ExtContext, id int64, status model.LabOrderStatus) error {
	f.statusWrites = append(f.statusWrites, status)
	return nil
}

func TestRollup(t *testing.T) {
	tests := []struct {
		name      string
		current   model.LabOrderStatus
		total     int64
		completed int64
		expected  model.LabOrderStatus
	}{
		{"all items completed", model.LabOrderInProgress, 3, 3, model.LabOrderCompleted},
		{"single item completed", model.LabOrderPending, 1, 1, model.LabOrderCompleted},
		{"first item completes pending order", model.LabOrderPending, 3, 1, model.LabOrderInProgress},
		{"in progress stays in progress", model.LabOrderInProgress, 3, 2, model.LabOrderInProgress},
		{"nothing completed", model.LabOrderPending, 3, 0, model.LabOrderPending},
		{"completed never reverts", model.LabOrderCompleted, 3, 3, model.LabOrderCompleted},
		{"no items", model.LabOrderPending, 0, 0, model.LabOrderPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Rollup(tt.current, tt.total, tt.completed))
		})
	}
}

func TestCompleteItem_LastItemCompletesOrder(t *testing.T) {
	repo := &fakeLabOrderRepo{
		order:     &model.LabOrder{ID: 7, OverallStatus: model.LabOrderInProgress},
		itemOK:    true,
		total:     2,
		completed: 2,
	}
	service := NewService(fakeTxRunner{}, repo)

	order, err := service.CompleteItem(context.Background(), 7, 71)
	require.NoError(t, err)
	assert.Equal(t, model.LabOrderCompleted, order.OverallStatus)
	assert.Equal(t, []model.LabOrderStatus{model.LabOrderCompleted}, repo.statusWrites)
}

func TestCompleteItem_FirstItemStartsOrder(t *testing.T) {
	repo := &fakeLabOrderRepo{
		order:     &model.LabOrder{ID: 7, OverallStatus: model.LabOrderPending},
		itemOK:    true,
		total:     3,
		completed: 1,
	}
	service := NewService(fakeTxRunner{}, repo)

	order, err := service.CompleteItem(context.Background(), 7, 71)
	require.NoError(t, err)
	assert.Equal(t, model.LabOrderInProgress, order.OverallStatus)
}

func TestCompleteItem_NoStatusChangeSkipsWrite(t *testing.T) {
	repo := &fakeLabOrderRepo{
		order:     &model.LabOrder{ID: 7, OverallStatus: model.LabOrderInProgress},
		itemOK:    true,
		total:     3,
		completed: 2,
	}
	service := NewService(fakeTxRunner{}, repo)

	_, err := service.CompleteItem(context.Background(), 7, 71)
	require.NoError(t, err)
	assert.Empty(t, repo.statusWrites)
}

func TestCompleteItem_AlreadyCompleted(t *testing.T) {
	repo := &fakeLabOrderRepo{
		order:  &model.LabOrder{ID: 7, OverallStatus: model.LabOrderInProgress},
		itemOK: false,
	}
	service := NewService(fakeTxRunner{}, repo)

	_, err := service.CompleteItem(context.Background(), 7, 71)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrStateConflict))
	assert.Empty(t, repo.statusWrites)
}

func TestCompleteItem_OrderNotFound(t *testing.T) {
	service := NewService(fakeTxRunner{}, &fakeLabOrderRepo{})

	_, err := service.CompleteItem(context.Background(), 7, 71)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}
