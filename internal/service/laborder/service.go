package laborder

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/repository"
	apperrors "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/errors"
)

// Service applies the lab-order status rollup: when all child test items
// reach completed the parent order auto-transitions to completed; when some
// but not all are completed and the order was pending, it moves to
// in_progress. One-way, no branching.
type Service struct {
	tx   repository.TxRunner
	repo repository.LabOrderRepository
}

func NewService(tx repository.TxRunner, repo repository.LabOrderRepository) *Service {
	return &Service{tx: tx, repo: repo}
}

// CompleteItem marks one test item completed and rolls the parent order's
// overall status up in the same transaction.
func (s *Service) CompleteItem(ctx context.Context, orderID, itemID int64) (*model.LabOrder, error) {
	var order *model.LabOrder

	err := s.tx.WithTx(ctx, func(ext sqlx.ExtContext) error {
		var err error
		order, err = s.repo.GetOrderForUpdate(ctx, ext, orderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NotFound("lab order", err)
			}
			return err
		}

		ok, err := s.repo.CompleteItem(ctx, ext, orderID, itemID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.StateConflict("lab order item not found or already completed")
		}

		total, completed, err := s.repo.CountItems(ctx, ext, orderID)
		if err != nil {
			return err
		}

		next := Rollup(order.OverallStatus, total, completed)
		if next != order.OverallStatus {
			if err := s.repo.SetOverallStatus(ctx, ext, orderID, next); err != nil {
				return err
			}
			order.OverallStatus = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Rollup computes the parent order status from item counts. Pure function.
func Rollup(current model.LabOrderStatus, total, completed int64) model.LabOrderStatus {
	switch {
	case total > 0 && completed == total:
		return model.LabOrderCompleted
	case completed > 0 && current == model.LabOrderPending:
		return model.LabOrderInProgress
	default:
		return current
	}
}
