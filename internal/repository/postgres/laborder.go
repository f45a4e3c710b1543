package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
)

func (r *labOrderRepository) GetOrderForUpdate(ctx context.Context, ext sqlx.ExtContext, id int64) (*model.LabOrder, error) {
	query := `
		SELECT id, patient_id, visit_id, overall_status, created_at, updated_at
		FROM lab_orders
		WHERE id = $1
		FOR UPDATE
	`
	var order model.LabOrder
	if err := sqlx.GetContext(ctx, ext, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get lab order: %w", err)
	}
	return &order, nil
}

func (r *labOrderRepository) CompleteItem(ctx context.Context, ext sqlx.ExtContext, orderID, itemID int64) (bool, error) {
	query := `
		UPDATE lab_order_items
		SET status = $1
		WHERE id = $2 AND lab_order_id = $3 AND status = $4
	`
	result, err := ext.ExecContext(ctx, query, model.LabItemCompleted, itemID, orderID, model.LabItemPending)
	if err != nil {
		return false, fmt.Errorf("failed to complete lab order item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *labOrderRepository) CountItems(ctx context.Context, ext sqlx.ExtContext, orderID int64) (int64, int64, error) {
	query := `
		SELECT COUNT(*) AS total,
			   COUNT(*) FILTER (WHERE status = $1) AS completed
		FROM lab_order_items
		WHERE lab_order_id = $2
	`
	var counts struct {
		Total     int64 `db:"total"`
		Completed int64 `db:"completed"`
	}
	if err := sqlx.GetContext(ctx, ext, &counts, query, model.LabItemCompleted, orderID); err != nil {
		return 0, 0, fmt.Errorf("failed to count lab order items: %w", err)
	}
	return counts.Total, counts.Completed, nil
}

func (r *labOrderRepository) SetOverallStatus(ctx context.Context, ext sqlx.ExtContext, id int64, status model.LabOrderStatus) error {
	query := `
		UPDATE lab_orders
		SET overall_status = $1, updated_at = $2
		WHERE id = $3
	`
	if _, err := ext.ExecContext(ctx, query, status, time.Now(), id); err != nil {
		return fmt.Errorf("failed to set lab order status: %w", err)
	}
	return nil
}
