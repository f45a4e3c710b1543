package model

import "time"

type LabOrderStatus string

const (
	LabOrderPending    LabOrderStatus = "pending"
	LabOrderInProgress LabOrderStatus = "in_progress"
	LabOrderCompleted  LabOrderStatus = "completed"
)

type LabItemStatus string

const (
	LabItemPending   LabItemStatus = "pending"
	LabItemCompleted LabItemStatus = "completed"
)

type LabOrder struct {
	ID            int64          `db:"id" json:"id"`
	PatientID     int64          `db:"patient_id" json:"patient_id"`
	VisitID       *int64         `db:"visit_id" json:"visit_id,omitempty"`
	OverallStatus LabOrderStatus `db:"overall_status" json:"overall_status"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

type LabOrderItem struct {
	ID         int64         `db:"id" json:"id"`
	LabOrderID int64         `db:"lab_order_id" json:"lab_order_id"`
	TestName   string        `db:"test_name" json:"test_name"`
	Status     LabItemStatus `db:"status" json:"status"`
}
