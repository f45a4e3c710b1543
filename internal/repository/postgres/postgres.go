package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/repository"
)

type appointmentRepository struct {
	db *sqlx.DB
}

type visitRepository struct {
	db *sqlx.DB
}

type queueRepository struct {
	db *sqlx.DB
}

type appointmentLogRepository struct {
	db *sqlx.DB
}

type employeeRepository struct {
	db *sqlx.DB
}

type patientRepository struct {
	db *sqlx.DB
}

type labOrderRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func NewVisitRepository(db *sqlx.DB) repository.VisitRepository {
	return &visitRepository{db: db}
}

func NewQueueRepository(db *sqlx.DB) repository.QueueRepository {
	return &queueRepository{db: db}
}

func NewAppointmentLogRepository(db *sqlx.DB) repository.AppointmentLogRepository {
	return &appointmentLogRepository{db: db}
}

func NewEmployeeRepository(db *sqlx.DB) repository.EmployeeRepository {
	return &employeeRepository{db: db}
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func NewLabOrderRepository(db *sqlx.DB) repository.LabOrderRepository {
	return &labOrderRepository{db: db}
}
