package verification

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/repository"
	apperrors "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/errors"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/metrics"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/security"
)

type Method string

const (
	MethodQR   Method = "qr"
	MethodCode Method = "code"
)

// Operator-facing rejection reasons. A QR that belongs to a different
// appointment is surfaced separately from an invalid or expired one.
const (
	MsgInvalidQR    = "invalid or expired QR code"
	MsgMismatchedQR = "QR code does not match this appointment"
	MsgInvalidCode  = "invalid verification code"
)

const verificationCodeLength = 8

// Result is a successful identity verification for one appointment.
type Result struct {
	AppointmentID int64  `json:"appointment_id"`
	Method        Method `json:"method"`
}

// Service validates check-in claims against the credential issued at booking
// time. All checks are read-only; a failed verification never mutates state.
type Service struct {
	appointments repository.AppointmentRepository
	creds        *gocache.Cache
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(appointments repository.AppointmentRepository, m *metrics.Metrics) *Service {
	return &Service{
		appointments: appointments,
		// Kiosks rescan the same code several times in quick succession;
		// a short TTL keeps those reads off the database.
		creds:   gocache.New(30*time.Second, time.Minute),
		metrics: m,
		now:     time.Now,
	}
}

func (s *Service) credential(ctx context.Context, appointmentID int64) (*model.AppointmentCredential, error) {
	key := strconv.FormatInt(appointmentID, 10)
	if cached, ok := s.creds.Get(key); ok {
		return cached.(*model.AppointmentCredential), nil
	}

	cred, err := s.appointments.GetCredential(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, apperrors.Internal(err)
	}

	s.creds.SetDefault(key, cred)
	return cred, nil
}

func (s *Service) record(method Method, verified bool) {
	if s.metrics == nil {
		return
	}
	result := "verified"
	if !verified {
		result = "rejected"
	}
	s.metrics.VerificationAttempts.WithLabelValues(string(method), result).Inc()
}

// VerifyQRToken checks a scanned QR token against the appointment under
// operation.
func (s *Service) VerifyQRToken(ctx context.Context, appointmentID int64, token string) (*Result, error) {
	if token == "" {
		s.record(MethodQR, false)
		return nil, apperrors.Verification(MsgInvalidQR)
	}

	cred, err := s.credential(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if cred.QRToken != nil && security.TokensEqual(*cred.QRToken, token) {
		if cred.QRExpiresAt != nil && s.now().After(*cred.QRExpiresAt) {
			s.record(MethodQR, false)
			return nil, apperrors.Verification(MsgInvalidQR)
		}
		s.record(MethodQR, true)
		return &Result{AppointmentID: appointmentID, Method: MethodQR}, nil
	}

	// The token did not match this appointment. If it belongs to another
	// one the operator scanned the wrong patient, which needs a different
	// message than a stale or forged code.
	otherID, err := s.appointments.FindIDByQRToken(ctx, token)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.record(MethodQR, false)
	if otherID != 0 && otherID != appointmentID {
		return nil, apperrors.Verification(MsgMismatchedQR)
	}
	return nil, apperrors.Verification(MsgInvalidQR)
}

// VerifyCode checks a manually entered 8-character verification code.
// Comparison is case-insensitive. Retries are unbounded here; abuse control
// is the rate limiter's job at the transport layer.
func (s *Service) VerifyCode(ctx context.Context, appointmentID int64, code string) (*Result, error) {
	if len(code) != verificationCodeLength {
		s.record(MethodCode, false)
		return nil, apperrors.Verification(MsgInvalidCode)
	}

	cred, err := s.credential(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if !security.CodesEqual(cred.VerificationCode, code) {
		s.record(MethodCode, false)
		return nil, apperrors.Verification(MsgInvalidCode)
	}

	s.record(MethodCode, true)
	return &Result{AppointmentID: appointmentID, Method: MethodCode}, nil
}
