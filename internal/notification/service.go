package notification

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/repository"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/circuitbreaker"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/logger"
)

type Config struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Service sends patient-facing e-mails over SMTP. Every send is best effort:
// lifecycle transitions never fail because mail did not go out.
type Service struct {
	cfg      Config
	dialer   *gomail.Dialer
	patients repository.PatientRepository
	cb       *circuitbreaker.CircuitBreaker
	logger   *logger.Logger
}

func NewService(cfg Config, patients repository.PatientRepository, log *logger.Logger) *Service {
	return &Service{
		cfg:      cfg,
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		patients: patients,
		cb: circuitbreaker.New(circuitbreaker.Settings{
			Name:        "smtp",
			MaxFailures: 3,
			Timeout:     time.Minute,
		}),
		logger: log,
	}
}

// SendCancellation notifies the patient that their appointment was cancelled,
// whether by an operator or by the closing-time sweep.
func (s *Service) SendCancellation(ctx context.Context, appointment *model.Appointment, reason string) error {
	if !s.cfg.Enabled {
		return nil
	}

	patient, err := s.patients.Get(ctx, appointment.PatientID)
	if err != nil {
		return fmt.Errorf("failed to look up patient: %w", err)
	}
	if patient.Email == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", patient.Email)
	m.SetHeader("Subject", "Your appointment has been cancelled")
	m.SetBody("text/plain", fmt.Sprintf(
		"Dear %s %s,\n\nYour appointment on %s at %s has been cancelled.\nReason: %s\n\nPlease contact the health office to rebook.",
		patient.FirstName, patient.LastName,
		appointment.ScheduledDate.Format("January 2, 2006"),
		appointment.ScheduledTime,
		reason,
	))

	return s.cb.Execute(func() error {
		if err := s.dialer.DialAndSend(m); err != nil {
			return fmt.Errorf("failed to send cancellation mail: %w", err)
		}
		return nil
	})
}
