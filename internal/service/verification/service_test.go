package verification

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
	apperrors "github.com/daveynmdz-sti/wbhsms-cho-koronadal/pkg/errors"
)

type fakeCredentialRepo struct {
	creds          map[int64]*model.AppointmentCredential
	tokenOwners    map[string]int64
	credentialHits int
}

func (f *fakeCredentialRepo) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeCredentialRepo) GetCredential(ctx context.Context, id int64) (*model.AppointmentCredential, error) {
	f.credentialHits++
	cred, ok := f.creds[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cred, nil
}

func (f *fakeCredentialRepo) FindIDByQRToken(ctx context.Context, token string) (int64, error) {
	return f.tokenOwners[token], nil
}

func (f *fakeCredentialRepo) TransitionStatus(ctx context.Context, ext sqlx.ExtContext, id int64, from, to model.AppointmentStatus, reason *string) (bool, error) {
	return false, nil
}

func (f *fakeCredentialRepo) ListForSweep(ctx context.Context, date time.Time, status model.AppointmentStatus) ([]*model.Appointment, error) {
	return nil, nil
}

func (f *fakeCredentialRepo) CountSweepable(ctx context.Context, date time.Time) (int64, error) {
	return 0, nil
}

func strPtr(s string) *string { return &s }

func newVerifier(repo *fakeCredentialRepo, now time.Time) *Service {
	s := NewService(repo, nil)
	s.now = func() time.Time { return now }
	return s
}

func TestVerifyQRToken_Valid(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)
	repo := &fakeCredentialRepo{creds: map[int64]*model.AppointmentCredential{
		42: {AppointmentID: 42, QRToken: strPtr("tok-abc"), QRExpiresAt: &expires},
	}}

	result, err := newVerifier(repo, now).VerifyQRToken(context.Background(), 42, "tok-abc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.AppointmentID)
	assert.Equal(t, MethodQR, result.Method)
}

func TestVerifyQRToken_Expired(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	expires := now.Add(-time.Minute)
	repo := &fakeCredentialRepo{creds: map[int64]*model.AppointmentCredential{
		42: {AppointmentID: 42, QRToken: strPtr("tok-abc"), QRExpiresAt: &expires},
	}}

	_, err := newVerifier(repo, now).VerifyQRToken(context.Background(), 42, "tok-abc")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrVerification))
	assert.Contains(t, err.Error(), MsgInvalidQR)
}

func TestVerifyQRToken_BelongsToAnotherAppointment(t *testing.T) {
	now := time.Now()
	repo := &fakeCredentialRepo{
		creds: map[int64]*model.AppointmentCredential{
			42: {AppointmentID: 42, QRToken: strPtr("tok-42")},
		},
		tokenOwners: map[string]int64{"tok-41": 41},
	}

	_, err := newVerifier(repo, now).VerifyQRToken(context.Background(), 42, "tok-41")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrVerification))
	assert.Contains(t, err.Error(), MsgMismatchedQR)
}

func TestVerifyQRToken_UnknownToken(t *testing.T) {
	repo := &fakeCredentialRepo{creds: map[int64]*model.AppointmentCredential{
		42: {AppointmentID: 42, QRToken: strPtr("tok-42")},
	}}

	_, err := newVerifier(repo, time.Now()).VerifyQRToken(context.Background(), 42, "forged")
	require.Error(t, err)
	assert.Contains(t, err.Error(), MsgInvalidQR)
}

func TestVerifyQRToken_Empty(t *testing.T) {
	repo := &fakeCredentialRepo{}
	_, err := newVerifier(repo, time.Now()).VerifyQRToken(context.Background(), 42, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrVerification))
	// The empty-token short circuit must not touch the database.
	assert.Equal(t, 0, repo.credentialHits)
}

func TestVerifyQRToken_AppointmentNotFound(t *testing.T) {
	repo := &fakeCredentialRepo{}
	_, err := newVerifier(repo, time.Now()).VerifyQRToken(context.Background(), 42, "tok-abc")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrNotFound))
}

func TestVerifyCode_CaseInsensitive(t *testing.T) {
	repo := &fakeCredentialRepo{creds: map[int64]*model.AppointmentCredential{
		42: {AppointmentID: 42, VerificationCode: "A1B2C3D4"},
	}}
	verifier := newVerifier(repo, time.Now())

	result, err := verifier.VerifyCode(context.Background(), 42, "a1b2c3d4")
	require.NoError(t, err)
	assert.Equal(t, MethodCode, result.Method)

	result, err = verifier.VerifyCode(context.Background(), 42, "A1B2C3D4")
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.AppointmentID)
}

func TestVerifyCode_WrongLength(t *testing.T) {
	repo := &fakeCredentialRepo{}
	verifier := newVerifier(repo, time.Now())

	for _, code := range []string{"", "A1B2", "A1B2C3D4E5"} {
		_, err := verifier.VerifyCode(context.Background(), 42, code)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrVerification))
	}
	assert.Equal(t, 0, repo.credentialHits)
}

func TestVerifyCode_Mismatch(t *testing.T) {
	repo := &fakeCredentialRepo{creds: map[int64]*model.AppointmentCredential{
		42: {AppointmentID: 42, VerificationCode: "A1B2C3D4"},
	}}

	_, err := newVerifier(repo, time.Now()).VerifyCode(context.Background(), 42, "ZZZZZZZZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), MsgInvalidCode)
}

func TestCredentialCache(t *testing.T) {
	repo := &fakeCredentialRepo{creds: map[int64]*model.AppointmentCredential{
		42: {AppointmentID: 42, VerificationCode: "A1B2C3D4"},
	}}
	verifier := newVerifier(repo, time.Now())

	for i := 0; i < 3; i++ {
		_, err := verifier.VerifyCode(context.Background(), 42, "A1B2C3D4")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, repo.credentialHits)
}
