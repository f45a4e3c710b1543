package verification

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/model"
	"github.com/daveynmdz-sti/wbhsms-cho-koronadal/internal/service/verification"
)

type stubAppointmentRepo struct {
	cred *model.AppointmentCredential
}

func (s *stubAppointmentRepo) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	return nil, sql.ErrNoRows
}

func (s *stubAppointmentRepo) GetCredential(ctx context.Context, id int64) (*model.AppointmentCredential, error) {
	if s.cred == nil || s.cred.AppointmentID != id {
		return nil, sql.ErrNoRows
	}
	return s.cred, nil
}

func (s *stubAppointmentRepo) FindIDByQRToken(ctx context.Context, token string) (int64, error) {
	return 0, nil
}

func (s *stubAppointmentRepo) TransitionStatus(ctx context.Context, ext sqlx.ExtContext, id int64, from, to model.AppointmentStatus, reason *string) (bool, error) {
	return false, nil
}

func (s *stubAppointmentRepo) ListForSweep(ctx context.Context, date time.Time, status model.AppointmentStatus) ([]*model.Appointment, error) {
	return nil, nil
}

func (s *stubAppointmentRepo) CountSweepable(ctx context.Context, date time.Time) (int64, error) {
	return 0, nil
}

func setupRouter(repo *stubAppointmentRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewHandler(verification.NewService(repo, nil)).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func doPost(t *testing.T, engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestVerifyCode_Accepted(t *testing.T) {
	engine := setupRouter(&stubAppointmentRepo{
		cred: &model.AppointmentCredential{AppointmentID: 42, VerificationCode: "A1B2C3D4"},
	})

	w := doPost(t, engine, "/api/v1/appointments/42/verify-code", `{"verification_code":"a1b2c3d4"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
}

func TestVerifyCode_RejectedIsStillHTTP200(t *testing.T) {
	engine := setupRouter(&stubAppointmentRepo{
		cred: &model.AppointmentCredential{AppointmentID: 42, VerificationCode: "A1B2C3D4"},
	})

	w := doPost(t, engine, "/api/v1/appointments/42/verify-code", `{"verification_code":"ZZZZZZZZ"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, verification.MsgInvalidCode, body["message"])
}

func TestVerifyQR_UnknownTokenRejected(t *testing.T) {
	token := "tok-42"
	engine := setupRouter(&stubAppointmentRepo{
		cred: &model.AppointmentCredential{AppointmentID: 42, QRToken: &token},
	})

	w := doPost(t, engine, "/api/v1/appointments/42/verify-qr", `{"qr_token":"forged"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, verification.MsgInvalidQR, body["message"])
}

func TestVerifyCode_UnknownAppointmentIs404(t *testing.T) {
	engine := setupRouter(&stubAppointmentRepo{})

	w := doPost(t, engine, "/api/v1/appointments/99/verify-code", `{"verification_code":"A1B2C3D4"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerifyCode_InvalidID(t *testing.T) {
	engine := setupRouter(&stubAppointmentRepo{})

	w := doPost(t, engine, "/api/v1/appointments/abc/verify-code", `{"verification_code":"A1B2C3D4"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyCode_MissingBodyField(t *testing.T) {
	engine := setupRouter(&stubAppointmentRepo{})

	w := doPost(t, engine, "/api/v1/appointments/42/verify-code", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
