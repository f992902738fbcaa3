package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"mhp_backend_echo/internal/models"
	"mhp_backend_echo/internal/services"
)

func newAuthFixture(t *testing.T) (*AuthHandler, *gorm.DB, *fakeSMS) {
	t.Helper()
	db := newTestDB(t)
	sms := &fakeSMS{}
	otp := services.NewOTPService(db, sms)
	orders := services.NewOrderService(db)
	return NewAuthHandler(db, otp, orders, nil, testJWTSecret), db, sms
}

func postJSON(t *testing.T, handler echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := newTestEcho()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func seedAccount(t *testing.T, db *gorm.DB, verified bool) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{
		Username:     "amina",
		Email:        "amina@example.com",
		Phone:        "+255712345678",
		PasswordHash: string(hashed),
		Verified:     verified,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestRegister(t *testing.T) {
	handler, db, _ := newAuthFixture(t)

	rec := postJSON(t, handler.Register, `{
		"username": "amina",
		"email": "amina@example.com",
		"password": "secret123",
		"first_name": "Amina",
		"last_name": "Hassan",
		"phone": "+255712345678"
	}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, db.Preload("Groups").Where("username = ?", "amina").First(&user).Error)
	assert.False(t, user.Verified)
	require.Len(t, user.Groups, 1)
	assert.Equal(t, services.DefaultGroupName, user.Groups[0].Name)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	handler, db, _ := newAuthFixture(t)
	seedAccount(t, db, false)

	rec := postJSON(t, handler.Register, `{
		"username": "amina",
		"email": "other@example.com",
		"password": "secret123",
		"phone": "+255712345679"
	}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postJSON(t, handler.Register, `{
		"username": "other",
		"email": "amina@example.com",
		"password": "secret123",
		"phone": "+255712345679"
	}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = postJSON(t, handler.Register, `{
		"username": "other",
		"email": "other@example.com",
		"password": "secret123",
		"phone": "+255712345678"
	}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterRejectsInvalidPhone(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	rec := postJSON(t, handler.Register, `{
		"username": "amina",
		"email": "amina@example.com",
		"password": "secret123",
		"phone": "0712345678"
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginVerifiedUser(t *testing.T) {
	handler, db, _ := newAuthFixture(t)
	seedAccount(t, db, true)

	rec := postJSON(t, handler.Login, `{"username": "amina", "password": "secret123"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Login successfully.", resp.Detail)
	assert.NotEmpty(t, resp.Access)
	assert.NotEmpty(t, resp.Refresh)
}

func TestLoginUnverifiedUserGetsOTP(t *testing.T) {
	handler, db, sms := newAuthFixture(t)
	seedAccount(t, db, false)

	rec := postJSON(t, handler.Login, `{"username": "amina", "password": "secret123"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["otp_required"])
	assert.Equal(t, "+255712345678", resp["phone"])
	assert.Len(t, sms.sent, 1)

	var user models.User
	require.NoError(t, db.Where("username = ?", "amina").First(&user).Error)
	assert.NotNil(t, user.OTPCode)
}

func TestLoginWrongPassword(t *testing.T) {
	handler, db, _ := newAuthFixture(t)
	seedAccount(t, db, true)

	rec := postJSON(t, handler.Login, `{"username": "amina", "password": "wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyOTPFlow(t *testing.T) {
	handler, db, _ := newAuthFixture(t)
	seedAccount(t, db, false)

	rec := postJSON(t, handler.Login, `{"username": "amina", "password": "secret123"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var user models.User
	require.NoError(t, db.Where("username = ?", "amina").First(&user).Error)
	require.NotNil(t, user.OTPCode)

	rec = postJSON(t, handler.VerifyOTP,
		`{"phone": "+255712345678", "otp": "`+*user.OTPCode+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Access)

	require.NoError(t, db.Where("username = ?", "amina").First(&user).Error)
	assert.True(t, user.Verified)
	assert.Nil(t, user.OTPCode)
}

func TestVerifyOTPWrongCodeBurnsAttempt(t *testing.T) {
	handler, db, _ := newAuthFixture(t)
	seedAccount(t, db, false)

	rec := postJSON(t, handler.Login, `{"username": "amina", "password": "secret123"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = postJSON(t, handler.VerifyOTP, `{"phone": "+255712345678", "otp": "000000"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "2 attempts remaining")

	var user models.User
	require.NoError(t, db.Where("username = ?", "amina").First(&user).Error)
	assert.Equal(t, 2, user.MaxOTPTry)
	assert.False(t, user.Verified)
}

func TestRequestOTPUnknownPhone(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	rec := postJSON(t, handler.RequestOTP, `{"phone": "+255700000000"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// fakeThrottle allows a fixed number of sends per phone.
type fakeThrottle struct {
	budget int
	calls  map[string]int
}

func (f *fakeThrottle) AllowOTPSend(_ context.Context, phone string, _ time.Duration) (bool, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[phone]++
	return f.calls[phone] <= f.budget, nil
}

func TestRequestOTPCooldown(t *testing.T) {
	db := newTestDB(t)
	sms := &fakeSMS{}
	otp := services.NewOTPService(db, sms)
	handler := NewAuthHandler(db, otp, services.NewOrderService(db), &fakeThrottle{budget: 1}, testJWTSecret)
	seedAccount(t, db, false)

	rec := postJSON(t, handler.RequestOTP, `{"phone": "+255712345678"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, handler.RequestOTP, `{"phone": "+255712345678"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, sms.sent, 1)
}

func TestRequestResetOTPCooldown(t *testing.T) {
	db := newTestDB(t)
	sms := &fakeSMS{}
	otp := services.NewOTPService(db, sms)
	handler := NewAuthHandler(db, otp, services.NewOrderService(db), &fakeThrottle{budget: 1}, testJWTSecret)
	seedAccount(t, db, true)

	rec := postJSON(t, handler.RequestResetOTP, `{"phone": "+255712345678"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, handler.RequestResetOTP, `{"phone": "+255712345678"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, sms.sent, 1)
}

func TestResetPasswordFlow(t *testing.T) {
	handler, db, _ := newAuthFixture(t)
	seedAccount(t, db, true)

	rec := postJSON(t, handler.RequestResetOTP, `{"phone": "+255712345678"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, db.Where("username = ?", "amina").First(&user).Error)
	require.NotNil(t, user.OTPCode)
	assert.True(t, user.ResetOTP)

	rec = postJSON(t, handler.ResetPassword, `{
		"phone": "+255712345678",
		"otp": "`+*user.OTPCode+`",
		"password": "newsecret",
		"confirm_password": "newsecret"
	}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, handler.Login, `{"username": "amina", "password": "newsecret"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}
