package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"mhp_backend_echo/internal/middleware"
	"mhp_backend_echo/internal/models"
	"mhp_backend_echo/internal/services"
)

const otpResendCooldown = time.Minute

// OTPThrottle rate-limits OTP dispatches per phone number. Implemented
// by services.RedisCache; a nil throttle disables the cooldown.
type OTPThrottle interface {
	AllowOTPSend(ctx context.Context, phone string, window time.Duration) (bool, error)
}

// AuthHandler handles registration, login and the OTP verification flows.
type AuthHandler struct {
	db       *gorm.DB
	otp      *services.OTPService
	orders   *services.OrderService
	throttle OTPThrottle
	secret   string
}

func NewAuthHandler(db *gorm.DB, otp *services.OTPService, orders *services.OrderService, throttle OTPThrottle, secret string) *AuthHandler {
	return &AuthHandler{db: db, otp: otp, orders: orders, throttle: throttle, secret: secret}
}

type RegisterRequest struct {
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone" validate:"required"`
	Location  string `json:"location"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type OTPVerificationRequest struct {
	Phone string `json:"phone" validate:"required"`
	OTP   string `json:"otp" validate:"required,max=6"`
}

type RequestOTPRequest struct {
	Phone string `json:"phone" validate:"required"`
}

type ResetPasswordRequest struct {
	Phone           string `json:"phone" validate:"required"`
	OTP             string `json:"otp" validate:"required,max=6"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password" validate:"required"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// Register creates a new account, assigns the default group and fires
// the group-assigned event so a billing order is generated right away.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if !services.ValidPhone(req.Phone) {
		return Respond(c, http.StatusBadRequest, "Invalid phone number.")
	}

	var existing models.User
	if err := h.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		return Respond(c, http.StatusConflict, "User with the same username already exists.")
	}
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return Respond(c, http.StatusConflict, "User with the same email already exists.")
	}
	if err := h.db.Where("phone = ?", req.Phone).First(&existing).Error; err == nil {
		return Respond(c, http.StatusConflict, "User with the same phone already exists.")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to hash the password.")
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Location:     req.Location,
		PasswordHash: string(hashed),
	}
	if err := h.db.Create(&user).Error; err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to create user.")
	}

	var group models.Group
	if err := h.db.Where("name = ?", services.DefaultGroupName).First(&group).Error; err == nil {
		if err := h.db.Model(&user).Association("Groups").Append(&group); err == nil {
			user.Groups = []models.Group{group}
			h.orders.HandleGroupAssigned(&user)
		}
	}

	return Respond(c, http.StatusCreated, "Account created successfully, please login")
}

// Login checks credentials. A verified account gets a token pair; an
// unverified one gets an OTP on its phone and a 202 telling the client
// to continue with verification.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		return Respond(c, http.StatusUnauthorized, "Invalid credentials.")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return Respond(c, http.StatusUnauthorized, "Invalid credentials.")
	}

	if user.Verified {
		access, refresh, err := h.issueTokens(&user)
		if err != nil {
			return Respond(c, http.StatusInternalServerError, "Failed to generate token.")
		}
		return RespondAuth(c, http.StatusOK, "Login successfully.", access, refresh, &user)
	}

	sent, msg := h.otp.GenerateAndSend(&user, false)
	if !sent {
		return Respond(c, http.StatusUnauthorized,
			"Account not verified, but could not send OTP ("+msg+"). Please contact support.")
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"detail":       "OTP sent to your phone for verification.",
		"phone":        user.Phone,
		"otp_required": true,
	})
}

// VerifyOTP checks a submitted code. The order of checks matters:
// lockout first, then expiry, then the attempt budget, then the code
// itself. A mismatch burns one attempt.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req OTPVerificationRequest
	if err := c.Bind(&req); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userByPhone(c, req.Phone)
	if user == nil {
		return err
	}

	if !h.otp.VerifyMaxTime(user) {
		return Respond(c, http.StatusBadRequest, "Too many OTP attempts. Try again later. (after 10 minutes)")
	}
	if !h.otp.VerifyExpiry(user) {
		return Respond(c, http.StatusBadRequest, "OTP expired")
	}
	if h.otp.CheckMaxLimit(user) {
		return Respond(c, http.StatusBadRequest, "Incorrect OTP. Too many attempts. Please try again later.")
	}
	if !h.otp.Verify(user, req.OTP) {
		msg := h.otp.DecreaseMaxRetries(user)
		return Respond(c, http.StatusBadRequest, msg)
	}

	access, refresh, err := h.issueTokens(user)
	if err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to generate token.")
	}

	msg := "OTP verified successfully. and user account verified successfully"
	if !h.otp.VerifyUser(user) {
		msg = "OTP verified successfully. but user account not successfully verified"
	}
	return RespondAuth(c, http.StatusOK, msg, access, refresh, user)
}

// RequestOTP sends a fresh code to an already-registered phone number.
func (h *AuthHandler) RequestOTP(c echo.Context) error {
	var req RequestOTPRequest
	if err := c.Bind(&req); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.db.Where("phone = ?", req.Phone).First(&user).Error; err != nil {
		return Respond(c, http.StatusNotFound, "User not found.")
	}

	if !h.allowOTPSend(c, user.Phone) {
		return Respond(c, http.StatusBadRequest, "An OTP was sent recently. Please wait before requesting another.")
	}

	if sent, msg := h.otp.GenerateAndSend(&user, false); !sent {
		return Respond(c, http.StatusBadRequest, msg)
	}
	return Respond(c, http.StatusOK, "New OTP sent successfully.")
}

// RequestResetOTP starts the password-reset flow by sending a reset code.
func (h *AuthHandler) RequestResetOTP(c echo.Context) error {
	var req RequestOTPRequest
	if err := c.Bind(&req); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userByPhone(c, req.Phone)
	if user == nil {
		return err
	}

	if !h.allowOTPSend(c, user.Phone) {
		return Respond(c, http.StatusBadRequest, "An OTP was sent recently. Please wait before requesting another.")
	}

	if sent, _ := h.otp.GenerateAndSend(user, true); !sent {
		return Respond(c, http.StatusBadRequest, "Fail to request token Please contact support.")
	}
	return RespondData(c, http.StatusOK, "OTP sent to your phone for verification.", 1, user)
}

// ResetPassword sets a new password after a successful reset-OTP check.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userByPhone(c, req.Phone)
	if user == nil {
		return err
	}

	if !h.otp.VerifyMaxTime(user) {
		return Respond(c, http.StatusBadRequest, "Too many OTP attempts. Try again later. (after 10 minutes)")
	}
	if !h.otp.VerifyExpiry(user) {
		return Respond(c, http.StatusBadRequest, "OTP expired")
	}
	if h.otp.CheckMaxLimit(user) {
		return Respond(c, http.StatusBadRequest, "Incorrect OTP. Too many attempts. Please try again later.")
	}
	if !h.otp.Verify(user, req.OTP) {
		msg := h.otp.DecreaseMaxRetries(user)
		return Respond(c, http.StatusBadRequest, msg)
	}

	if req.Password != req.ConfirmPassword {
		return Respond(c, http.StatusBadRequest, "Please make sure two password match.")
	}
	if err := h.changePassword(user, req.Password); err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to reset password.")
	}
	return Respond(c, http.StatusOK, "Password reset successfully")
}

// ChangePassword lets an authenticated user rotate their password.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user := middleware.UserFromContext(c)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return Respond(c, http.StatusBadRequest, "Invalid current password")
	}
	if req.Password != req.ConfirmPassword {
		return Respond(c, http.StatusBadRequest, "Passwords do not match")
	}
	if err := h.changePassword(user, req.Password); err != nil {
		return Respond(c, http.StatusInternalServerError, "Failed to change password.")
	}
	return Respond(c, http.StatusOK, "Password changed successfully")
}

// allowOTPSend checks the per-phone dispatch cooldown. Throttle errors
// fail open so a cache outage never blocks verification.
func (h *AuthHandler) allowOTPSend(c echo.Context, phone string) bool {
	if h.throttle == nil {
		return true
	}
	allowed, err := h.throttle.AllowOTPSend(c.Request().Context(), phone, otpResendCooldown)
	if err != nil {
		return true
	}
	return allowed
}

// userByPhone resolves a phone number to exactly one user. The returned
// error is the already-written response for the failure cases.
func (h *AuthHandler) userByPhone(c echo.Context, phone string) (*models.User, error) {
	var users []models.User
	if err := h.db.Where("phone = ?", phone).Find(&users).Error; err != nil {
		return nil, Respond(c, http.StatusInternalServerError, "Failed to look up user.")
	}
	if len(users) == 0 {
		return nil, Respond(c, http.StatusBadRequest, "No user found with the given phone number")
	}
	if len(users) > 1 {
		return nil, Respond(c, http.StatusBadRequest, "The phone number have more than one account, contact system admin")
	}
	return &users[0], nil
}

func (h *AuthHandler) changePassword(user *models.User, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashed)
	user.ResetOTP = false
	return h.db.Save(user).Error
}

func (h *AuthHandler) issueTokens(user *models.User) (string, string, error) {
	now := time.Now()

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"uuid":     user.UUID,
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(24 * time.Hour).Unix(),
	})
	accessString, err := access.SignedString([]byte(h.secret))
	if err != nil {
		return "", "", err
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"typ":     "refresh",
		"iat":     now.Unix(),
		"exp":     now.Add(7 * 24 * time.Hour).Unix(),
	})
	refreshString, err := refresh.SignedString([]byte(h.secret))
	if err != nil {
		return "", "", err
	}

	return accessString, refreshString, nil
}
