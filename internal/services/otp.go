package services

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"gorm.io/gorm"

	"mhp_backend_echo/internal/models"
)

const (
	otpTTL         = 2 * time.Minute
	otpMaxAttempts = 3
	otpLockout     = 10 * time.Minute
)

// OTPService generates, validates and rate-limits one-time passcodes.
// Codes are 6 digits, live for two minutes and allow three attempts
// before a ten-minute lockout. The clock is a field so lockout and
// expiry behavior are testable.
type OTPService struct {
	db  *gorm.DB
	sms SMSSender
	now func() time.Time
}

func NewOTPService(db *gorm.DB, sms SMSSender) *OTPService {
	return &OTPService{db: db, sms: sms, now: time.Now}
}

// GenerateAndSend draws a fresh code, resets the attempt budget and any
// lockout, persists the user and dispatches the code by SMS. A delivery
// failure is logged but never fails the call; a user without a phone
// number does.
func (s *OTPService) GenerateAndSend(user *models.User, resetOTP bool) (bool, string) {
	if user.Phone == "" {
		return false, "User does not have phone number"
	}

	code := fmt.Sprintf("%06d", rand.Intn(900000)+100000)
	expiry := s.now().Add(otpTTL)

	user.OTPCode = &code
	user.OTPExpiry = &expiry
	user.ResetOTP = resetOTP
	user.MaxOTPTry = otpMaxAttempts
	user.OTPMaxOut = nil

	if err := s.db.Save(user).Error; err != nil {
		log.Printf("Failed to persist OTP for %s: %v", user.Username, err)
		return false, "Failed to store OTP"
	}

	if err := s.sms.Send(user.Phone, fmt.Sprintf("Your OTP is: %s", code)); err != nil {
		log.Printf("Failed to send OTP to %s: %v", user.Phone, err)
	}

	return true, "OTP sent"
}

// VerifyMaxTime reports false while a lockout is set and still in the
// future. Callers check this before expiry and attempt checks.
func (s *OTPService) VerifyMaxTime(user *models.User) bool {
	if user.OTPMaxOut != nil && s.now().Before(*user.OTPMaxOut) {
		log.Printf("Too many OTP attempts for %s, locked until %s", user.Username, user.OTPMaxOut)
		return false
	}
	return true
}

// VerifyExpiry reports false once the stored code's expiry has passed.
func (s *OTPService) VerifyExpiry(user *models.User) bool {
	if user.OTPExpiry != nil && s.now().After(*user.OTPExpiry) {
		log.Printf("OTP expired for %s", user.Username)
		return false
	}
	return true
}

// CheckMaxLimit starts a lockout once the attempt budget is exhausted and
// resets the budget for the next window. Returns true when the caller
// must block the current attempt.
func (s *OTPService) CheckMaxLimit(user *models.User) bool {
	if user.MaxOTPTry <= 0 {
		maxOut := s.now().Add(otpLockout)
		user.OTPMaxOut = &maxOut
		user.MaxOTPTry = otpMaxAttempts
		if err := s.db.Save(user).Error; err != nil {
			log.Printf("Failed to persist OTP lockout for %s: %v", user.Username, err)
		}
		return true
	}
	return false
}

// Verify matches the submitted code exactly against the stored one. On a
// match the OTP state is cleared; a mismatch leaves the state untouched —
// decrementing the attempt budget is the caller's explicit step.
func (s *OTPService) Verify(user *models.User, code string) bool {
	if user.OTPCode == nil || *user.OTPCode != code {
		log.Printf("Invalid OTP for %s", user.Username)
		return false
	}
	s.clearOTP(user)
	return true
}

// DecreaseMaxRetries burns one attempt and returns the message shown to
// the client.
func (s *OTPService) DecreaseMaxRetries(user *models.User) string {
	user.MaxOTPTry--
	if err := s.db.Save(user).Error; err != nil {
		log.Printf("Failed to persist OTP retry count for %s: %v", user.Username, err)
	}
	return fmt.Sprintf("Incorrect OTP. %d attempts remaining.", user.MaxOTPTry)
}

// VerifyUser flips the verification flag, which is irreversible, and
// sends a confirmation SMS. Returns false on any failure.
func (s *OTPService) VerifyUser(user *models.User) bool {
	user.Verified = true
	if err := s.db.Save(user).Error; err != nil {
		log.Printf("Failed to verify user %s: %v", user.Username, err)
		return false
	}

	msg := fmt.Sprintf("Congratulations, account with username %s verified successfully", user.Username)
	if err := s.sms.Send(user.Phone, msg); err != nil {
		log.Printf("Failed to send verification SMS to %s: %v", user.Phone, err)
		return false
	}
	return true
}

func (s *OTPService) clearOTP(user *models.User) {
	user.OTPCode = nil
	user.OTPExpiry = nil
	user.MaxOTPTry = otpMaxAttempts
	user.OTPMaxOut = nil
	if err := s.db.Save(user).Error; err != nil {
		log.Printf("Failed to clear OTP state for %s: %v", user.Username, err)
	}
}
