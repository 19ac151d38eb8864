package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"internmatch/internal/middleware"
	"internmatch/internal/otp"
	"internmatch/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for the OTP-gated credential
// lifecycle.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Post("/register", h.HandleRegister)
	router.Post("/verifyOtp/:token", h.HandleVerifyOtp)
	router.Post("/login", h.HandleLogin)
	router.Post("/forget", h.HandleForgetPassword)
	router.Post("/reset-password/:token", h.HandleResetPassword)
	router.Get("/logout", auth, h.HandleLogout)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// HandleRegister starts an OTP-gated registration and returns the
// bearer token for the verify step. The code travels only by email.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing register request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	token, err := h.authService.BeginRegistration(c.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		log.Printf("Error starting registration for %s: %v", req.Email, err)
		if errors.Is(err, services.ErrDuplicateAccount) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "An account with this email already exists",
			})
		}
		if errors.Is(err, services.ErrEmailDelivery) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Failed to send OTP",
				"error":   err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not start registration",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "OTP sent successfully. Please verify to complete registration.",
		"token":   token,
	})
}

// otpField accepts the code as either a JSON string or a JSON number.
type otpField string

func (o *otpField) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*o = otpField(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = otpField(s)
	return nil
}

// VerifyOtpRequest represents the verify step body.
type VerifyOtpRequest struct {
	OTP otpField `json:"otp"`
}

// HandleVerifyOtp completes registration: a correct code persists the
// user and issues a session.
func (h *AuthHandler) HandleVerifyOtp(c *fiber.Ctx) error {
	token := c.Params("token")

	var req VerifyOtpRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if req.OTP == "" || token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "OTP and token are required",
		})
	}

	user, session, err := h.authService.CompleteRegistration(c.Context(), token, string(req.OTP))
	if err != nil {
		log.Printf("Error verifying registration OTP: %v", err)
		if isOTPFailure(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid or expired OTP",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not complete registration",
			"error":   err.Error(),
		})
	}

	h.setSessionCookie(c, session)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":    user,
		"message": "User registered successfully",
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin authenticates a user and sets the session cookie. The
// failure message never reveals whether the email exists.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing login request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	user, session, err := h.authService.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Email or Password Incorrect.",
		})
	}

	h.setSessionCookie(c, session)
	return c.JSON(fiber.Map{
		"user":    user,
		"message": "Logged In",
	})
}

// ForgetRequest represents the request body for a password reset.
type ForgetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleForgetPassword starts an OTP-gated password reset for an
// existing account.
func (h *AuthHandler) HandleForgetPassword(c *fiber.Ctx) error {
	var req ForgetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	token, err := h.authService.BeginPasswordReset(c.Context(), req.Email)
	if err != nil {
		log.Printf("Error starting password reset for %s: %v", req.Email, err)
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "No user found",
			})
		}
		if errors.Is(err, services.ErrEmailDelivery) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Failed to send OTP",
				"error":   err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not start password reset",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "OTP sent successfully.",
		"token":   token,
	})
}

// ResetPasswordRequest carries the code and replacement password for
// the reset verify step.
type ResetPasswordRequest struct {
	OTP      otpField `json:"otp"`
	Password string   `json:"password" validate:"required,min=6"`
}

// HandleResetPassword completes a password reset. No session is issued.
func (h *AuthHandler) HandleResetPassword(c *fiber.Ctx) error {
	token := c.Params("token")

	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Password is required",
		})
	}
	if req.OTP == "" || token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "OTP and token are required",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	if err := h.authService.CompletePasswordReset(c.Context(), token, string(req.OTP), req.Password); err != nil {
		log.Printf("Error verifying reset OTP: %v", err)
		if isOTPFailure(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid or expired OTP",
			})
		}
		if errors.Is(err, services.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not reset password",
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Password reset successful",
	})
}

// HandleLogout clears the session cookie. The token itself stays valid
// until natural expiry (stateless sessions).
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.JSON(fiber.Map{
		"message": "Logged out successfully",
	})
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, session string) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    session,
		Expires:  time.Now().Add(h.authService.SessionTTL()),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

// isOTPFailure reports whether the error is one of the token/ticket
// verification failures. They all render as the same generic message so
// responses do not leak which check failed.
func isOTPFailure(err error) bool {
	return errors.Is(err, services.ErrInvalidToken) ||
		errors.Is(err, otp.ErrNoTicket) ||
		errors.Is(err, otp.ErrExpired) ||
		errors.Is(err, otp.ErrCodeMismatch)
}

// validationFailed renders validator errors in a uniform 400 body.
func validationFailed(c *fiber.Ctx, err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
