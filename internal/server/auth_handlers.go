package server

import (
	"errors"
	"net/url"

	"taskhub/internal/featureflags"
	"taskhub/internal/models"
	"taskhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Public   *bool  `json:"public"`
}

// Signup handles POST /api/auth/signup and POST /api/users
// @Summary User signup
// @Description Register a new account and send the verification email
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{username=string,email=string,password=string,public=bool} true "Signup request"
// @Success 201 {object} object{message=string,user=models.AccountView,token=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := bindBody(c, "user", &req); err != nil {
		return nil
	}

	result, err := s.authService.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Public:   req.Public,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	body := fiber.Map{
		"message": "User created successfully. Please check your email to verify your account.",
		"user":    result.User.Account(),
	}
	if result.Token != "" {
		body["token"] = result.Token
	}
	return c.Status(fiber.StatusCreated).JSON(body)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate by email or username and return a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{login=string,password=string} true "Login credentials"
// @Success 200 {object} object{message=string,user=models.AccountView,token=string}
// @Failure 401 {object} object{error=string,needs_verification=bool}
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Login    string `json:"login"`
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := bindBody(c, "user", &req); err != nil {
		return nil
	}

	login := req.Login
	if login == "" {
		login = req.Email
	}
	if login == "" {
		login = req.Username
	}

	result, err := s.authService.Login(c.UserContext(), service.LoginInput{Login: login, Password: req.Password})
	if errors.Is(err, service.ErrEmailNotVerified) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":              service.ErrEmailNotVerified.Message,
			"needs_verification": true,
		})
	}
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user":    result.User.Account(),
		"token":   result.Token,
	})
}

// VerifyEmail handles POST /api/auth/verify_email
func (s *Server) VerifyEmail(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := bindBody(c, "", &req); err != nil {
		return nil
	}

	result, err := s.authService.VerifyEmail(c.UserContext(), req.Token)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Email verified successfully",
		"user":    result.User.Account(),
		"token":   result.Token,
	})
}

// ResendVerification handles POST /api/auth/resend_verification
func (s *Server) ResendVerification(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := bindBody(c, "", &req); err != nil {
		return nil
	}

	if err := s.authService.ResendVerification(c.UserContext(), req.Email); err != nil {
		return mapServiceError(c, err)
	}
	return message(c, fiber.StatusOK, "Verification email sent")
}

// ForgotPassword handles POST /api/auth/forgot_password
func (s *Server) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := bindBody(c, "", &req); err != nil {
		return nil
	}

	if err := s.authService.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return mapServiceError(c, err)
	}
	return message(c, fiber.StatusOK, "Password reset email sent")
}

// ResetPassword handles POST /api/auth/reset_password
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := bindBody(c, "", &req); err != nil {
		return nil
	}

	if err := s.authService.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
		return mapServiceError(c, err)
	}
	return message(c, fiber.StatusOK, "Password reset successfully")
}

// Me handles GET /api/auth/me
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{user=models.AccountView}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.authService.CurrentUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"user": user.Account()})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.authService.Logout(c.UserContext(), tokenClaims(c)); err != nil {
		return mapServiceError(c, err)
	}
	return message(c, fiber.StatusOK, "Logged out successfully")
}

func (s *Server) googleEnabled() bool {
	return s.oauthService != nil && s.featureFlags.EnabledGlobally(featureflags.OAuthGoogle)
}

// GoogleLogin handles GET /api/auth/google by redirecting to the consent screen.
func (s *Server) GoogleLogin(c *fiber.Ctx) error {
	if !s.googleEnabled() {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundMessage("Google sign-in is not configured"))
	}
	consentURL, err := s.oauthService.BeginGoogle(c.UserContext())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Redirect(consentURL, fiber.StatusFound)
}

// GoogleCallback handles GET /api/auth/google/callback. Success and failure
// both land on the frontend; failures carry an error query parameter.
func (s *Server) GoogleCallback(c *fiber.Ctx) error {
	if !s.googleEnabled() {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundMessage("Google sign-in is not configured"))
	}

	target := s.config.FrontendURL + "/auth/callback"
	if oauthErr := c.Query("error"); oauthErr != "" {
		return c.Redirect(target+"?error="+url.QueryEscape(oauthErr), fiber.StatusFound)
	}

	result, err := s.oauthService.CompleteGoogle(c.UserContext(), c.Query("code"), c.Query("state"))
	if err != nil {
		var appErr *models.AppError
		msg := "Google sign-in failed"
		if errors.As(err, &appErr) && appErr.Code != models.CodeInternal {
			msg = appErr.Message
		}
		return c.Redirect(target+"?error="+url.QueryEscape(msg), fiber.StatusFound)
	}
	return c.Redirect(target+"?token="+url.QueryEscape(result.Token), fiber.StatusFound)
}
