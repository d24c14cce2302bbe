package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/tariel-x/referral/internal/accounts"
	"github.com/tariel-x/referral/internal/auth"
	"github.com/tariel-x/referral/internal/models"
	"github.com/tariel-x/referral/internal/store"
)

const (
	ctxUserID = "user_id"
	ctxEmail  = "email"
)

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
	Token   string       `json:"token"`
}

func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), accounts.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "User already exists"})
		case errors.Is(err, bcrypt.ErrPasswordTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password is too long"})
		default:
			h.internalError(c, "register", err)
		}
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.internalError(c, "issue token", err)
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{
		Message: "User created successfully",
		User:    user,
		Token:   token,
	})
}

func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	user, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.internalError(c, "login", err)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.internalError(c, "issue token", err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Message: "Login successful",
		User:    user,
		Token:   token,
	})
}

func (h *Handlers) Profile(c *gin.Context) {
	user, err := h.accounts.FindByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": msgUserNotFound})
			return
		}
		h.internalError(c, "profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// AuthMiddleware accepts "Authorization: Bearer <token>". A missing token is
// 401, a bad or expired one 403.
func (h *Handlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, status, msg := h.verify(auth.BearerToken(c.GetHeader("Authorization")))
		if claims == nil {
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxEmail, claims.Email)
		c.Next()
	}
}

func (h *Handlers) verify(token string) (*auth.Claims, int, string) {
	claims, err := h.tokens.Verify(token)
	switch {
	case err == nil:
		return claims, http.StatusOK, ""
	case errors.Is(err, auth.ErrMissingToken):
		return nil, http.StatusUnauthorized, "Access token required"
	default:
		return nil, http.StatusForbidden, "Invalid token"
	}
}
