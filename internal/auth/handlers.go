package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers exposes account operations over HTTP.
type Handlers struct {
	manager      *Manager
	createWallet func(ctx context.Context, ownerID, email string) error
}

// NewHandlers creates auth HTTP handlers. createWallet runs after a
// successful registration; pass nil to skip wallet provisioning.
func NewHandlers(manager *Manager, createWallet func(ctx context.Context, ownerID, email string) error) *Handlers {
	return &Handlers{manager: manager, createWallet: createWallet}
}

// RegisterPublicRoutes registers the unauthenticated auth routes.
func (h *Handlers) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/auth/register", h.register)
	r.POST("/auth/login", h.login)
}

// RegisterProtectedRoutes registers routes that require a valid token.
func (h *Handlers) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/auth/me", h.me)
}

// RegisterAdminRoutes registers the admin user-management routes.
func (h *Handlers) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/admin/users", h.listUsers)
	r.PUT("/admin/users/:id", h.updateUser)
	r.DELETE("/admin/users/:id", h.deleteUser)
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, token, err := h.manager.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		case errors.Is(err, ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "registration failed"})
		}
		return
	}

	if h.createWallet != nil {
		if err := h.createWallet(c.Request.Context(), user.ID, user.Email); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to provision wallet"})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, token, err := h.manager.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (h *Handlers) me(c *gin.Context) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	user, err := h.manager.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handlers) listUsers(c *gin.Context) {
	users, err := h.manager.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	if users == nil {
		users = []*User{}
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type updateUserRequest struct {
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (h *Handlers) updateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.manager.UpdateUser(c.Request.Context(), c.Param("id"), req.Role, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
		}
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handlers) deleteUser(c *gin.Context) {
	claims, _ := ClaimsFromContext(c)

	err := h.manager.DeleteUser(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrSelfDelete):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete user"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
