package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vserve-ph/arta-backend/internal/common"
	"github.com/vserve-ph/arta-backend/internal/server/accounts"
	"github.com/vserve-ph/arta-backend/internal/server/feedback"
)

func (s *Server) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	ctx := c.Request.Context()
	res, err := s.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidCredentials):
			s.audit.Record(ctx, req.Email, clientAddr(c), c.Request.UserAgent(), false, "invalid credentials")
		case errors.Is(err, common.ErrAccountInactive):
			// Logged distinctly but reported to the caller exactly like a
			// bad password, so account existence cannot be probed.
			s.audit.Record(ctx, req.Email, clientAddr(c), c.Request.UserAgent(), false, "account inactive")
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	s.audit.Record(ctx, req.Email, clientAddr(c), c.Request.UserAgent(), true, "")
	c.JSON(http.StatusOK, gin.H{"token": res.Token, "user": res.Profile})
}

func (s *Server) createFeedback(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil || len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty payload"})
		return
	}

	f, err := s.feedback.Create(c.Request.Context(), payload)
	if err != nil {
		if errors.Is(err, feedback.ErrEmptyPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Empty payload"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save feedback"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": f.ID, "data": f.Payload})
}

func (s *Server) getFeedback(c *gin.Context) {
	f, err := s.feedback.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read feedback"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": f.ID, "data": f.Payload})
}

func (s *Server) listFeedback(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	items, err := s.feedback.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list feedbacks"})
		return
	}

	out := make([]gin.H, 0, len(items))
	for _, f := range items {
		out = append(out, gin.H{"id": f.ID, "data": f.Payload})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "items": out})
}

func (s *Server) listUsers(c *gin.Context) {
	views, err := s.accounts.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(views), "users": views})
}

type createUserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

func (s *Server) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	var role accounts.Role
	if req.Role != "" {
		r, ok := accounts.ParseRole(req.Role)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
			return
		}
		role = r
	}

	view, err := s.accounts.Create(c.Request.Context(), accounts.CreateParams{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       role,
		Department: req.Department,
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) getUser(c *gin.Context) {
	view, err := s.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read user"})
		return
	}
	c.JSON(http.StatusOK, view)
}

type updateUserRequest struct {
	Name       *string `json:"name"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
}

func (s *Server) updateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	params := accounts.UpdateParams{Name: req.Name, Department: req.Department}
	if req.Role != nil {
		r, ok := accounts.ParseRole(*req.Role)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
			return
		}
		params.Role = &r
	}

	view, err := s.accounts.Update(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
		return
	}
	c.JSON(http.StatusOK, view)
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// setUserStatus flips accounts between Active and Inactive. There is no
// delete endpoint; deactivation is the terminal administrative action.
func (s *Server) setUserStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	status := accounts.Status(req.Status)
	if status != accounts.StatusActive && status != accounts.StatusInactive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be Active or Inactive"})
		return
	}

	if err := s.accounts.SetStatus(c.Request.Context(), c.Param("id"), status); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": status})
}
