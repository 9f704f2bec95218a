package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"busticket/internal/http/middleware"
	"busticket/internal/utils"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	token, agent, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	utils.LogEvent(middleware.GetRequestID(c), "auth", "login", "agent="+agent.Email)
	c.JSON(http.StatusOK, gin.H{"token": token, "agent": agent})
}

type createAgentRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateAgent handles POST /admin/agents.
func (h *Handlers) CreateAgent(c *gin.Context) {
	var req createAgentRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	agent, err := h.Auth.CreateAgent(c.Request.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}
