// Package handler exposes the attendance service over HTTP.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/httpmiddleware"
)

// Config carries the token settings handlers need.
type Config struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// SignupCode must accompany instructor sign-ups. Empty disables them.
	SignupCode string
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler holds the dependencies of every route.
type Handler struct {
	svc     *attendance.Service
	tokens  attendance.TokenStore
	limiter httpmiddleware.Limiter
	health  map[string]HealthCheck
	cfg     Config
}

// New creates a handler. limiter may be nil to disable rate limiting.
func New(svc *attendance.Service, tokens attendance.TokenStore, limiter httpmiddleware.Limiter, health map[string]HealthCheck, cfg Config) *Handler {
	return &Handler{svc: svc, tokens: tokens, limiter: limiter, health: health, cfg: cfg}
}

// Register mounts all routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.healthz)

	var limit []gin.HandlerFunc
	if h.limiter != nil {
		limit = append(limit, httpmiddleware.RateLimit(h.limiter))
	}

	public := r.Group("/v1", limit...)
	public.GET("/groups", h.listGroups)
	public.POST("/profiles", h.createProfile)
	public.POST("/tokens/refresh", h.refreshTokens)

	authed := r.Group("/v1", append([]gin.HandlerFunc{auth.Authenticate(h.cfg.SigningKey, h.cfg.Issuer)}, limit...)...)

	anyone := authed.Group("", auth.Require(auth.RoleAny))
	anyone.GET("/me", h.me)
	anyone.GET("/sessions/:id", h.getSession)

	student := authed.Group("", auth.Require(auth.RoleStudent))
	student.GET("/me/sessions/current", h.currentSession)
	student.GET("/me/attendance", h.myAttendance)
	student.GET("/me/participation", h.myParticipation)
	student.GET("/me/appeals", h.myAppeals)
	student.POST("/sessions/:id/attend", h.attend)
	student.POST("/sessions/:id/appeals", h.fileAppeal)

	instructor := authed.Group("", auth.Require(auth.RoleInstructor))
	instructor.POST("/sessions", h.createSession)
	instructor.GET("/sessions", h.listSessions)
	instructor.DELETE("/sessions/:id", h.deleteSession)
	instructor.GET("/appeals", h.listAppeals)
	instructor.POST("/appeals/:id/approve", h.approveAppeal)
	instructor.POST("/appeals/:id/reject", h.rejectAppeal)
	instructor.GET("/students", h.listStudents)
	instructor.GET("/report.csv", h.reportCSV)
	instructor.GET("/audit", h.auditLog)
}

func (h *Handler) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.health {
		healthy := check(c.Request.Context())
		body[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, attendance.ErrMalformedInput),
		errors.Is(err, attendance.ErrInvalidGroup),
		errors.Is(err, attendance.ErrInvalidDate):
		status = http.StatusBadRequest
	case errors.Is(err, attendance.ErrPermission),
		errors.Is(err, attendance.ErrNotEnrolled):
		status = http.StatusForbidden
	case errors.Is(err, attendance.ErrNotFound),
		errors.Is(err, attendance.ErrNoActiveSession):
		status = http.StatusNotFound
	case errors.Is(err, attendance.ErrAlreadySubmitted),
		errors.Is(err, attendance.ErrAlreadyAttended),
		errors.Is(err, attendance.ErrAppealClosed),
		errors.Is(err, attendance.ErrSubmissionInProgress):
		status = http.StatusConflict
	case errors.Is(err, attendance.ErrOutsideWindow),
		errors.Is(err, attendance.ErrAppealTooEarly):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// principalProfile loads the profile behind the authenticated caller.
func (h *Handler) principalProfile(c *gin.Context) (attendance.Profile, bool) {
	p, err := h.svc.GetProfile(c.Request.Context(), auth.CurrentPrincipal(c).ProfileID)
	if err != nil {
		writeError(c, err)
		return attendance.Profile{}, false
	}
	return p, true
}
