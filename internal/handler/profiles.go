package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

func (h *Handler) issueTokens(ctx context.Context, p attendance.Profile) (tokenResponse, error) {
	pair, err := auth.Issue(auth.Principal{ProfileID: p.ID, Instructor: p.IsInstructor},
		h.cfg.Issuer, h.cfg.SigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := h.tokens.SaveRefreshToken(ctx, p.ID, pair.RefreshToken, pair.RefreshExp); err != nil {
		return tokenResponse{}, fmt.Errorf("save refresh token: %w", err)
	}
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExp.Unix(),
	}, nil
}

func (h *Handler) listGroups(c *gin.Context) {
	table := h.svc.Groups()
	c.JSON(http.StatusOK, gin.H{"timezone": table.Location().String(), "groups": table.Groups})
}

func (h *Handler) createProfile(c *gin.Context) {
	var req struct {
		FirstName    string `json:"first_name" binding:"required"`
		LastName     string `json:"last_name" binding:"required"`
		Email        string `json:"email" binding:"required"`
		IsInstructor bool   `json:"is_instructor"`
		Lecture      string `json:"lecture"`
		Discussion   string `json:"discussion"`
		SignupCode   string `json:"signup_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.IsInstructor && (h.cfg.SignupCode == "" || req.SignupCode != h.cfg.SignupCode) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "instructor sign-up requires a valid code"})
		return
	}

	p, err := h.svc.CreateProfile(c.Request.Context(), attendance.Profile{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		IsInstructor: req.IsInstructor,
		Lecture:      req.Lecture,
		Discussion:   req.Discussion,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	tokens, err := h.issueTokens(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"profile": p, "tokens": tokens})
}

// refreshTokens rotates a refresh token. Each refresh token is accepted once.
func (h *Handler) refreshTokens(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	claims, err := auth.ParseRefresh(req.RefreshToken, h.cfg.SigningKey, h.cfg.Issuer)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	ok, err := h.tokens.ConsumeRefreshToken(c.Request.Context(), req.RefreshToken, h.svc.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "refresh token revoked or expired"})
		return
	}

	// The role is taken from the profile, not from the old token.
	p, err := h.svc.GetProfile(c.Request.Context(), claims.Subject)
	if err != nil {
		writeError(c, err)
		return
	}
	tokens, err := h.issueTokens(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) me(c *gin.Context) {
	p, ok := h.principalProfile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p, "role": p.String()})
}
