package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
)

// sessionView shows the answer to instructors only.
type sessionView struct {
	attendance.Session
	Answer string `json:"answer,omitempty"`
}

func viewSession(s attendance.Session, instructor bool) sessionView {
	v := sessionView{Session: s}
	if instructor {
		v.Answer = s.Answer
	}
	return v
}

func (h *Handler) createSession(c *gin.Context) {
	var req struct {
		Group  string `json:"group" form:"group" binding:"required"`
		Date   string `json:"date" form:"date" binding:"required"`
		Answer string `json:"answer" form:"answer"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	sess, err := h.svc.CreateSession(c.Request.Context(), req.Group, req.Date, req.Answer)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewSession(sess, true))
}

func (h *Handler) listSessions(c *gin.Context) {
	var groups []string
	if g := c.Query("group"); g != "" {
		groups = append(groups, g)
	}
	sessions, err := h.svc.ListSessions(c.Request.Context(), groups...)
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, viewSession(s, true))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

func (h *Handler) getSession(c *gin.Context) {
	sess, err := h.svc.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewSession(sess, auth.CurrentPrincipal(c).Instructor))
}

func (h *Handler) deleteSession(c *gin.Context) {
	if err := h.svc.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) currentSession(c *gin.Context) {
	p, ok := h.principalProfile(c)
	if !ok {
		return
	}
	sess, err := h.svc.CurrentSession(c.Request.Context(), p, h.svc.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":      viewSession(sess, false),
		"window_opens": sess.ScheduledAt.Add(-h.svc.Window()),
		"window_ends":  sess.ScheduledAt.Add(h.svc.Window()),
	})
}

// attend accepts the three values as strings, from JSON or a form post.
func (h *Handler) attend(c *gin.Context) {
	var req struct {
		Answer    string `json:"answer" form:"answer"`
		Latitude  string `json:"latitude" form:"latitude"`
		Longitude string `json:"longitude" form:"longitude"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	rec, err := h.svc.Submit(c.Request.Context(), auth.CurrentPrincipal(c).ProfileID, c.Param("id"),
		req.Answer, req.Latitude, req.Longitude)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) myAttendance(c *gin.Context) {
	rows, err := h.svc.StudentAttendance(c.Request.Context(), auth.CurrentPrincipal(c).ProfileID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": rows})
}

func (h *Handler) myParticipation(c *gin.Context) {
	p, ok := h.principalProfile(c)
	if !ok {
		return
	}
	b, err := h.svc.Breakdown(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
