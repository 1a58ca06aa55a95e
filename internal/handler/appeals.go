package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"geoattend/internal/attendance"
	"geoattend/internal/auth"
)

func (h *Handler) fileAppeal(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" form:"reason"`
	}
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.svc.FileAppeal(c.Request.Context(), auth.CurrentPrincipal(c).ProfileID, c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) myAppeals(c *gin.Context) {
	appeals, err := h.svc.ListAppeals(c.Request.Context(), attendance.AppealFilter{StudentID: auth.CurrentPrincipal(c).ProfileID})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appeals": appeals})
}

func (h *Handler) listAppeals(c *gin.Context) {
	appeals, err := h.svc.ListAppeals(c.Request.Context(), attendance.AppealFilter{
		Status:    attendance.AppealStatus(c.Query("status")),
		StudentID: c.Query("student_id"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"appeals": appeals})
}

func (h *Handler) approveAppeal(c *gin.Context) {
	a, err := h.svc.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) rejectAppeal(c *gin.Context) {
	a, err := h.svc.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) listStudents(c *gin.Context) {
	students, err := h.svc.Students(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (h *Handler) reportCSV(c *gin.Context) {
	rows, err := h.svc.Report(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="participation.csv"`)
	c.Status(http.StatusOK)
	if err := attendance.WriteReportCSV(c.Writer, rows); err != nil {
		_ = c.Error(err)
	}
}

func (h *Handler) auditLog(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	entries, err := h.svc.AuditLog(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
