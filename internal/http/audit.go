package http

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	auditRepo "github.com/mrlokans/coursemarket/internal/database/audit"
	"github.com/mrlokans/coursemarket/internal/entities"
	"github.com/mrlokans/coursemarket/internal/metrics"
)

type AuditController struct {
	audit   AuditLog
	metrics *metrics.Metrics
}

func NewAuditController(audit AuditLog, m *metrics.Metrics) *AuditController {
	return &AuditController{audit: audit, metrics: m}
}

// GetAuditEvents returns paginated audit events as JSON
// GET /api/admin/audit?page=&limit=&type=&user_id=
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}
	userID, ok := parseOptionalQueryID(c, "user_id")
	if !ok {
		return
	}

	q := auditRepo.Query{
		EventType: entities.AuditEventType(c.Query("type")),
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}
	if userID != nil {
		q.UserID = *userID
	}

	events, total, err := ac.audit.ListEvents(c.Request.Context(), q)
	if err != nil {
		log.Printf("http: degraded read (audit events): %v", err)
		ac.metrics.DegradedRead(c.FullPath())
		c.JSON(http.StatusOK, gin.H{
			"data":     []entities.AuditEvent{},
			"degraded": true,
		})
		return
	}
	if events == nil {
		events = []entities.AuditEvent{}
	}

	totalPages := (int(total) + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	c.JSON(http.StatusOK, gin.H{
		"data":         events,
		"page":         page,
		"limit":        limit,
		"total_pages":  totalPages,
		"total_events": total,
	})
}
