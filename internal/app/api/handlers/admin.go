package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	reconsvc "github.com/austa/payments/internal/app/service/reconciliation"
)

// @Summary      Run reconciliation
// @Description  Triggers one reconciliation pass outside the regular schedule.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  models.ReconciliationReport
// @Router       /api/v1/admin/reconciliation/run [post]
func ApiRunReconciliation(svc *reconsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.Run(c.Request.Context(), time.Now())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// @Summary      Get reconciliation report
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Report ID"
// @Success      200  {object}  models.ReconciliationReport
// @Router       /api/v1/admin/reconciliation/reports/{id} [get]
func ApiGetReconciliationReport(svc *reconsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.GetReport(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// @Summary      Review queue
// @Description  Lists unresolved reconciliation discrepancies awaiting review.
// @Tags         Admin
// @Produce      json
// @Success      200  {array}  models.Discrepancy
// @Router       /api/v1/admin/reconciliation/discrepancies [get]
func ApiListDiscrepancies(svc *reconsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.ListOpenDiscrepancies(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

// @Summary      Resolve discrepancy
// @Description  Applies the proposed correction for one discrepancy. The transition goes through the regular lifecycle rules.
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Discrepancy ID"
// @Success      200  {object}  models.Discrepancy
// @Router       /api/v1/admin/reconciliation/discrepancies/{id}/resolve [post]
func ApiResolveDiscrepancy(svc *reconsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		resolvedBy := c.GetString("caller")
		if resolvedBy == "" {
			resolvedBy = "operator"
		}
		d, err := svc.ResolveDiscrepancy(c.Request.Context(), c.Param("id"), resolvedBy)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func RegisterAdminRoutes(r gin.IRouter, svc *reconsvc.Service, log *zap.SugaredLogger) {
	r.POST("/reconciliation/run", ApiRunReconciliation(svc, log))
	r.GET("/reconciliation/reports/:id", ApiGetReconciliationReport(svc, log))
	r.GET("/reconciliation/discrepancies", ApiListDiscrepancies(svc, log))
	r.POST("/reconciliation/discrepancies/:id/resolve", ApiResolveDiscrepancy(svc, log))
}
