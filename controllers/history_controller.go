package controllers

import (
	"net/http"
	"strconv"

	"laptop_tracker/app"
	"laptop_tracker/db"
	"laptop_tracker/lifecycle"

	"github.com/gin-gonic/gin"
)

type HistoryController struct {
	lc      *lifecycle.Coordinator
	actions ActionLogger
}

func NewHistoryController(lc *lifecycle.Coordinator, actions ActionLogger) *HistoryController {
	return &HistoryController{lc: lc, actions: actions}
}

// GET /api/assignments?laptopId=&state=open|returned&q=&sortBy=date|laptop|user&order=asc|desc
func (hc *HistoryController) ListAssignments(c *gin.Context) {
	rows, err := hc.lc.ListAssignments(c.Request.Context(), lifecycle.HistoryQuery{
		LaptopID: c.Query("laptopId"),
		State:    c.Query("state"),
		Search:   c.Query("q"),
		SortBy:   c.Query("sortBy"),
		Order:    c.Query("order"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"total": len(rows), "assignments": rows})
}

// GET /api/assignments/:id
func (hc *HistoryController) GetAssignment(c *gin.Context) {
	a, err := hc.lc.GetAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// GET /api/stats
func (hc *HistoryController) Stats(c *gin.Context) {
	b, err := hc.lc.Board(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b.Stats)
}

// GET /api/consistency lists every place the laptop table and the ledger
// disagree. An empty list means the store is consistent.
func (hc *HistoryController) Consistency(c *gin.Context) {
	issues, err := hc.lc.VerifyConsistency(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if issues == nil {
		issues = []lifecycle.Inconsistency{}
	}
	c.JSON(http.StatusOK, app.H{"consistent": len(issues) == 0, "issues": issues})
}

// GET /api/actions?action=&target=&limit=
func (hc *HistoryController) ListActions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := hc.actions.ListActions(c.Request.Context(), db.ActionLogQuery{
		Action: c.Query("action"),
		Target: c.Query("target"),
		Limit:  limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"actions": logs})
}
