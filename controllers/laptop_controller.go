package controllers

import (
	"errors"
	"io"
	"net/http"

	"laptop_tracker/app"
	"laptop_tracker/lifecycle"

	"github.com/gin-gonic/gin"
)

type LaptopController struct {
	lc      *lifecycle.Coordinator
	actions ActionLogger
}

func NewLaptopController(lc *lifecycle.Coordinator, actions ActionLogger) *LaptopController {
	return &LaptopController{lc: lc, actions: actions}
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return false
	}
	return true
}

// GET /api/board
func (lc *LaptopController) Board(c *gin.Context) {
	b, err := lc.lc.Board(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GET /api/laptops
func (lc *LaptopController) ListLaptops(c *gin.Context) {
	ls, err := lc.lc.ListLaptops(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"laptops": ls})
}

// GET /api/laptops/:id returns the laptop and its open assignment, if any.
func (lc *LaptopController) GetLaptop(c *gin.Context) {
	ctx := c.Request.Context()
	l, err := lc.lc.GetLaptop(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	open, err := lc.lc.ListAssignments(ctx, lifecycle.HistoryQuery{LaptopID: l.ID, State: "open"})
	if err != nil {
		writeError(c, err)
		return
	}
	resp := app.H{"laptop": l}
	if len(open) > 0 {
		resp["assignment"] = open[0]
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/laptops
func (lc *LaptopController) CreateLaptop(c *gin.Context) {
	var in struct {
		ID              string `json:"id"`
		Brand           string `json:"brand"`
		Model           string `json:"model"`
		SerialNumber    string `json:"serialNumber"`
		BiometricSerial string `json:"biometricSerial"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	l, err := lc.lc.CreateLaptop(c.Request.Context(), lifecycle.LaptopInput{
		ID:              in.ID,
		Brand:           in.Brand,
		Model:           in.Model,
		SerialNumber:    in.SerialNumber,
		BiometricSerial: in.BiometricSerial,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	recordAction(c, lc.actions, "laptop.create", l.ID, l.SerialNumber)
	c.JSON(http.StatusCreated, l)
}

// PATCH /api/laptops/:id
func (lc *LaptopController) EditLaptop(c *gin.Context) {
	var in struct {
		Brand           *string `json:"brand"`
		Model           *string `json:"model"`
		SerialNumber    *string `json:"serialNumber"`
		BiometricSerial *string `json:"biometricSerial"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	l, err := lc.lc.EditLaptop(c.Request.Context(), c.Param("id"), lifecycle.LaptopPatch{
		Brand:           in.Brand,
		Model:           in.Model,
		SerialNumber:    in.SerialNumber,
		BiometricSerial: in.BiometricSerial,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	recordAction(c, lc.actions, "laptop.edit", l.ID, "")
	c.JSON(http.StatusOK, l)
}

// DELETE /api/laptops/:id
func (lc *LaptopController) DeleteLaptop(c *gin.Context) {
	id := c.Param("id")
	if err := lc.lc.DeleteLaptop(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	recordAction(c, lc.actions, "laptop.delete", id, "")
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// POST /api/laptops/:id/checkout
func (lc *LaptopController) CheckOut(c *gin.Context) {
	var in struct {
		PersonName      string `json:"personName"`
		BiometricSerial string `json:"biometricSerial"`
		Purpose         string `json:"purpose"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	res, err := lc.lc.CheckOut(c.Request.Context(), lifecycle.CheckOutRequest{
		LaptopID:        c.Param("id"),
		PersonName:      in.PersonName,
		BiometricSerial: in.BiometricSerial,
		Purpose:         in.Purpose,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	recordAction(c, lc.actions, "laptop.checkout", res.Laptop.ID, res.Assignment.UserName)
	c.JSON(http.StatusCreated, res)
}

// POST /api/laptops/:id/checkin
func (lc *LaptopController) CheckIn(c *gin.Context) {
	var in struct {
		ReturnNotes    string `json:"returnNotes"`
		ClearBiometric bool   `json:"clearBiometric"`
	}
	if !bindOptionalJSON(c, &in) {
		return
	}
	res, err := lc.lc.CheckIn(c.Request.Context(), lifecycle.CheckInRequest{
		LaptopID:       c.Param("id"),
		ReturnNotes:    in.ReturnNotes,
		ClearBiometric: in.ClearBiometric,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	recordAction(c, lc.actions, "laptop.checkin", res.Laptop.ID, res.Assignment.UserName)
	c.JSON(http.StatusOK, res)
}

// POST /api/laptops/:id/maintenance
func (lc *LaptopController) SetMaintenance(c *gin.Context) {
	var in struct {
		InMaintenance *bool `json:"inMaintenance"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if in.InMaintenance == nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "inMaintenance is required"})
		return
	}
	l, err := lc.lc.SetMaintenance(c.Request.Context(), c.Param("id"), *in.InMaintenance)
	if err != nil {
		writeError(c, err)
		return
	}
	recordAction(c, lc.actions, "laptop.maintenance", l.ID, string(l.Status))
	c.JSON(http.StatusOK, l)
}
