package controllers

import (
	"net/http"

	"laptop_tracker/app"
	"laptop_tracker/lifecycle"

	"github.com/gin-gonic/gin"
)

// DirectoryController manages the people who may hold laptops and the
// biometric readers that can be linked to them.
type DirectoryController struct {
	lc      *lifecycle.Coordinator
	actions ActionLogger
}

func NewDirectoryController(lc *lifecycle.Coordinator, actions ActionLogger) *DirectoryController {
	return &DirectoryController{lc: lc, actions: actions}
}

type personIn struct {
	Name string `json:"name"`
}

type biometricIn struct {
	SerialNumber string `json:"serialNumber"`
}

// GET /api/persons
func (dc *DirectoryController) ListPersons(c *gin.Context) {
	ps, err := dc.lc.ListPersons(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"persons": ps})
}

// POST /api/persons
func (dc *DirectoryController) CreatePerson(c *gin.Context) {
	var in personIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	p, err := dc.lc.CreatePerson(c.Request.Context(), in.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	recordAction(c, dc.actions, "person.create", p.ID, p.Name)
	c.JSON(http.StatusCreated, p)
}

// PUT /api/persons/:id
func (dc *DirectoryController) RenamePerson(c *gin.Context) {
	var in personIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	p, err := dc.lc.RenamePerson(c.Request.Context(), c.Param("id"), in.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	recordAction(c, dc.actions, "person.rename", p.ID, p.Name)
	c.JSON(http.StatusOK, p)
}

// DELETE /api/persons/:id
func (dc *DirectoryController) DeletePerson(c *gin.Context) {
	id := c.Param("id")
	if err := dc.lc.DeletePerson(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	recordAction(c, dc.actions, "person.delete", id, "")
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/biometrics
func (dc *DirectoryController) ListBiometrics(c *gin.Context) {
	ds, err := dc.lc.ListBiometrics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"biometrics": ds})
}

// POST /api/biometrics
func (dc *DirectoryController) CreateBiometric(c *gin.Context) {
	var in biometricIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	d, err := dc.lc.CreateBiometric(c.Request.Context(), in.SerialNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	recordAction(c, dc.actions, "biometric.create", d.ID, d.SerialNumber)
	c.JSON(http.StatusCreated, d)
}

// PUT /api/biometrics/:id
func (dc *DirectoryController) UpdateBiometric(c *gin.Context) {
	var in biometricIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	d, err := dc.lc.UpdateBiometric(c.Request.Context(), c.Param("id"), in.SerialNumber)
	if err != nil {
		writeError(c, err)
		return
	}
	recordAction(c, dc.actions, "biometric.update", d.ID, d.SerialNumber)
	c.JSON(http.StatusOK, d)
}

// DELETE /api/biometrics/:id
func (dc *DirectoryController) DeleteBiometric(c *gin.Context) {
	id := c.Param("id")
	if err := dc.lc.DeleteBiometric(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	recordAction(c, dc.actions, "biometric.delete", id, "")
	c.JSON(http.StatusOK, app.H{"ok": true})
}
