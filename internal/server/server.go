// Package server exposes the local control API the hotkey layer talks to.
// It binds to loopback only.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/clipsolve/internal/config"
	"github.com/agenthands/clipsolve/internal/reference"
	"github.com/agenthands/clipsolve/internal/solver"
	"github.com/agenthands/clipsolve/internal/telemetry"
)

type Server struct {
	Cfg    *config.Store
	Solver *solver.Coordinator
	Models *solver.Models
	Primer *reference.Primer
	Refs   *reference.Store
	Status *telemetry.Status
}

func (s *Server) SetupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	r.POST("/solve", s.Solve)
	r.POST("/solve/cancel", s.CancelSolve)
	r.POST("/reference/toggle", s.ToggleReference)
	r.POST("/reference/graph-mode", s.SetGraphMode)
	r.POST("/model/cycle", s.CycleModel)
	r.PUT("/model", s.SetModel)
	r.GET("/status", s.GetStatus)

	return r
}

func (s *Server) Solve(c *gin.Context) {
	err := s.Solver.Solve(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "solved"})
	case errors.Is(err, solver.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "solve already running"})
	case errors.Is(err, solver.ErrEmptyClipboard):
		c.JSON(http.StatusBadRequest, gin.H{"error": "clipboard is empty"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) CancelSolve(c *gin.Context) {
	canceled := s.Solver.Active.Cancel("user request")
	c.JSON(http.StatusOK, gin.H{"canceled": canceled})
}

func (s *Server) ToggleReference(c *gin.Context) {
	if err := s.Primer.Toggle(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	meta := s.Refs.Meta()
	c.JSON(http.StatusOK, gin.H{
		"active":     meta.Active,
		"type":       meta.Type,
		"graph_mode": meta.GraphMode,
	})
}

type graphModeRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) SetGraphMode(c *gin.Context) {
	var req graphModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := s.Refs.SetGraphMode(req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"graph_mode": req.Enabled})
}

func (s *Server) CycleModel(c *gin.Context) {
	name, err := s.Models.Cycle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": name})
}

type setModelRequest struct {
	Model string `json:"model" binding:"required"`
}

func (s *Server) SetModel(c *gin.Context) {
	var req setModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := s.Models.Set(c.Request.Context(), req.Model); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"model": req.Model})
}

func (s *Server) GetStatus(c *gin.Context) {
	msg, isErr := s.Status.Current()
	meta := s.Refs.Meta()
	cfg := s.Cfg.Get()
	c.JSON(http.StatusOK, gin.H{
		"status":           msg,
		"error":            isErr,
		"model":            cfg.LLM.Model,
		"reference_active": meta.Active,
		"reference_type":   meta.Type,
		"graph_mode":       meta.GraphMode,
	})
}
