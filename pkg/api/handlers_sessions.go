package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dialogcore/engine/pkg/models"
	"github.com/dialogcore/engine/pkg/session"
)

// listAgents handles GET /agents.
func (s *Server) listAgents(c *gin.Context) {
	c.JSON(http.StatusOK, s.reg.Descriptors())
}

// listSessions handles GET /sessions.
func (s *Server) listSessions(c *gin.Context) {
	sessions, err := s.sessMgr.Store().ListSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// createSessionRequest is the body for both POST /sessions and
// POST /realtime/sessions.
type createSessionRequest struct {
	Title    string   `json:"title" binding:"required"`
	AgentIDs []string `json:"agentIds" binding:"required,min=1"`
}

// resolveAgents maps the requested agentIds onto registered descriptors,
// dropping (rather than erroring on) any unregistered id — the registry is
// the source of truth for what "exists".
func (s *Server) resolveAgents(agentIDs []string) []models.AgentDescriptor {
	agents := s.reg.For(agentIDs)
	out := make([]models.AgentDescriptor, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Descriptor())
	}
	return out
}

// createSession handles POST /sessions: a v1 staged session.
func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	descriptors := s.resolveAgents(req.AgentIDs)
	sess, err := s.sessMgr.CreateSession(req.Title, descriptors, models.VersionV1, models.Language(s.defaultLanguage))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// getSession handles GET /sessions/:id.
func (s *Server) getSession(c *gin.Context) {
	sess, ok, err := s.sessMgr.Store().LoadSession(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": session.ErrSessionNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// deleteSession handles DELETE /sessions/:id.
func (s *Server) deleteSession(c *gin.Context) {
	if !s.sessMgr.Store().DeleteSession(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": session.ErrSessionNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// createRealtimeSession handles POST /realtime/sessions: a v2 dynamic
// session, reusing an existing v2 session with the same title when one
// exists.
func (s *Server) createRealtimeSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := s.sessMgr.Store().ListSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, sess := range existing {
		if sess.Title == req.Title && sess.Version == models.VersionV2 {
			c.JSON(http.StatusOK, sess)
			return
		}
	}

	descriptors := s.resolveAgents(req.AgentIDs)
	sess, err := s.sessMgr.CreateSession(req.Title, descriptors, models.VersionV2, models.Language(s.defaultLanguage))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// runStageRequest is the body for POST /realtime/sessions/:id/stage.
type runStageRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Stage  string `json:"stage" binding:"required"`
	Language string `json:"language"`
}

// runStage handles POST /realtime/sessions/:id/stage: kicks off the
// session's router (staged for v1, dynamic for v2) asynchronously so the
// caller gets an immediate ack and watches progress over the realtime
// WebSocket. Stage is accepted per the wire contract but both routers
// always run their own full pipeline/round loop; there is no
// partial-pipeline entry point to single-step into.
func (s *Server) runStage(c *gin.Context) {
	var req runStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := c.Param("id")
	sess, ok, err := s.sessMgr.Store().LoadSession(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": session.ErrSessionNotFound.Error()})
		return
	}

	if req.Language != "" {
		sess.Language = models.Language(req.Language)
	}

	ctx := c.Request.Context()
	go func() {
		// The HTTP request's context is cancelled the moment this handler
		// returns; the router's run must outlive that. Cancellation of a
		// running dialogue is the router's concern, not the triggering
		// request's.
		runCtx := context.WithoutCancel(ctx)
		if sess.Version == models.VersionV2 {
			_ = s.dynamic.Run(runCtx, sess, req.Prompt)
			return
		}
		_ = s.staged.Run(runCtx, sess, req.Prompt)
	}()

	c.JSON(http.StatusAccepted, gin.H{"sessionId": id, "status": "started", "stage": req.Stage})
}
