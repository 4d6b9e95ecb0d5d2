// Package api provides the HTTP/WebSocket binding of the dialogue
// orchestration core onto a concrete transport: a thin gin.Engine wrapping
// the session manager, the two routers, the agent registry, and the output
// store, sufficient to exercise the core end to end. It never implements
// dialogue rules itself, only validates requests and delegates.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dialogcore/engine/pkg/agent"
	"github.com/dialogcore/engine/pkg/events"
	"github.com/dialogcore/engine/pkg/outputs"
	"github.com/dialogcore/engine/pkg/router/dynamic"
	"github.com/dialogcore/engine/pkg/router/staged"
	"github.com/dialogcore/engine/pkg/session"
)

// Server is the HTTP API server binding the orchestration core onto gin.
type Server struct {
	engine  *gin.Engine
	http    *http.Server
	hub     *Hub
	sessMgr *session.Manager
	outs    *outputs.Store
	reg     *agent.Registry
	staged  *staged.Router
	dynamic *dynamic.Router
	bus     *events.Bus

	defaultLanguage string
}

// Deps bundles every collaborator Server needs.
type Deps struct {
	SessionManager  *session.Manager
	Outputs         *outputs.Store
	Registry        *agent.Registry
	Staged          *staged.Router
	Dynamic         *dynamic.Router
	Bus             *events.Bus
	DefaultLanguage string
}

// NewServer builds the route table over deps. Call Start to begin serving.
func NewServer(deps Deps) *Server {
	e := gin.New()
	e.Use(gin.Recovery())

	lang := deps.DefaultLanguage
	if lang == "" {
		lang = "en"
	}

	s := &Server{
		engine:          e,
		hub:             NewHub(deps.Bus),
		sessMgr:         deps.SessionManager,
		outs:            deps.Outputs,
		reg:             deps.Registry,
		staged:          deps.Staged,
		dynamic:         deps.Dynamic,
		bus:             deps.Bus,
		defaultLanguage: lang,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/agents", s.listAgents)

	s.engine.GET("/sessions", s.listSessions)
	s.engine.POST("/sessions", s.createSession)
	s.engine.GET("/sessions/:id", s.getSession)
	s.engine.DELETE("/sessions/:id", s.deleteSession)

	s.engine.POST("/realtime/sessions", s.createRealtimeSession)
	s.engine.POST("/realtime/sessions/:id/stage", s.runStage)
	s.engine.GET("/realtime/ws", s.serveWS)

	s.engine.GET("/outputs", s.listOutputs)
	s.engine.GET("/outputs/:id", s.getOutput)
	s.engine.DELETE("/outputs/:id", s.deleteOutput)
}

// Handler exposes the underlying http.Handler, e.g. for httptest.Server.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens and serves on addr, blocking until the listener fails.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	return s.http.ListenAndServe()
}
