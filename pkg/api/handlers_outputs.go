package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dialogcore/engine/pkg/outputs"
)

// listOutputs handles GET /outputs.
func (s *Server) listOutputs(c *gin.Context) {
	list, err := s.outs.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

// getOutput handles GET /outputs/:id.
func (s *Server) getOutput(c *gin.Context) {
	artifact, err := s.outs.Get(c.Param("id"))
	if err == outputs.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "output not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, artifact)
}

// deleteOutput handles DELETE /outputs/:id.
func (s *Server) deleteOutput(c *gin.Context) {
	err := s.outs.Delete(c.Param("id"))
	if err == outputs.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "output not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
