package api

import (
	"net/http"

	"github.com/deskmcp/deskmcp/pkg/types"
	"github.com/gin-gonic/gin"
)

func (s *Server) listToolsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.toolServer.ListTools())
	}
}

func (s *Server) getToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("name")
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'name' query parameter"})
			return
		}
		tool, ok := s.toolServer.GetTool(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "tool not found: " + name})
			return
		}
		c.JSON(http.StatusOK, tool)
	}
}

// invokeToolHandler runs a tool. An unknown or failing tool still yields 200, with the error in the result.
func (s *Server) invokeToolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.InvokeToolRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		if req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}
		res := s.toolServer.CallTool(c, req.Name, req.Input)
		c.JSON(http.StatusOK, res)
	}
}
