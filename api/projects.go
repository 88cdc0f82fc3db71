package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createProjectRequest struct {
	Name string `json:"name"`
}

func (h *Handler) ListProjectsHandler(c *gin.Context) {
	projects, err := h.Board.ListProjects(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, projects)
}

func (h *Handler) CreateProjectHandler(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	project, err := h.Board.CreateProject(c.Request.Context(), currentUser(c).ID, req.Name)
	if err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusCreated, project)
}

func (h *Handler) DeleteProjectHandler(c *gin.Context) {
	if err := h.Board.DeleteProject(c.Request.Context(), currentUser(c).ID, c.Param("id")); err != nil {
		failWith(c, err)
		return
	}
	respond(c, http.StatusOK, nil)
}
