package api

import (
	"database/sql"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"promptcoach/internal/models"
)

func (h *Handler) queryLanguage(c *gin.Context) models.Language {
	return models.LanguageOr(c.Query("language"), h.defaultLang)
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + strings.ReplaceAll(name, "_", " ")})
		return 0, false
	}
	return id, true
}

// respondLookupError maps sql.ErrNoRows to 404 and everything else to 500.
func respondLookupError(c *gin.Context, err error, what string) {
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *Handler) listModules(c *gin.Context) {
	modules, err := h.assistant.ListModules(c.Request.Context(), h.queryLanguage(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"modules": modules})
}

func (h *Handler) getModule(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	module, err := h.assistant.GetModule(c.Request.Context(), id)
	if err != nil {
		respondLookupError(c, err, "module")
		return
	}
	c.JSON(http.StatusOK, module)
}

func (h *Handler) listLessons(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	lessons, err := h.assistant.ListLessons(c.Request.Context(), id)
	if err != nil {
		respondLookupError(c, err, "module")
		return
	}
	c.JSON(http.StatusOK, gin.H{"lessons": lessons})
}

func (h *Handler) getLesson(c *gin.Context) {
	moduleID, ok := parseID(c, "id")
	if !ok {
		return
	}
	lessonID, ok := parseID(c, "lesson_id")
	if !ok {
		return
	}
	lesson, err := h.assistant.GetLesson(c.Request.Context(), moduleID, lessonID)
	if err != nil {
		respondLookupError(c, err, "lesson")
		return
	}
	c.JSON(http.StatusOK, lesson)
}

func (h *Handler) listResources(c *gin.Context) {
	resources, err := h.assistant.ListResources(c.Request.Context(), h.queryLanguage(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resources": resources})
}

func (h *Handler) getResource(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	resource, err := h.assistant.GetResource(c.Request.Context(), id)
	if err != nil {
		respondLookupError(c, err, "resource")
		return
	}
	c.JSON(http.StatusOK, resource)
}

// downloadResource serves a file from the resources directory; names with path elements are rejected.
func (h *Handler) downloadResource(c *gin.Context) {
	name := c.Param("filename")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file name"})
		return
	}
	if h.resourcesDir == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	path := filepath.Join(h.resourcesDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.FileAttachment(path, name)
}
