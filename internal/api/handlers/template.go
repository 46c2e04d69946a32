package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"debate_timer/internal/debate"
)

// TemplateHandler 提供辯論模板目錄
type TemplateHandler struct {
	catalog *debate.Catalog
}

func NewTemplateHandler(catalog *debate.Catalog) *TemplateHandler {
	return &TemplateHandler{catalog: catalog}
}

// ListTemplates 列出模板；?all=true 時包含首頁隱藏的模板
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Templates(c.Query("all") == "true"))
}

// GetTemplate 取得單一模板，?variant= 指定學校版本
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	var (
		t   debate.Template
		err error
	)
	if variant := c.Query("variant"); variant != "" {
		t, err = h.catalog.Variant(c.Param("id"), variant)
	} else {
		t, err = h.catalog.Template(c.Param("id"))
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
