package api

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"propfinder/server/internal/models"
	"propfinder/server/internal/presentation"
	"propfinder/server/internal/search"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded HTML templates.
func Templates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}

type pageData struct {
	Options  search.Options
	Params   SearchParams
	Searched bool
	Error    string
	Cards    []presentation.Card
	Stats    models.PropertyStats
}

// Index renders the search form and, once a city is chosen, the result
// cards. Invalid input is shown as a banner above the form.
func (h *Handler) Index(c *gin.Context) {
	data := pageData{Options: h.catalog.Options()}
	if err := c.ShouldBindQuery(&data.Params); err != nil {
		data.Error = "Invalid search parameters"
		c.HTML(http.StatusBadRequest, "index.html", data)
		return
	}

	if data.Params.City == "" {
		c.HTML(http.StatusOK, "index.html", data)
		return
	}

	data.Searched = true
	q, err := data.Params.Query()
	if err != nil {
		data.Error = err.Error()
		c.HTML(http.StatusBadRequest, "index.html", data)
		return
	}

	records, err := h.catalog.Search(q)
	if err != nil {
		data.Error = err.Error()
		c.HTML(http.StatusBadRequest, "index.html", data)
		return
	}
	data.Cards = presentation.NewCards(records, h.projection)
	data.Stats = search.Summarize(records)
	c.HTML(http.StatusOK, "index.html", data)
}
