package server

import (
	"net/http"

	"github.com/chrisvdg/contentserver/config"
	"github.com/chrisvdg/contentserver/site"
	log "github.com/sirupsen/logrus"
)

// IndexTemplate is the template rendered on /
const IndexTemplate = "index.html"

func newHandlers(s *Site) *handlers {
	return &handlers{s: s}
}

type handlers struct {
	s *Site
}

// IndexHandler renders the index template with the content document, which
// is read again on every request
func (h *handlers) IndexHandler(res http.ResponseWriter, req *http.Request) {
	c, err := h.s.Content()
	if err != nil {
		h.s.Metrics.renderErrors.Inc()
		log.Errorf("Failed to load content: %s", err)
		http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := c.Context()
	ctx["hostname"] = h.s.Hostname
	body, err := h.s.Renderer.Render(IndexTemplate, ctx)
	if err != nil {
		h.s.Metrics.renderErrors.Inc()
		log.Errorf("Failed to render index: %s", err)
		http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	res.Header().Set("Content-Type", "text/html; charset=utf-8")
	res.Write(body)
}

// AssetHandler serves the static asset registered on the request path
func (h *handlers) AssetHandler(res http.ResponseWriter, req *http.Request) {
	asset, err := h.s.Assets.Read(req.URL.Path)
	if err == site.ErrAssetNotFound {
		http.NotFound(res, req)
		return
	}
	if err != nil {
		log.Errorf("Failed to read asset %s: %s", req.URL.Path, err)
		http.Error(res, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	res.Header().Set("Content-Type", asset.ContentType)
	res.Write(asset.Body)
}

// ContentLoader loads the content document
type ContentLoader func() (config.Content, error)
