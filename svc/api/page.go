package api

import (
	"html/template"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"

	"pastry/metrics"
	"pastry/pkg/domain"
)

// pasteTmpl renders a stored paste read-only. Content passes through
// html/template so markup in a paste displays as text instead of
// executing; the stored bytes themselves stay untouched.
const pasteTmpl = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>pastry &middot; {{.ID}}</title>
<link rel="stylesheet" href="/static/style.css">
</head>
<body>
<main class="page">
<header>
<h1><a href="/">pastry</a></h1>
<p class="meta">paste <code>{{.ID}}</code> &middot; created {{.CreatedAt.UTC.Format "Jan 02, 2006 15:04 UTC"}}</p>
</header>
<pre class="content">{{.Content}}</pre>
<footer class="meta">
<a href="/api/paste/{{.ID}}">raw JSON</a>
</footer>
</main>
</body>
</html>
`

var pastePage = template.Must(template.New("paste").Parse(pasteTmpl))

// ViewPaste serves the read-only HTML page for a paste.
func (h *Hdl) ViewPaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	id := chi.URLParam(r, "id")
	paste, err := h.paste.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			log.Warn().Str("paste_id", id).Msg("paste page not found")
			http.Error(w, domain.ErrPasteNotFound.Msg, http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("paste_id", id).Msg("failed to load paste page")
		http.Error(w, domain.ErrInternal.Msg, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pastePage.Execute(w, paste); err != nil {
		log.Error().Err(err).Str("paste_id", id).Msg("failed to render paste page")
		return
	}
	metrics.PageRendered.Inc()
	log.Info().Str("paste_id", id).Msg("paste page rendered")
}

// Index serves the create form.
func (h *Hdl) Index(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.cfg.StaticDir, "index.html"))
}
