package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"pastry/cfg"
	"pastry/pkg/domain"
	"pastry/svc/svc"
	"pastry/svc/util"
)

type Hdl struct {
	paste *svc.Paste
	cfg   *cfg.Cfg
}

type CreateReq struct {
	Content string `json:"content"`
}

type CreateResp struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (h *Hdl) CreatePaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.RequestID(r.Context())

	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		log.Warn().
			Str("content_type", contentType).
			Str("request_id", requestID).
			Msg("invalid Content-Type header")
		writeErr(w, domain.NewErr("UNSUPPORTED_MEDIA_TYPE",
			"expected Content-Type: application/json",
			http.StatusUnsupportedMediaType), requestID)
		return
	}
	if ce := r.Header.Get("Content-Encoding"); ce != "" {
		log.Warn().Str("content_encoding", ce).Msg("compressed content not allowed")
		writeErr(w, domain.ErrInvalidRequest, requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.requestBodyLimit())
	var req CreateReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeErr(w, decodeErr(log, err), requestID)
		return
	}

	paste, err := h.paste.Create(r.Context(), req.Content)
	if err != nil {
		if domain.Status(err) < 500 {
			log.Warn().Err(err).Msg("paste rejected")
		} else {
			log.Error().Err(err).Msg("failed to create paste")
		}
		writeErr(w, err, requestID)
		return
	}
	log.Info().
		Str("paste_id", paste.ID).
		Int("content_chars", utf8.RuneCountInString(paste.Content)).
		Str("client_ip", util.RedactIP(r.RemoteAddr)).
		Msg("paste created")
	resp := CreateResp{
		ID:  paste.ID,
		URL: h.baseURL(r) + "/" + paste.ID,
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

func (h *Hdl) GetPaste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	requestID := util.RequestID(r.Context())
	id := chi.URLParam(r, "id")
	paste, err := h.paste.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPasteNotFound) {
			log.Warn().Str("paste_id", id).Msg("paste not found")
		} else {
			log.Error().Err(err).Str("paste_id", id).Msg("failed to get paste")
		}
		writeErr(w, err, requestID)
		return
	}
	log.Info().
		Str("paste_id", id).
		Str("client_ip", util.RedactIP(r.RemoteAddr)).
		Msg("paste retrieved")
	json.NewEncoder(w).Encode(paste)
}

// decodeErr maps a body decode failure onto the error taxonomy: an
// oversize body means the content cannot fit the limit, a wrong JSON
// type for a known field is invalid content, anything else is a
// malformed request.
func decodeErr(log *zerolog.Logger, err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		log.Warn().Int64("limit", maxBytesErr.Limit).Msg("request body over limit")
		return domain.ErrContentTooLong
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		log.Warn().Str("field", typeErr.Field).Str("got", typeErr.Value).Msg("wrong JSON type")
		return domain.ErrInvalidContent
	}
	if err == io.EOF {
		log.Warn().Msg("empty request body")
	} else {
		log.Warn().Err(err).Msg("invalid request body")
	}
	return domain.ErrInvalidRequest
}

// requestBodyLimit is sized for the worst case JSON encoding of a
// maximum length paste: every character escaped as a surrogate pair of
// \u sequences (12 bytes), plus syntax overhead.
func (h *Hdl) requestBodyLimit() int64 {
	return int64(h.cfg.MaxPasteChars)*12 + 1024
}

// baseURL resolves the public origin for absolute paste URLs. BASE_URL
// wins when set; otherwise the scheme comes from the connection, or
// from X-Forwarded-Proto when running behind trusted proxies.
func (h *Hdl) baseURL(r *http.Request) string {
	if h.cfg.BaseURL != "" {
		return strings.TrimRight(h.cfg.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if len(h.cfg.TrustedProxies) > 0 && r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeErr(w http.ResponseWriter, err error, requestID string) {
	statusCode := domain.Status(err)
	errorMsg := domain.Message(err)
	if statusCode >= 500 {
		errorMsg = domain.ErrInternal.Msg
		util.Error().
			Err(err).
			Str("request_id", requestID).
			Msg("internal error")
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error":      errorMsg,
		"request_id": requestID,
	})
}
