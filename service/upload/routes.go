package upload

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/KAsare1/pesb-server/cmd/utils"
	"github.com/KAsare1/pesb-server/service/auth"
	"github.com/KAsare1/pesb-server/service/tags"
)

// formOverhead is allowed on top of the image limit for the other fields
// and multipart framing.
const formOverhead = 1 << 20

type Handler struct {
	ingest   *Ingest
	auth     *auth.Middleware
	redirect string
	maxBytes int64
}

func NewHandler(ingest *Ingest, mw *auth.Middleware, redirect string, maxBytes int64) *Handler {
	return &Handler{ingest: ingest, auth: mw, redirect: redirect, maxBytes: maxBytes}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/upload", h.handleUpload).Methods("POST")
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteError(w, r, utils.BadRequest("file too large"))
			return
		}
		utils.WriteError(w, r, utils.BadRequest("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("picture")
	if err != nil {
		utils.WriteError(w, r, utils.BadRequest("no file attached"))
		return
	}
	defer file.Close()

	loc, err := utils.ParseLocation(r.FormValue("location"))
	if err != nil {
		utils.WriteError(w, r, utils.Validation(map[string]string{"location": err.Error()}))
		return
	}

	identity, err := h.auth.Authenticate(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	res, err := h.ingest.Upload(r.Context(), Input{
		UserID:      identity.UserID,
		File:        file,
		Filename:    header.Filename,
		Location:    loc,
		Description: r.FormValue("description"),
		Tags:        tags.ParseList(r.FormValue("tags")),
	})
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	if wantsJSON(r) {
		utils.WriteJSON(w, http.StatusCreated, res)
		return
	}
	http.Redirect(w, r, h.redirect, http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
