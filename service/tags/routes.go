package tags

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/KAsare1/pesb-server/cmd/utils"
)

type Handler struct {
	index *Index
}

func NewHandler(index *Index) *Handler {
	return &Handler{index: index}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/posts/{id}/tags", h.handlePostTags).Methods("GET")
}

func (h *Handler) handlePostTags(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	tags, err := h.index.ForPost(r.Context(), id)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"postId": id,
		"tags":   tags,
	})
}
