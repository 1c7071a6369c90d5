package forum

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/KAsare1/pesb-server/cmd/models"
	"github.com/KAsare1/pesb-server/cmd/utils"
	"github.com/KAsare1/pesb-server/service/auth"
	"github.com/KAsare1/pesb-server/service/tags"
)

type PostHandler struct {
	feed       *Feed
	engagement *Engagement
	auth       *auth.Middleware
}

func NewPostHandler(feed *Feed, engagement *Engagement, mw *auth.Middleware) *PostHandler {
	return &PostHandler{feed: feed, engagement: engagement, auth: mw}
}

func (h *PostHandler) RegisterRoutes(router *mux.Router) {
	// Feed routes
	router.HandleFunc("/pictures", h.GetPictures).Methods("GET")
	router.HandleFunc("/posts", h.GetPosts).Methods("GET")
	router.HandleFunc("/tags/{tag}/posts", h.GetPostsByTag).Methods("GET")

	// Engagement routes
	router.HandleFunc("/posts/{id}/liked", h.auth.RequireAuth(h.GetLiked)).Methods("GET")
	router.HandleFunc("/posts/{id}/like", h.auth.RequireAuth(h.ToggleLike)).Methods("POST")
	router.HandleFunc("/posts/{id}/comment", h.auth.RequireAuth(h.AddComment)).Methods("POST")
}

func (h *PostHandler) GetPictures(w http.ResponseWriter, r *http.Request) {
	pictures, err := h.feed.ListPictures(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, pictures)
}

func (h *PostHandler) GetPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.feed.ListPosts(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) GetPostsByTag(w http.ResponseWriter, r *http.Request) {
	tag := tags.Normalize(mux.Vars(r)["tag"])
	if tag == "" {
		// No post carries a blank tag; ListPosts would read it as no filter.
		utils.WriteJSON(w, http.StatusOK, []models.PostView{})
		return
	}
	posts, err := h.feed.ListPosts(r.Context(), tag)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) GetLiked(w http.ResponseWriter, r *http.Request) {
	postID, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	userID, _ := utils.GetUserIDFromContext(r.Context())

	liked, err := h.engagement.LikedState(r.Context(), userID, postID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"postId": postID, "liked": liked})
}

func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	postID, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	userID, _ := utils.GetUserIDFromContext(r.Context())

	res, err := h.engagement.ToggleLike(r.Context(), userID, postID)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, res)
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	postID, err := utils.ParseID(r, "id")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	userID, _ := utils.GetUserIDFromContext(r.Context())

	var req struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	comment, err := h.engagement.AddComment(r.Context(), userID, postID, req.Content)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, comment)
}
