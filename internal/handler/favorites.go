package handler

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/yourorg/staybook/internal/identity"
	"github.com/yourorg/staybook/internal/security/middleware"
)

// FavoritesHandler serves the caller's favorited listing ids
type FavoritesHandler struct {
	resolver *identity.Resolver
	logger   *slog.Logger
}

// NewFavoritesHandler creates a new favorites handler
func NewFavoritesHandler(resolver *identity.Resolver, logger *slog.Logger) *FavoritesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FavoritesHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// FavoritesResponse is the wire shape of the favorites set
type FavoritesResponse struct {
	ListingIDs []string `json:"listingIds"`
}

// ServeHTTP handles GET /api/me/favorites
func (h *FavoritesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if middleware.GetIdentity(r.Context()) == nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	set := h.resolver.FavoriteListingIDs(r.Context(), middleware.GetCredential(r.Context()))

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	writeJSON(w, http.StatusOK, FavoritesResponse{ListingIDs: ids})
}
