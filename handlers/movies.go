package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sourcegraph/conc/pool"

	"sunnymovies/models"
)

// homepageTimeout bounds the combined homepage fetch; a slow upstream should
// degrade the page, not hang it.
const homepageTimeout = 20 * time.Second

// catalogService is the slice of the catalog service the movies handler uses.
type catalogService interface {
	Popular(ctx context.Context, page int) (*models.MovieList, error)
	Trending(ctx context.Context, page int) (*models.MovieList, error)
	TopRated(ctx context.Context, page int) (*models.MovieList, error)
	Search(ctx context.Context, query string, page int) (*models.MovieList, error)
	Discover(ctx context.Context, genreID int64, page int) (*models.MovieList, error)
	Details(ctx context.Context, movieID int64) (*models.MovieDetails, error)
	Credits(ctx context.Context, movieID int64) (*models.Credits, error)
	Genres(ctx context.Context) (*models.GenreList, error)
}

// MoviesHandler serves the catalog endpoints the frontend browses.
type MoviesHandler struct {
	catalog catalogService
}

// NewMoviesHandler creates a new movies handler.
func NewMoviesHandler(catalogSvc catalogService) *MoviesHandler {
	return &MoviesHandler{catalog: catalogSvc}
}

// Popular serves GET /api/movies/popular.
func (h *MoviesHandler) Popular(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, "popular", h.catalog.Popular)
}

// Trending serves GET /api/movies/trending.
func (h *MoviesHandler) Trending(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, "trending", h.catalog.Trending)
}

// TopRated serves GET /api/movies/top-rated.
func (h *MoviesHandler) TopRated(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, "top rated", h.catalog.TopRated)
}

// Search serves GET /api/movies/search?q=...
func (h *MoviesHandler) Search(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"), pageParam(r))
	if err != nil {
		upstreamError(w, "Failed to search movies", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Discover serves GET /api/movies/discover?genre=...
func (h *MoviesHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var genreID int64
	if raw := r.URL.Query().Get("genre"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid genre id"})
			return
		}
		genreID = parsed
	}

	list, err := h.catalog.Discover(r.Context(), genreID, pageParam(r))
	if err != nil {
		upstreamError(w, "Failed to discover movies", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Details serves GET /api/movies/{id}.
func (h *MoviesHandler) Details(w http.ResponseWriter, r *http.Request) {
	movieID, ok := movieIDParam(w, r)
	if !ok {
		return
	}

	details, err := h.catalog.Details(r.Context(), movieID)
	if err != nil {
		upstreamError(w, "Failed to fetch movie details", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// Credits serves GET /api/movies/{id}/credits.
func (h *MoviesHandler) Credits(w http.ResponseWriter, r *http.Request) {
	movieID, ok := movieIDParam(w, r)
	if !ok {
		return
	}

	credits, err := h.catalog.Credits(r.Context(), movieID)
	if err != nil {
		upstreamError(w, "Failed to fetch movie credits", err)
		return
	}
	writeJSON(w, http.StatusOK, credits)
}

// Genres serves GET /api/genres.
func (h *MoviesHandler) Genres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.Genres(r.Context())
	if err != nil {
		upstreamError(w, "Failed to fetch genres", err)
		return
	}
	writeJSON(w, http.StatusOK, genres)
}

// HomepageResponse is the combined payload returned by GET /api/homepage,
// assembled concurrently to cut frontend round-trips on first paint.
type HomepageResponse struct {
	Popular  *models.MovieList `json:"popular"`
	Trending *models.MovieList `json:"trending"`
	TopRated *models.MovieList `json:"topRated"`
	Genres   *models.GenreList `json:"genres"`
}

// Homepage serves GET /api/homepage.
func (h *MoviesHandler) Homepage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), homepageTimeout)
	defer cancel()

	var resp HomepageResponse
	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		list, err := h.catalog.Popular(ctx, 1)
		resp.Popular = list
		return err
	})
	p.Go(func(ctx context.Context) error {
		list, err := h.catalog.Trending(ctx, 1)
		resp.Trending = list
		return err
	})
	p.Go(func(ctx context.Context) error {
		list, err := h.catalog.TopRated(ctx, 1)
		resp.TopRated = list
		return err
	})
	p.Go(func(ctx context.Context) error {
		genres, err := h.catalog.Genres(ctx)
		resp.Genres = genres
		return err
	})

	if err := p.Wait(); err != nil {
		upstreamError(w, "Failed to assemble homepage", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// serveList handles the shared shape of the paged list endpoints.
func (h *MoviesHandler) serveList(w http.ResponseWriter, r *http.Request, name string, fetch func(context.Context, int) (*models.MovieList, error)) {
	list, err := fetch(r.Context(), pageParam(r))
	if err != nil {
		upstreamError(w, "Failed to fetch "+name+" movies", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// pageParam parses ?page=, defaulting to 1.
func pageParam(r *http.Request) int {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// movieIDParam parses the {id} route variable, answering 400 on garbage.
func movieIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	movieID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || movieID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid movie id"})
		return 0, false
	}
	return movieID, true
}

// upstreamError reports a TMDB failure as 502; the proxy itself is healthy.
func upstreamError(w http.ResponseWriter, message string, err error) {
	log.Printf("[movies] %s: %v", message, err)
	writeJSON(w, http.StatusBadGateway, map[string]string{"message": message})
}
