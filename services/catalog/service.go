// Package catalog is a thin proxy over the TMDB API with a lookaside file
// cache for the stable list endpoints.
package catalog

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"sunnymovies/models"
)

// Service exposes the movie catalog the frontend browses.
type Service struct {
	mu     sync.RWMutex
	client *tmdbClient
	cache  *fileCache
}

// NewService builds a catalog service caching under cacheDir/catalog.
func NewService(apiKey, language, cacheDir string, ttlHours int) *Service {
	return &Service{
		client: newTMDBClient(apiKey, language, nil),
		cache:  newFileCache(filepath.Join(cacheDir, "catalog"), ttlHours),
	}
}

// tmdb returns the current upstream client. Fetches grab the client once and
// finish on it even if UpdateAPIKey swaps in a new one mid-flight.
func (s *Service) tmdb() *tmdbClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// UpdateAPIKey swaps the TMDB key and clears cached responses so fresh data
// is fetched with the new key. Safe to call while fetches are in flight.
func (s *Service) UpdateAPIKey(apiKey string) {
	s.mu.Lock()
	s.client = newTMDBClient(apiKey, s.client.language, s.client.httpc)
	s.mu.Unlock()

	if err := s.cache.clear(); err != nil {
		log.Printf("[catalog] warning: failed to clear cache: %v", err)
	}
}

// Popular returns a page of popular movies.
func (s *Service) Popular(ctx context.Context, page int) (*models.MovieList, error) {
	return s.cachedList(ctx, fmt.Sprintf("popular_%d", page), "/movie/popular", pageQuery(page))
}

// Trending returns a page of this week's trending movies.
func (s *Service) Trending(ctx context.Context, page int) (*models.MovieList, error) {
	return s.cachedList(ctx, fmt.Sprintf("trending_%d", page), "/trending/movie/week", pageQuery(page))
}

// TopRated returns a page of top rated movies.
func (s *Service) TopRated(ctx context.Context, page int) (*models.MovieList, error) {
	return s.cachedList(ctx, fmt.Sprintf("top_rated_%d", page), "/movie/top_rated", pageQuery(page))
}

// Search returns movies matching query. Queries shorter than two characters
// return an empty page without hitting the upstream. Results are not cached.
func (s *Service) Search(ctx context.Context, query string, page int) (*models.MovieList, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return &models.MovieList{Page: 1, Results: []models.Movie{}, TotalPages: 0, TotalResults: 0}, nil
	}

	q := pageQuery(page)
	q.Set("query", query)

	var list models.MovieList
	if err := s.tmdb().get(ctx, "/search/movie", q, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Discover returns movies filtered by genre. genreID <= 0 discovers without
// a genre filter. Results are not cached.
func (s *Service) Discover(ctx context.Context, genreID int64, page int) (*models.MovieList, error) {
	q := pageQuery(page)
	if genreID > 0 {
		q.Set("with_genres", strconv.FormatInt(genreID, 10))
	}

	var list models.MovieList
	if err := s.tmdb().get(ctx, "/discover/movie", q, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Details returns the full record for one movie.
func (s *Service) Details(ctx context.Context, movieID int64) (*models.MovieDetails, error) {
	key := fmt.Sprintf("details_%d", movieID)

	var details models.MovieDetails
	if s.cache.get(key, &details) {
		return &details, nil
	}

	q := url.Values{}
	q.Set("append_to_response", "credits,videos")
	if err := s.tmdb().get(ctx, fmt.Sprintf("/movie/%d", movieID), q, &details); err != nil {
		return nil, err
	}

	if err := s.cache.set(key, &details); err != nil {
		log.Printf("[catalog] cache details %d: %v", movieID, err)
	}
	return &details, nil
}

// Credits returns the cast and crew for one movie.
func (s *Service) Credits(ctx context.Context, movieID int64) (*models.Credits, error) {
	var credits models.Credits
	if err := s.tmdb().get(ctx, fmt.Sprintf("/movie/%d/credits", movieID), nil, &credits); err != nil {
		return nil, err
	}
	return &credits, nil
}

// Genres returns the movie genre catalog.
func (s *Service) Genres(ctx context.Context) (*models.GenreList, error) {
	var genres models.GenreList
	if s.cache.get("genres", &genres) {
		return &genres, nil
	}

	if err := s.tmdb().get(ctx, "/genre/movie/list", nil, &genres); err != nil {
		return nil, err
	}

	if err := s.cache.set("genres", &genres); err != nil {
		log.Printf("[catalog] cache genres: %v", err)
	}
	return &genres, nil
}

// cachedList serves a list endpoint through the lookaside cache.
func (s *Service) cachedList(ctx context.Context, key, path string, query url.Values) (*models.MovieList, error) {
	var list models.MovieList
	if s.cache.get(key, &list) {
		return &list, nil
	}

	if err := s.tmdb().get(ctx, path, query, &list); err != nil {
		return nil, err
	}

	if err := s.cache.set(key, &list); err != nil {
		log.Printf("[catalog] cache %s: %v", key, err)
	}
	return &list, nil
}

func pageQuery(page int) url.Values {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	return q
}
