package models

// Movie is a single entry from a TMDB list endpoint. Field names follow the
// TMDB wire format so responses can be proxied to the frontend unchanged.
type Movie struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	Overview         string   `json:"overview"`
	PosterPath       *string  `json:"poster_path"`
	BackdropPath     *string  `json:"backdrop_path"`
	ReleaseDate      string   `json:"release_date"`
	VoteAverage      float64  `json:"vote_average"`
	VoteCount        int64    `json:"vote_count"`
	GenreIDs         []int64  `json:"genre_ids"`
	Adult            bool     `json:"adult"`
	OriginalLanguage string   `json:"original_language"`
	OriginalTitle    string   `json:"original_title"`
	Popularity       float64  `json:"popularity"`
	Video            bool     `json:"video"`
}

// Genre is a TMDB genre entry.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProductionCompany describes a company attached to a movie.
type ProductionCompany struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	LogoPath      *string `json:"logo_path"`
	OriginCountry string  `json:"origin_country"`
}

// ProductionCountry describes a country attached to a movie.
type ProductionCountry struct {
	ISO31661 string `json:"iso_3166_1"`
	Name     string `json:"name"`
}

// SpokenLanguage describes a spoken language attached to a movie.
type SpokenLanguage struct {
	EnglishName string `json:"english_name"`
	ISO6391     string `json:"iso_639_1"`
	Name        string `json:"name"`
}

// MovieDetails is the full record from GET /movie/{id}. The IMDBID is what
// the frontend feeds into the external player embed.
type MovieDetails struct {
	ID                  int64               `json:"id"`
	Title               string              `json:"title"`
	Overview            string              `json:"overview"`
	PosterPath          *string             `json:"poster_path"`
	BackdropPath        *string             `json:"backdrop_path"`
	ReleaseDate         string              `json:"release_date"`
	VoteAverage         float64             `json:"vote_average"`
	VoteCount           int64               `json:"vote_count"`
	Adult               bool                `json:"adult"`
	OriginalLanguage    string              `json:"original_language"`
	OriginalTitle       string              `json:"original_title"`
	Popularity          float64             `json:"popularity"`
	Video               bool                `json:"video"`
	Runtime             *int64              `json:"runtime"`
	Genres              []Genre             `json:"genres"`
	ProductionCompanies []ProductionCompany `json:"production_companies"`
	ProductionCountries []ProductionCountry `json:"production_countries"`
	SpokenLanguages     []SpokenLanguage    `json:"spoken_languages"`
	Status              string              `json:"status"`
	Tagline             *string             `json:"tagline"`
	Budget              int64               `json:"budget"`
	Revenue             int64               `json:"revenue"`
	IMDBID              *string             `json:"imdb_id"`
}

// CastMember is a cast credit for a movie.
type CastMember struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Character   string  `json:"character"`
	ProfilePath *string `json:"profile_path"`
	CastID      int64   `json:"cast_id"`
	CreditID    string  `json:"credit_id"`
	Order       int64   `json:"order"`
}

// CrewMember is a crew credit for a movie.
type CrewMember struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Job         string  `json:"job"`
	Department  string  `json:"department"`
	ProfilePath *string `json:"profile_path"`
	CreditID    string  `json:"credit_id"`
}

// Credits is the response from GET /movie/{id}/credits.
type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// MovieList is the paged envelope TMDB uses for list endpoints.
type MovieList struct {
	Page         int64   `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int64   `json:"total_pages"`
	TotalResults int64   `json:"total_results"`
}

// GenreList wraps the genre catalog response.
type GenreList struct {
	Genres []Genre `json:"genres"`
}
