package discogs

// Discogs API response types.

// SearchResponse is the top-level response from the database search endpoint.
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	Pagination Pagination     `json:"pagination"`
}

// SearchResult represents a single release search hit. Title arrives as
// "Artist - Album" and Year as a string.
type SearchResult struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Year        string `json:"year"`
	Country     string `json:"country"`
	Thumb       string `json:"thumb"`
	CoverImage  string `json:"cover_image"`
	ResourceURL string `json:"resource_url"`
}

// Pagination holds pagination info.
type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

// ReleaseDetail is the full release response, fetched per search hit to
// obtain the tracklist.
type ReleaseDetail struct {
	ID        int         `json:"id"`
	Title     string      `json:"title"`
	Year      int         `json:"year"`
	Released  string      `json:"released"`
	Artists   []ArtistRef `json:"artists"`
	Tracklist []Track     `json:"tracklist"`
	Genres    []string    `json:"genres"`
	Styles    []string    `json:"styles"`
}

// ArtistRef is a reference to an artist credited on a release.
type ArtistRef struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ResourceURL string `json:"resource_url"`
}

// Track is one tracklist entry. Type distinguishes playable tracks from
// headings and index rows on multi-part releases.
type Track struct {
	Position string      `json:"position"`
	Type     string      `json:"type_"`
	Title    string      `json:"title"`
	Duration string      `json:"duration"`
	Artists  []ArtistRef `json:"artists"`
}
