package query

// SearchResult is one ranked search hit.
type SearchResult struct {
	Path     string  `json:"path"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Snippet  string  `json:"snippet"`
	Modified string  `json:"modified"`
	Score    float64 `json:"score"`
}

type SearchResponse struct {
	Query   string         `json:"query"`
	Count   int            `json:"count"`
	Results []SearchResult `json:"results"`
}

// Answer is one passage returned for a question.
type Answer struct {
	Source    string  `json:"source"`
	Path      string  `json:"path"`
	Answer    string  `json:"answer"`
	Relevance float64 `json:"relevance"`
}

type AskResponse struct {
	Question    string   `json:"question"`
	SearchTerms []string `json:"search_terms"`
	Answers     []Answer `json:"answers"`
}

type RecentFile struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Preview  string `json:"preview"`
	Modified string `json:"modified"`
}

type RecentResponse struct {
	Count int          `json:"count"`
	Files []RecentFile `json:"files"`
}

// FileResponse is a full document. Path is the resolved absolute path.
type FileResponse struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	Modified string `json:"modified"`
}

type StatsResponse struct {
	Status          string           `json:"status"`
	LastIndexed     string           `json:"last_indexed"`
	TotalFiles      int64            `json:"total_files"`
	TotalCharacters int64            `json:"total_characters"`
	FilesByType     map[string]int64 `json:"files_by_type"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	Database       string `json:"database"`
	DatabaseExists bool   `json:"database_exists"`
}

// FilesResponse lists matching paths; Total counts matches beyond the limit.
type FilesResponse struct {
	Pattern string   `json:"pattern"`
	Count   int      `json:"count"`
	Total   int      `json:"total"`
	Files   []string `json:"files"`
}
