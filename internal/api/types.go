package api

import "github.com/samcharles93/glint/internal/ranker"

type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

type SearchTextRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

type SearchVectorRequest struct {
	Vector []float32 `json:"vector"`
	TopK   *int      `json:"top_k,omitempty"`
}

type SearchSimilarRequest struct {
	ID   string `json:"id"`
	TopK *int   `json:"top_k,omitempty"`
}

// SearchResponse is returned by every search endpoint. A dropped search has
// no results and names the reason.
type SearchResponse struct {
	ID        string          `json:"id"`
	Object    string          `json:"object"`
	Created   int64           `json:"created"`
	Results   []ranker.Result `json:"results"`
	Dropped   bool            `json:"dropped"`
	Reason    string          `json:"reason,omitempty"`
	ElapsedMS float64         `json:"elapsed_ms"`
	IndexSize int             `json:"index_size"`
}

type IndexResponse struct {
	Object string `json:"object"`
	Loaded bool   `json:"loaded"`
	Count  int    `json:"count"`
	Dim    int    `json:"dim"`
	Path   string `json:"path,omitempty"`
}

type TokenizeRequest struct {
	Text          string `json:"text"`
	ContextLength *int   `json:"context_length,omitempty"`
}

type TokenizeResponse struct {
	Object string   `json:"object"`
	IDs    []int    `json:"ids"`
	Tokens []string `json:"tokens"`
}
