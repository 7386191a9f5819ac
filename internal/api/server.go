// Package api exposes the search service over HTTP.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/glint/internal/embedstore"
	"github.com/samcharles93/glint/internal/encoder"
	"github.com/samcharles93/glint/internal/logger"
	"github.com/samcharles93/glint/internal/ranker"
	"github.com/samcharles93/glint/internal/search"
	"github.com/samcharles93/glint/internal/tokenizer"
	"github.com/samcharles93/glint/internal/webui"
)

const (
	// DefaultMaxImageBytes bounds the body of an image search.
	DefaultMaxImageBytes = 32 << 20
	// DefaultMaxContextLength bounds context_length on /v1/tokenize.
	DefaultMaxContextLength = 4096
)

type ServerConfig struct {
	Service *search.Service
	// Tokenizer backs /v1/tokenize. Nil disables the endpoint.
	Tokenizer *tokenizer.Tokenizer
	// IndexPath is the file /v1/index/reload reads.
	IndexPath string
	// ImagesDir, if set, is served under /images/ so result ids resolve to
	// the gallery files.
	ImagesDir string
	// UI serves the embedded search page at /.
	UI            bool
	TopK          int
	MaxImageBytes int64
	Logger        logger.Logger

	// MaxContextLength caps context_length on /v1/tokenize.
	MaxContextLength int
}

type Server struct {
	service       *search.Service
	tok           *tokenizer.Tokenizer
	indexPath     string
	imagesDir     string
	ui            http.Handler
	topK          int
	maxImageBytes int64
	maxContext    int
	log           logger.Logger
	clock         func() time.Time
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Service == nil {
		cfg.Service = search.NewService(search.Config{Tokenizer: cfg.Tokenizer, Logger: cfg.Logger})
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = DefaultMaxContextLength
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	var ui http.Handler
	if cfg.UI {
		ui = http.FileServer(webui.StaticFS())
	}
	return &Server{
		service:       cfg.Service,
		tok:           cfg.Tokenizer,
		indexPath:     cfg.IndexPath,
		imagesDir:     cfg.ImagesDir,
		ui:            ui,
		topK:          cfg.TopK,
		maxImageBytes: cfg.MaxImageBytes,
		maxContext:    cfg.MaxContextLength,
		log:           cfg.Logger.With("component", "api"),
		clock:         time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/index", s.handleGetIndex)
	e.POST("/v1/index/reload", s.handleReloadIndex)

	e.POST("/v1/search", s.handleSearchText)
	e.POST("/v1/search/vector", s.handleSearchVector)
	e.POST("/v1/search/similar", s.handleSearchSimilar)
	e.POST("/v1/search/image", s.handleSearchImage)

	e.POST("/v1/tokenize", s.handleTokenize)

	if s.imagesDir != "" {
		e.GET("/images/*", s.handleImage)
	}
	if s.ui != nil {
		e.GET("/", s.handleUI)
		e.GET("/app.js", s.handleUI)
		e.GET("/style.css", s.handleUI)
	}
}

func (s *Server) handleUI(c *echo.Context) error {
	s.ui.ServeHTTP(c.Response(), c.Request())
	return nil
}

// handleImage serves a gallery file by its index identifier.
func (s *Server) handleImage(c *echo.Context) error {
	name := c.Param("*")
	clean := path.Clean("/" + name)
	if name == "" || clean != "/"+name || strings.Contains(name, "\\") {
		return writeNotFound(c, "image not found")
	}
	full := filepath.Join(s.imagesDir, filepath.FromSlash(clean))
	st, err := os.Stat(full)
	if err != nil || st.IsDir() {
		return writeNotFound(c, "image not found")
	}
	http.ServeFile(c.Response(), c.Request(), full)
	return nil
}

func (s *Server) handleGetIndex(c *echo.Context) error {
	idx := s.service.Index()
	return c.JSON(http.StatusOK, IndexResponse{
		Object: "index",
		Loaded: idx != nil,
		Count:  idx.Len(),
		Dim:    idx.Dim(),
		Path:   s.indexPath,
	})
}

func (s *Server) handleReloadIndex(c *echo.Context) error {
	if s.indexPath == "" {
		return writeError(c, http.StatusConflict, "invalid_request_error", "no index path configured", "", "")
	}
	if err := s.service.LoadIndex(s.indexPath); err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return writeNotFound(c, err.Error())
		case errors.Is(err, embedstore.ErrCorrupt):
			return writeError(c, http.StatusUnprocessableEntity, "invalid_index_error", err.Error(), "", "")
		default:
			return writeServerError(c, err)
		}
	}
	return s.handleGetIndex(c)
}

func (s *Server) handleSearchText(c *echo.Context) error {
	req, err := decodeJSON[SearchTextRequest](c.Request().Body)
	if err != nil {
		return writeInvalid(c, err)
	}
	k, err := topK(req.TopK, s.topK)
	if err != nil {
		return writeInvalid(c, err)
	}
	out, err := s.service.SearchText(c.Request().Context(), req.Query, k)
	return s.writeOutcome(c, out, err)
}

func (s *Server) handleSearchVector(c *echo.Context) error {
	req, err := decodeJSON[SearchVectorRequest](c.Request().Body)
	if err != nil {
		return writeInvalid(c, err)
	}
	if len(req.Vector) == 0 {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", "vector is required", "vector", "")
	}
	k, err := topK(req.TopK, s.topK)
	if err != nil {
		return writeInvalid(c, err)
	}
	out, err := s.service.SearchVector(c.Request().Context(), req.Vector, k)
	return s.writeOutcome(c, out, err)
}

func (s *Server) handleSearchSimilar(c *echo.Context) error {
	req, err := decodeJSON[SearchSimilarRequest](c.Request().Body)
	if err != nil {
		return writeInvalid(c, err)
	}
	if req.ID == "" {
		return writeError(c, http.StatusBadRequest, "invalid_request_error", "id is required", "id", "")
	}
	k, err := topK(req.TopK, s.topK)
	if err != nil {
		return writeInvalid(c, err)
	}
	out, err := s.service.SearchSimilar(c.Request().Context(), req.ID, k)
	return s.writeOutcome(c, out, err)
}

func (s *Server) handleSearchImage(c *echo.Context) error {
	k, err := queryTopK(c.QueryParam("top_k"), s.topK)
	if err != nil {
		return writeInvalid(c, err)
	}
	body := io.LimitReader(c.Request().Body, s.maxImageBytes+1)
	data, err := io.ReadAll(body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if int64(len(data)) > s.maxImageBytes {
		return writeError(c, http.StatusRequestEntityTooLarge, "invalid_request_error",
			fmt.Sprintf("image exceeds %d bytes", s.maxImageBytes), "", "")
	}
	img, err := encoder.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	out, err := s.service.SearchImage(c.Request().Context(), img, k)
	return s.writeOutcome(c, out, err)
}

func (s *Server) handleTokenize(c *echo.Context) error {
	if s.tok == nil {
		return writeError(c, http.StatusServiceUnavailable, "unavailable_error", "tokenizer not loaded", "", "")
	}
	req, err := decodeJSON[TokenizeRequest](c.Request().Body)
	if err != nil {
		return writeInvalid(c, err)
	}
	length, err := contextLength(req.ContextLength, tokenizer.DefaultContextLength, s.maxContext)
	if err != nil {
		return writeInvalid(c, err)
	}
	return c.JSON(http.StatusOK, TokenizeResponse{
		Object: "tokenization",
		IDs:    s.tok.Encode(req.Text, length),
		Tokens: s.tok.Tokens(req.Text),
	})
}

func (s *Server) writeOutcome(c *echo.Context, out search.Outcome, err error) error {
	var dim *ranker.ErrDimensionMismatch
	switch {
	case err == nil, search.Skipped(err):
	case errors.Is(err, search.ErrNotFound):
		return writeNotFound(c, err.Error())
	case errors.Is(err, ErrInvalidRequest):
		return writeInvalid(c, err)
	case errors.As(err, &dim):
		return writeBadRequest(c, err.Error())
	default:
		s.log.Error("search failed", "error", err)
		return writeServerError(c, err)
	}
	results := out.Results
	if results == nil {
		results = []ranker.Result{}
	}
	return c.JSON(http.StatusOK, SearchResponse{
		ID:        newSearchID(),
		Object:    "search.result",
		Created:   s.clock().Unix(),
		Results:   results,
		Dropped:   out.Dropped,
		Reason:    out.Reason,
		ElapsedMS: float64(out.Elapsed.Microseconds()) / 1000,
		IndexSize: out.IndexSize,
	})
}
