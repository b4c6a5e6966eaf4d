package apihttp

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"chartsight/internal/analysis"
	"chartsight/internal/engine"
	"chartsight/internal/logger"
	"chartsight/internal/provider"
	"chartsight/internal/render"
	"chartsight/internal/store/history"
)

const (
	maxUploadBytes = 8 << 20
	maxImages      = 4
)

// Per-request key headers. A present header overrides the configured
// provider key for that request only.
const (
	headerGroqKey       = "x-api-key"
	headerOpenAIKey     = "x-openai-key"
	headerOpenRouterKey = "x-openrouter-key"
	headerStream        = "x-stream"
)

type handlers struct {
	engine *engine.Engine
	store  *history.Store
}

func (h *handlers) handleAnalyze(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected multipart form upload"})
		return
	}

	files := formFiles(form)
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no screenshot uploaded; attach at least one image under 'files'"})
		return
	}
	if len(files) > maxImages {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many images; at most " + strconv.Itoa(maxImages) + " per request"})
		return
	}

	images := make([]engine.Image, 0, len(files))
	for _, fh := range files {
		img, err := readImage(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		images = append(images, img)
	}

	var meta engine.Meta
	if raw := firstValue(form, "meta"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "meta field is not valid JSON"})
			return
		}
	}

	req := engine.Request{
		Meta:   meta,
		Images: images,
		Keys: provider.Keys{
			Groq:       strings.TrimSpace(c.GetHeader(headerGroqKey)),
			OpenAI:     strings.TrimSpace(c.GetHeader(headerOpenAIKey)),
			OpenRouter: strings.TrimSpace(c.GetHeader(headerOpenRouterKey)),
		},
	}

	if c.GetHeader(headerStream) == "1" || c.Query("stream") == "1" {
		h.analyzeStream(c, req)
		return
	}

	plan, err := h.engine.Analyze(c.Request.Context(), req, nil)
	if err != nil {
		logger.Errorf("analyze failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *handlers) analyzeStream(c *gin.Context, req engine.Request) {
	w := newSSEWriter(c)
	if w == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported by this connection"})
		return
	}
	_, err := h.engine.Analyze(c.Request.Context(), req, w.Emit)
	if err != nil {
		w.Emit("error", gin.H{"error": "analysis failed"})
		return
	}
	w.Emit("end", gin.H{"ok": true})
}

func (h *handlers) handleHistoryList(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	records, err := h.store.List(c.Request.Context(), limit, offset)
	if err != nil {
		logger.Errorf("history list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": records, "count": len(records)})
}

func (h *handlers) handleHistoryGet(c *gin.Context) {
	rec, ok := h.loadRecord(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handlers) handleHistorySummary(c *gin.Context) {
	rec, ok := h.loadRecord(c)
	if !ok {
		return
	}
	var plan analysis.Plan
	if err := json.Unmarshal(rec.Result, &plan); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored result is unreadable"})
		return
	}
	level := render.LevelConcise
	if c.Query("level") == string(render.LevelLearning) {
		level = render.LevelLearning
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(render.Markdown(&plan, level)))
}

func (h *handlers) handleHistoryDelete(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}
	err := h.store.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	if err != nil {
		logger.Errorf("history delete failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *handlers) loadRecord(c *gin.Context) (*history.Record, bool) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return nil, false
	}
	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return nil, false
	}
	if err != nil {
		logger.Errorf("history get failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
		return nil, false
	}
	return rec, true
}

// formFiles accepts the canonical "files" field plus the aliases a few
// upload widgets default to.
func formFiles(form *multipart.Form) []*multipart.FileHeader {
	for _, field := range []string{"files", "file", "images", "image"} {
		if fhs := form.File[field]; len(fhs) > 0 {
			return fhs
		}
	}
	return nil
}

func firstValue(form *multipart.Form, field string) string {
	if vs := form.Value[field]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

func readImage(fh *multipart.FileHeader) (engine.Image, error) {
	if fh.Size > maxUploadBytes {
		return engine.Image{}, errors.New("image too large: " + fh.Filename)
	}
	// Upload widgets often send octet-stream for images; only reject
	// declared non-image types.
	mime := fh.Header.Get("Content-Type")
	if mime != "" && mime != "application/octet-stream" && !strings.HasPrefix(mime, "image/") {
		return engine.Image{}, errors.New("unsupported upload type: " + mime)
	}
	if mime == "application/octet-stream" {
		mime = ""
	}
	f, err := fh.Open()
	if err != nil {
		return engine.Image{}, errors.New("cannot read upload: " + fh.Filename)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return engine.Image{}, errors.New("cannot read upload: " + fh.Filename)
	}
	if len(data) > maxUploadBytes {
		return engine.Image{}, errors.New("image too large: " + fh.Filename)
	}
	return engine.Image{Name: fh.Filename, MIME: mime, Data: data}, nil
}
