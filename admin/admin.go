// Package admin exposes cache maintenance over HTTP.
//
//	curl -X POST http://localhost:9926/api/invalidate-cache \
//	  -H "Content-Type: application/json" \
//	  -d '{"tag":"catalog"}'
package admin

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unkn0wn-root/tagcache"
)

// DefaultTags is the closed set of tags an operator may revalidate.
var DefaultTags = []string{"product", "category", "catalog"}

type Config struct {
	// Allowed tags; nil => DefaultTags. Matching is case-insensitive.
	Allowed []string
	Logger  tagcache.Logger
}

type Handler struct {
	cache   tagcache.Handler
	allowed map[string]struct{}
	list    string
	log     tagcache.Logger
}

func New(cache tagcache.Handler, cfg Config) *Handler {
	tags := cfg.Allowed
	if tags == nil {
		tags = DefaultTags
	}
	h := &Handler{cache: cache, allowed: make(map[string]struct{}, len(tags)), log: cfg.Logger}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		t = normalize(t)
		if t == "" {
			continue
		}
		if _, dup := h.allowed[t]; dup {
			continue
		}
		h.allowed[t] = struct{}{}
		names = append(names, t)
	}
	if cfg.Allowed != nil {
		sort.Strings(names)
	}
	h.list = strings.Join(names, ", ")
	if h.log == nil {
		h.log = tagcache.NopLogger{}
	}
	return h
}

// Register mounts the admin routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/api/invalidate-cache", h.invalidate)
}

type invalidateRequest struct {
	Tag any `json:"tag"`
}

func (h *Handler) invalidate(c *gin.Context) {
	var req invalidateRequest
	// a malformed body is treated like a missing tag
	_ = c.ShouldBindJSON(&req)

	s, _ := req.Tag.(string)
	tag := normalize(s)
	if _, ok := h.allowed[tag]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": `Invalid or missing "tag". Allowed: ` + h.list,
		})
		return
	}

	if err := h.cache.RevalidateByTag(c.Request.Context(), tag); err != nil {
		h.log.Error("invalidate-cache failed", tagcache.Fields{"tag": tag, "err": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.log.Info("invalidate-cache", tagcache.Fields{"tag": tag})
	c.JSON(http.StatusOK, gin.H{"revalidated": tag})
}

func normalize(t string) string { return strings.ToLower(strings.TrimSpace(t)) }
