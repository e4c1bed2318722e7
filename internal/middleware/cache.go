package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-admin-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cacheHit"
)

// WithResponseMeta initialises response metadata storage and records the
// request start for ExtractMeta.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, map[string]interface{}{"startedAt": time.Now()})
		c.Next()
	}
}

// SetCacheHit records whether the payload of the current response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	meta := ensureMeta(c)
	meta[cacheHitKey] = hit
}

// ExtractMeta returns the metadata to render with the response: cache hit
// flag, request id and processing time so far.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta := ensureMeta(c)
	out := make(map[string]interface{}, len(meta)+2)
	for key, value := range meta {
		if key == "startedAt" {
			continue
		}
		out[key] = value
	}
	if started, ok := meta["startedAt"].(time.Time); ok {
		out["processingTimeMs"] = time.Since(started).Milliseconds()
	}
	if reqID := requestid.Value(c); reqID != "" {
		out["requestId"] = reqID
	}
	return out
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	newMeta := make(map[string]interface{})
	c.Set(responseMetaKey, newMeta)
	return newMeta
}
