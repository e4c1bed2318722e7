package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-admin-api/internal/models"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// pageParams reads page and limit, falling back to the defaults on bad input.
func pageParams(c *gin.Context) (int, int) {
	page, limit := 1, models.DefaultPageSize
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(models.DefaultPageSize))); err == nil {
		limit = v
	}
	return page, limit
}

// queryBool parses an optional boolean query parameter.
func queryBool(c *gin.Context, key string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, key+" must be true or false"), key, key+" must be true or false")
	}
	return &v, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, key+" must use format YYYY-MM-DD"), key, key+" must use format YYYY-MM-DD")
	}
	return &v, nil
}

func pathIndex(c *gin.Context, key string) (int, error) {
	v, err := strconv.Atoi(c.Param(key))
	if err != nil || v < 0 {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return v, nil
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}
