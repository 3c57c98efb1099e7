package pagination

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// SortKeys maps the values a listing accepts in ?sort= to the column they
// order by. A leading "-" in the query value sorts descending.
type SortKeys map[string]string

// Params holds validated pagination parameters. OrderBy is empty unless the
// request named a known sort key; listings then use their default order.
type Params struct {
	Page    int
	Limit   int
	Offset  int
	OrderBy string
}

// Parse reads page, limit and sort from the query string. Out-of-range or
// malformed values fall back to the defaults; unknown sort keys are ignored.
func Parse(c *gin.Context, keys SortKeys) Params {
	page := queryInt(c, "page", DefaultPage)
	if page < 1 {
		page = DefaultPage
	}
	limit := queryInt(c, "limit", DefaultLimit)
	switch {
	case limit < MinLimit:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	return Params{
		Page:    page,
		Limit:   limit,
		Offset:  (page - 1) * limit,
		OrderBy: keys.orderBy(c.Query("sort")),
	}
}

func (k SortKeys) orderBy(raw string) string {
	raw = strings.TrimSpace(raw)
	dir := "ASC"
	if strings.HasPrefix(raw, "-") {
		dir = "DESC"
		raw = raw[1:]
	}
	col, ok := k[raw]
	if !ok {
		return ""
	}
	return col + " " + dir
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
