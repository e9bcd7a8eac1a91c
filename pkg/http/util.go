package http

import (
	xutil "MorningBrief/pkg/util"

	"github.com/labstack/echo/v4"
)

// QueryList reads a comma separated query parameter, falling back to def when it
// is absent or blank.
func QueryList(c echo.Context, key string, def []string) []string {
	if v := xutil.SplitCSV(c.QueryParam(key)); len(v) > 0 {
		return v
	}
	return def
}
