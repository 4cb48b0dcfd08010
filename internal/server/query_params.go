package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// pagination reads offset and limit, defaulting to 0 and 10.
func pagination(c *gin.Context) (int, int, error) {
	offset, err := parseOptionalInt(c.Query("offset"), 0)
	if err != nil || offset < 0 {
		return 0, 0, newValidationError("offset", "invalid_offset", "offset must be a non-negative integer")
	}
	limit, err := parseOptionalInt(c.Query("limit"), defaultLimit)
	if err != nil || limit <= 0 || limit > maxLimit {
		return 0, 0, newValidationError("limit", "invalid_limit", "limit must be between 1 and 100")
	}
	return offset, limit, nil
}

func parseOptionalInt(value string, def int) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return def, nil
	}
	return strconv.Atoi(trimmed)
}
