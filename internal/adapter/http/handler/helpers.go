package handler

import (
	"errors"
	"io"
	"strconv"

	"solarchain-ledger/internal/adapter/http/middleware"
	"solarchain-ledger/pkg/apperror"
	"solarchain-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// caller returns the authenticated subject, writing AUTH_003 if absent.
func caller(c *gin.Context) (string, bool) {
	subject, ok := middleware.Subject(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return "", false
	}
	return subject, true
}

// assetIDParam parses the :asset_id path parameter, writing REQ_001 if malformed.
func assetIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("asset_id"))
	if err != nil {
		response.Error(c, apperror.Validation("asset_id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds and validates a required body, writing REQ_001 on failure.
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}

// pageParams reads page and page_size, falling back to 1 and 20.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// int64Query parses an optional integer query parameter.
func int64Query(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperror.Validation(name + " must be an integer")
	}
	return &v, nil
}
