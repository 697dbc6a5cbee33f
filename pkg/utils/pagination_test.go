package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPaginationParams(t *testing.T) {
	p := GetPaginationParams(0, -1)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.Limit)

	p = GetPaginationParams(2, 50)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 50, p.Limit)

	p = GetPaginationParams(1, 5000)
	assert.Equal(t, MaxPageSize, p.Limit)
}

func TestCalculateOffset(t *testing.T) {
	assert.Equal(t, 0, PaginationParams{Page: 1, Limit: 20}.CalculateOffset())
	assert.Equal(t, 40, PaginationParams{Page: 3, Limit: 20}.CalculateOffset())
	assert.Equal(t, 0, PaginationParams{Page: 0, Limit: 20}.CalculateOffset())
}

func TestCalculateMeta(t *testing.T) {
	meta := CalculateMeta(101, 2, 20)
	assert.Equal(t, 2, meta.Page)
	assert.Equal(t, int64(101), meta.TotalCount)
	assert.Equal(t, 6, meta.TotalPages)

	noLimit := CalculateMeta(15, 1, 0)
	assert.Equal(t, 15, noLimit.Limit)
	assert.Equal(t, 1, noLimit.TotalPages)
}
