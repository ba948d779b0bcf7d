package repository

import (
	"strings"

	"github.com/shopspring/decimal"

	"lavka/internal/domain"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// orderSortColumns разрешённые поля сортировки и их колонки в БД
var orderSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"total":     "total",
	"status":    "status",
}

// OrderQuery фильтры, сортировка и пагинация списка заказов
type OrderQuery struct {
	Status    *domain.OrderStatus
	MinTotal  *decimal.Decimal
	MaxTotal  *decimal.Decimal
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Normalize приводит параметры к допустимым значениям: страница от единицы,
// лимит 1..100 (по умолчанию 10), сортировка только по разрешённым полям,
// по умолчанию createdAt по убыванию
func (q OrderQuery) Normalize() OrderQuery {
	if q.Page < 1 {
		q.Page = defaultPage
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if _, ok := orderSortColumns[q.SortBy]; !ok {
		q.SortBy = "createdAt"
	}
	if strings.EqualFold(q.SortOrder, "ASC") {
		q.SortOrder = "ASC"
	} else {
		q.SortOrder = "DESC"
	}
	return q
}

// Offset смещение выборки для нормализованного запроса
func (q OrderQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// SortColumn имя колонки для ORDER BY; запрос должен быть нормализован
func (q OrderQuery) SortColumn() string {
	return orderSortColumns[q.SortBy]
}

// matches проверяет заказ против фильтров запроса
func (q OrderQuery) matches(o domain.Order) bool {
	if q.Status != nil && o.Status != *q.Status {
		return false
	}
	if q.MinTotal != nil && o.Total.LessThan(*q.MinTotal) {
		return false
	}
	if q.MaxTotal != nil && o.Total.GreaterThan(*q.MaxTotal) {
		return false
	}
	return true
}

// Pagination метаданные постраничной выборки
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPagination собирает метаданные по нормализованному запросу
func NewPagination(q OrderQuery, total int64) Pagination {
	totalPages := total / int64(q.Limit)
	if total%int64(q.Limit) != 0 {
		totalPages++
	}
	return Pagination{
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    int64(q.Page) < totalPages,
		HasPrev:    q.Page > 1,
	}
}
