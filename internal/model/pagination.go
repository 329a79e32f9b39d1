package model

import (
	"github.com/guregu/null/v6"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PaginationParams represents page based pagination over a listing
type PaginationParams struct {
	Page  null.Int32 `query:"page" validate:"omitnil,gt=0"`
	Limit int32      `query:"limit" validate:"omitempty,gt=0,lte=100"`
}

func (p *PaginationParams) GetPage() int32 {
	if !p.Page.Valid || p.Page.Int32 <= 0 {
		p.Page.SetValid(1)
	}
	return p.Page.Int32
}

func (p *PaginationParams) GetLimit() int32 {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p.Limit
}

func (p *PaginationParams) Offset() int32 {
	return (p.GetPage() - 1) * p.GetLimit()
}

// PaginateResult represents a paginated result set
type PaginateResult[T any] struct {
	PageParams PaginationParams
	Data       []T
	Total      int64
}

func (p PaginateResult[T]) NextPage() null.Int32 {
	if int64(p.PageParams.GetPage())*int64(p.PageParams.GetLimit()) < p.Total {
		return null.Int32From(p.PageParams.GetPage() + 1)
	}
	return null.Int32{}
}
