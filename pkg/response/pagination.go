package response

import (
	"github.com/guregu/null/v6"

	"github.com/beanbocchi/parcel/internal/model"
)

type PaginationResponse[T any] struct {
	CommonResponse
	Data     []T      `json:"data"`
	PageMeta PageMeta `json:"pagination"`
}

type PageMeta struct {
	Limit    int32      `json:"limit"`
	Total    null.Int64 `json:"total"`
	Page     null.Int32 `json:"page"`
	NextPage null.Int32 `json:"next_page"`
}

// FromPaginateResult maps a page of T onto a page of R using conv.
func FromPaginateResult[T, R any](result model.PaginateResult[T], conv func(T) R) PaginationResponse[R] {
	data := make([]R, 0, len(result.Data))
	for _, item := range result.Data {
		data = append(data, conv(item))
	}

	return PaginationResponse[R]{
		CommonResponse: OK(),
		Data:           data,
		PageMeta: PageMeta{
			Limit:    result.PageParams.GetLimit(),
			Total:    null.IntFrom(result.Total),
			Page:     null.Int32From(result.PageParams.GetPage()),
			NextPage: result.NextPage(),
		},
	}
}
