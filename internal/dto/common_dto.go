package dto

import "github.com/shopspring/decimal"

func init() {
	// Money is exchanged as JSON numbers; decoding accepts numbers or strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Envelope wraps every successful response body.
type Envelope[T any] struct {
	Data T `json:"data"`
}

// Page is the shape of list responses.
type Page[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// Paginacion is embedded in list filters bound from the query string.
type Paginacion struct {
	Page  int `form:"page,default=1"   validate:"min=1"`
	Limit int `form:"limit,default=50" validate:"min=1,max=200"`
}

func (p Paginacion) Offset() int { return (p.Page - 1) * p.Limit }

// Normalizar fills zero values for callers that bypass query binding.
func (p *Paginacion) Normalizar() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 || p.Limit > 200 {
		p.Limit = 50
	}
}
