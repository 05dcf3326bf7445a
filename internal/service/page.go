package service

import "marketplace/internal/repository"

func pageOf[T any](items []T, page repository.Page, total int64) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{
		Items: items,
		Page:  page.Page,
		Limit: page.Limit,
		Total: total,
		Pages: page.Pages(total),
	}
}

// PageResult is one page of a listing.
type PageResult[T any] struct {
	Items []T
	Page  int64
	Limit int64
	Total int64
	Pages int64
}
