package manager

import (
	"context"
	"fmt"
)

// PageInfo describes the position of a page within a filtered listing.
type PageInfo struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalCount int  `json:"total_count"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Page is one page of session entries plus its pagination metadata.
type Page struct {
	Entries []Entry  `json:"sessions"`
	Info    PageInfo `json:"page_info"`
}

const defaultPageSize = 20

// ListUserSessionsPaginated returns one 1-based page of the user's
// sessions, newest first, optionally filtered by coarse status. Pages
// are computed after filtering, so TotalCount counts matching sessions
// only. A page past the end yields an empty page with valid metadata.
func (m *Manager) ListUserSessionsPaginated(ctx context.Context, userID string, page, pageSize int, status string) (Page, error) {
	if page < 1 {
		return Page{}, fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalidRequest, page)
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	all, err := m.ListUserSessions(ctx, userID, ListFilter{Status: status})
	if err != nil {
		return Page{}, err
	}

	total := len(all)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	var entries []Entry
	switch {
	case start >= total:
		entries = []Entry{}
	case end > total:
		entries = all[start:total]
	default:
		entries = all[start:end]
	}

	return Page{
		Entries: entries,
		Info: PageInfo{
			Page:       page,
			PageSize:   pageSize,
			TotalCount: total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1 && total > 0,
		},
	}, nil
}
