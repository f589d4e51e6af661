package domain

import "strings"

// Sidebar categories
const (
	CategoryAll    = "All"
	CategoryCadets = "Cadets"
	CategorySUO    = "SUO"
	CategoryANO    = "ANO"
	CategoryAlumni = "Alumni"
	CategoryGroups = "Groups"
)

// ListFilter narrows the chat list or the contacts directory.
type ListFilter string

const (
	FilterAll    ListFilter = "all"
	FilterUnread ListFilter = "unread"
	FilterGroups ListFilter = "groups"
	FilterCadets ListFilter = "cadets"
	FilterSUO    ListFilter = "suo"
	FilterAlumni ListFilter = "alumni"
	FilterANO    ListFilter = "ano"
)

// ParseListFilter falls back to FilterAll for unknown values.
func ParseListFilter(raw string) ListFilter {
	f := ListFilter(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FilterAll, FilterUnread, FilterGroups, FilterCadets, FilterSUO, FilterAlumni, FilterANO:
		return f
	}
	return FilterAll
}

// Category returns the role category a filter selects, or "" for non-category filters.
func (f ListFilter) Category() string {
	switch f {
	case FilterCadets:
		return CategoryCadets
	case FilterSUO:
		return CategorySUO
	case FilterAlumni:
		return CategoryAlumni
	case FilterANO:
		return CategoryANO
	}
	return ""
}
