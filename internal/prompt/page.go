package prompt

// Page is one screen of a paginated candidate list.
type Page struct {
	// Items are the candidates shown on this page.
	Items []string
	// Index is the zero-based page number after clamping.
	Index int
	// Count is the number of pages; zero for an empty list.
	Count int
	// Offset is the position of Items[0] in the full list.
	Offset int
	// Selected is the highlighted position in the full list, or -1.
	Selected int
	HasPrev  bool
	HasNext  bool
}

// Cursor returns the highlighted position within Items, or -1 when the
// selection is on another page.
func (p Page) Cursor() int {
	if p.Selected < p.Offset || p.Selected >= p.Offset+len(p.Items) {
		return -1
	}
	return p.Selected - p.Offset
}

// Paginate slices candidates into the page at pageIndex. Out-of-range page
// indices and selections are clamped; a non-positive pageSize shows
// everything on one page.
func Paginate(candidates []string, pageSize, pageIndex, selected int) Page {
	n := len(candidates)
	if n == 0 {
		return Page{Selected: -1}
	}
	if pageSize <= 0 || pageSize > n {
		pageSize = n
	}
	count := (n + pageSize - 1) / pageSize
	pageIndex = clamp(pageIndex, 0, count-1)
	offset := pageIndex * pageSize
	end := min(offset+pageSize, n)
	return Page{
		Items:    candidates[offset:end],
		Index:    pageIndex,
		Count:    count,
		Offset:   offset,
		Selected: clamp(selected, 0, n-1),
		HasPrev:  pageIndex > 0,
		HasNext:  pageIndex < count-1,
	}
}

// PageOf returns the page index holding position i.
func PageOf(i, pageSize int) int {
	if pageSize <= 0 || i < 0 {
		return 0
	}
	return i / pageSize
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
