package inquiry

import (
	"fmt"
	"sync"
	"time"

	"github.com/erazemk/sowa/internal/model"
)

// PageSize is the number of inquiries shown per page.
const PageSize = 10

// ListCacheKey is the query cache key of the public inquiry list.
const ListCacheKey = "public-inquiry"

// kst is the studio's time zone, used for list dates.
var kst = time.FixedZone("KST", 9*60*60)

// Item is an inquiry as shown in the public list.
type Item struct {
	ID        int64
	Title     string
	Name      string
	CreatedAt string
	HasReply  bool
}

// ToItems maps list records into display items.
func ToItems(records []model.InquiryListItem) []Item {
	items := make([]Item, 0, len(records))
	for _, r := range records {
		items = append(items, Item{
			ID:        r.ID,
			Title:     r.Name + "님의 문의",
			Name:      r.Name,
			CreatedAt: FormatDate(r.CreatedAt.Time),
			HasReply:  r.HasReply,
		})
	}
	return items
}

// FormatDate formats t as a Korean short date, e.g. "2024. 3. 5.".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(kst)
	return fmt.Sprintf("%d. %d. %d.", t.Year(), int(t.Month()), t.Day())
}

// TotalPages returns the number of pages for n items; there is always at
// least one page.
func TotalPages(n int) int {
	pages := (n + PageSize - 1) / PageSize
	if pages < 1 {
		return 1
	}
	return pages
}

// Page is one page of the list.
type Page struct {
	Items       []Item
	CurrentPage int
	TotalPages  int
	TotalCount  int
}

// Pages lists the page numbers for pagination links.
func (p Page) Pages() []int {
	pages := make([]int, p.TotalPages)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}

// List holds the viewer's current page.
type List struct {
	mu   sync.Mutex
	page int
}

// NewList starts on the first page.
func NewList() *List {
	return &List{page: 1}
}

// CurrentPage returns the stored page number.
func (l *List) CurrentPage() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.page
}

// SetPage stores a page number and reports whether it changed. Values below
// 1 are stored as 1; the upper bound is applied by Paginate.
func (l *List) SetPage(page int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if page < 1 {
		page = 1
	}
	changed := page != l.page
	l.page = page
	return changed
}

// ResetToFirstPage goes back to page 1.
func (l *List) ResetToFirstPage() {
	l.SetPage(1)
}

// Paginate slices items to the current page. When the list has shrunk below
// the current page, the page is clamped to the last one and stored.
func (l *List) Paginate(items []Item) Page {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := TotalPages(len(items))
	if l.page > total {
		l.page = total
	}
	if l.page < 1 {
		l.page = 1
	}

	start := (l.page - 1) * PageSize
	end := start + PageSize
	if end > len(items) {
		end = len(items)
	}

	return Page{
		Items:       items[start:end],
		CurrentPage: l.page,
		TotalPages:  total,
		TotalCount:  len(items),
	}
}
