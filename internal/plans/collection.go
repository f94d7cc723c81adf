package plans

import (
	"context"
	"errors"
	"log"
	"sync"

	"nutrietary-client/internal/api"
	"nutrietary-client/internal/session"
)

// PerPage is the fixed page size requested from the backend.
const PerPage = 10

// PageWindowSize bounds how many numbered page buttons are shown. It is a
// presentation bound only; navigation past it goes through prev/next.
const PageWindowSize = 5

// Phase is the load state of the collection view.
type Phase string

const (
	PhaseIdle    Phase = "IDLE"
	PhaseLoading Phase = "LOADING"
	PhaseLoaded  Phase = "LOADED"
	PhaseErrored Phase = "ERRORED"
)

var (
	// ErrPageOutOfRange rejects a fetch for a page below 1 or past the
	// last known page.
	ErrPageOutOfRange = errors.New("page out of range")
	// ErrFetchInFlight rejects deletion while a fetch for the same
	// collection is outstanding.
	ErrFetchInFlight = errors.New("a fetch is in progress, try again shortly")
	// ErrNoPendingDelete rejects a confirm without a prior selection.
	ErrNoPendingDelete = errors.New("no deletion pending confirmation")
	// ErrUnknownPlan rejects operations on a plan not in the current page.
	ErrUnknownPlan = errors.New("plan not found on the current page")
)

// View is an immutable snapshot of the collection state. The deletion
// reducer operates on Views so the page-rollback rule stays a pure function,
// independently testable from the network call.
type View struct {
	Phase         Phase
	Items         []api.MealPlan
	Page          int
	Total         int
	Expanded      int64 // plan ID, 0 = none
	PendingDelete int64 // plan ID awaiting confirmation, 0 = none
}

// TotalPages returns ceil(total/PerPage).
func (v View) TotalPages() int {
	return TotalPages(v.Total, PerPage)
}

// TotalPages is the pagination bound: ceil(total/perPage).
func TotalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// PageWindow returns the numbered pages to display: the first
// min(totalPages, PageWindowSize) numbers.
func PageWindow(totalPages int) []int {
	n := totalPages
	if n > PageWindowSize {
		n = PageWindowSize
	}
	pages := make([]int, 0, n)
	for p := 1; p <= n; p++ {
		pages = append(pages, p)
	}
	return pages
}

// Collection manages one user's paginated meal-plan view. All state is
// in-memory; the server stays authoritative for items and totals.
type Collection struct {
	client  api.Client
	session *session.Store

	mu       sync.Mutex
	view     View
	fetchSeq uint64
	fetching bool
}

// NewCollection creates an idle collection positioned on page 1.
func NewCollection(client api.Client, sess *session.Store) *Collection {
	return &Collection{
		client:  client,
		session: sess,
		view: View{
			Phase: PhaseIdle,
			Page:  1,
		},
	}
}

// Snapshot returns a copy of the current view for rendering.
func (c *Collection) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.view
	v.Items = append([]api.MealPlan(nil), c.view.Items...)
	return v
}

// FetchPage loads the given page, replacing items and total on success and
// leaving prior state untouched on failure. A page change while a fetch is
// outstanding does not cancel it; the earlier response is recognized by its
// sequence tag and discarded on arrival so stale data can never overwrite a
// newer page.
func (c *Collection) FetchPage(ctx context.Context, page int) error {
	c.mu.Lock()
	if page < 1 {
		c.mu.Unlock()
		return ErrPageOutOfRange
	}
	if tp := c.view.TotalPages(); c.view.Phase == PhaseLoaded && tp > 0 && page > tp {
		c.mu.Unlock()
		return ErrPageOutOfRange
	}
	c.fetchSeq++
	seq := c.fetchSeq
	c.fetching = true
	c.view.Phase = PhaseLoading
	c.mu.Unlock()

	resp, err := c.client.ListMealPlans(ctx, c.session.Token(), page, PerPage)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.fetchSeq {
		log.Printf("plans: discarding stale response for page %d (seq %d, current %d)", page, seq, c.fetchSeq)
		return nil
	}
	c.fetching = false

	if err != nil {
		log.Printf("plans: fetch page %d failed: %v", page, err)
		c.view.Phase = PhaseErrored
		return err
	}

	c.view.Phase = PhaseLoaded
	c.view.Items = resp.Plans
	c.view.Total = resp.Total
	c.view.Page = page
	if c.view.Expanded != 0 && !containsPlan(resp.Plans, c.view.Expanded) {
		c.view.Expanded = 0
	}
	return nil
}

// RequestDelete records a plan as pending deletion, awaiting explicit
// confirmation. Deletion is refused while a fetch is outstanding.
func (c *Collection) RequestDelete(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetching {
		return ErrFetchInFlight
	}
	if !containsPlan(c.view.Items, id) {
		return ErrUnknownPlan
	}
	c.view.PendingDelete = id
	return nil
}

// CancelDelete clears the pending deletion selection.
func (c *Collection) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.PendingDelete = 0
}

// ConfirmDelete fires the deletion for the pending selection. The selection
// is cleared whether the call succeeds or fails. On success the local view is
// reconciled; refetch reports that the page changed (the sole item of a page
// past the first was removed) and the caller should reload.
func (c *Collection) ConfirmDelete(ctx context.Context) (refetch bool, err error) {
	c.mu.Lock()
	id := c.view.PendingDelete
	if id == 0 {
		c.mu.Unlock()
		return false, ErrNoPendingDelete
	}
	if c.fetching {
		c.mu.Unlock()
		return false, ErrFetchInFlight
	}
	c.mu.Unlock()

	err = c.client.DeleteMealPlan(ctx, c.session.Token(), id)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.PendingDelete = 0
	if err != nil {
		log.Printf("plans: delete %d failed: %v", id, err)
		return false, err
	}
	// A fetch started while the delete was outstanding could deliver the
	// removed item again; invalidate it so its response is discarded.
	c.fetchSeq++
	c.fetching = false
	c.view, refetch = applyDeleteSucceeded(c.view, id)
	return refetch, nil
}

// ToggleExpand switches the detail view for a plan. At most one plan is
// expanded at a time: expanding one collapses any other, and toggling the
// expanded plan collapses it. Unknown IDs are ignored.
func (c *Collection) ToggleExpand(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !containsPlan(c.view.Items, id) {
		return
	}
	if c.view.Expanded == id {
		c.view.Expanded = 0
		return
	}
	c.view.Expanded = id
}

// applyDeleteSucceeded is the pure state transition applied after the server
// confirmed a deletion: drop the item, decrement the total, collapse its
// detail view, and when the sole item of a page past the first was removed,
// step the page back so the view does not land on an empty page.
func applyDeleteSucceeded(v View, id int64) (View, bool) {
	kept := make([]api.MealPlan, 0, len(v.Items))
	for _, p := range v.Items {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(v.Items) {
		return v, false
	}

	v.Items = kept
	if v.Total > 0 {
		v.Total--
	}
	if v.Expanded == id {
		v.Expanded = 0
	}
	if len(kept) == 0 && v.Page > 1 {
		v.Page--
		return v, true
	}
	return v, false
}

func containsPlan(items []api.MealPlan, id int64) bool {
	for _, p := range items {
		if p.ID == id {
			return true
		}
	}
	return false
}
