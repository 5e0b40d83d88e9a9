package crawl

import (
	"sync"

	"github.com/bartdag/linkvalidator/internal/model"
	"github.com/bartdag/linkvalidator/internal/urlutil"
)

// WorkItem is one unit of crawl work. A URL is enqueued at most once
// regardless of how many pages reference it; the SiteModel's page map is
// the dedup index.
type WorkItem struct {
	// URL is the canonical URL to fetch.
	URL urlutil.CanonicalURL

	// Depth is the discovery depth, zero for start URLs.
	Depth int

	// Origin is the reference that discovered the URL, nil for start URLs.
	Origin *model.PageRef

	// Admission is the classification computed at admission time. Only
	// CrawlAndFollow and FetchOnly items are queued.
	Admission urlutil.Admission

	// Tag is the HTML tag of the originating reference, used to choose
	// HEAD for asset references.
	Tag string

	// Site is the start host whose crawl discovered this item. It scopes
	// admission in multi-site mode and is inherited by discovered
	// references.
	Site string
}

// workQueue is the FIFO of pending work plus the termination counter. The
// outstanding count covers queued items and items popped but not yet
// reported done; when it drops to zero the queue closes itself and every
// blocked Pop returns.
type workQueue struct {
	mu          sync.Mutex
	cond        *sync.Cond
	items       []WorkItem
	outstanding int
	closed      bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues an item and raises the outstanding count. Pushes after
// close are dropped; they can only happen while a shutdown is aborting the
// run.
func (q *workQueue) Push(item WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, item)
	q.outstanding++
	q.cond.Signal()
}

// Pop blocks until an item is available or the queue is closed. The second
// return value is false only on close.
func (q *workQueue) Pop() (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return WorkItem{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// TryPop returns an item without blocking.
func (q *workQueue) TryPop() (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return WorkItem{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// ItemDone lowers the outstanding count after an item's outcome has been
// fully recorded, including any admissions it caused. Callers must admit
// discovered references before calling ItemDone, otherwise the count can
// reach zero while work remains.
func (q *workQueue) ItemDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.outstanding--
	if q.outstanding <= 0 {
		q.closed = true
		q.cond.Broadcast()
	}
}

// CloseIfIdle closes the queue when nothing is queued or outstanding.
// Called once after seeding: when every start URL was skipped at admission
// no item will ever arrive, and without this the workers would wait on an
// empty queue forever.
func (q *workQueue) CloseIfIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.outstanding == 0 {
		q.closed = true
		q.cond.Broadcast()
	}
}

// Close wakes all waiters and refuses further pushes. Used to abort a run
// on a fatal error.
func (q *workQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
