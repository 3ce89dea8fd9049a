package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"assetsearch/internal/catalog"
	"assetsearch/internal/pricing"
	"assetsearch/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State int

const (
	Idle State = iota
	PendingFilter
	ShowingSuggestions
	Fetching
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingFilter:
		return "pending"
	case ShowingSuggestions:
		return "showing"
	case Fetching:
		return "fetching"
	default:
		return "unknown"
	}
}

type Key int

const (
	KeyUp Key = iota + 1
	KeyDown
	KeyEnter
	KeyEscape
)

// Catalog is the part of catalog.AssetCache a controller reads.
type Catalog interface {
	Preload(ctx context.Context) error
	Subscribe(l catalog.Listener) (unsubscribe func())
	FilterAssets(query string, limit int) []catalog.AssetRecord
	Browse(limit int) []catalog.AssetRecord
}

// Prices is the part of pricing.Enricher a controller uses. It may be shared
// by many controllers; each controller tracks its own selections.
type Prices interface {
	Enrich(ctx context.Context, t pricing.Ticket, deliver func(pricing.Update))
}

type Options struct {
	Debounce       time.Duration
	BlurGrace      time.Duration
	MaxSuggestions int
	BrowseLimit    int
	MinQueryLength int
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 200 * time.Millisecond
	}
	if o.BlurGrace <= 0 {
		o.BlurGrace = 150 * time.Millisecond
	}
	if o.MaxSuggestions <= 0 {
		o.MaxSuggestions = 10
	}
	if o.BrowseLimit <= 0 {
		o.BrowseLimit = 20
	}
	// shorter queries would never match in the catalog filter anyway
	if o.MinQueryLength < catalog.MinQueryLength {
		o.MinQueryLength = catalog.MinQueryLength
	}
	return o
}

// Callbacks are the embedder's hooks. Any of them may be nil.
type Callbacks struct {
	OnChange      func(query string)
	OnSelect      func(asset catalog.AssetRecord)
	OnPriceUpdate func(u pricing.Update)
	OnSuggestions func(v View)
}

// View is what a dropdown needs to render.
type View struct {
	State       State
	Query       string
	Suggestions []catalog.AssetRecord
	Highlight   int // -1 when nothing is highlighted
	Loading     bool
}

func (v View) Open() bool {
	return v.State == ShowingSuggestions
}

// NoResults reports an open dropdown with nothing in it.
func (v View) NoResults() bool {
	return v.Open() && len(v.Suggestions) == 0
}

// Controller is one search widget's state machine. All methods are safe for
// concurrent use; callbacks never run while the controller's lock is held.
type Controller struct {
	catalog Catalog
	prices  Prices
	opts    Options
	cb      Callbacks
	logger  *zap.Logger
	events  *dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	query       string
	suggestions []catalog.AssetRecord
	highlight   int
	loading     bool
	tracker     pricing.Tracker
	ticket      pricing.Ticket
	unsubscribe func()
	mounted     bool
	closed      bool

	debounce    *time.Timer
	debounceGen uint64
	blur        *time.Timer
	blurGen     uint64
}

func New(cat Catalog, prices Prices, opts Options, cb Callbacks, log *zap.Logger) *Controller {
	l := logger.OrNop(log).Named("search").With(zap.String("session", uuid.NewString()))
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		catalog:   cat,
		prices:    prices,
		opts:      opts.withDefaults(),
		cb:        cb,
		logger:    l,
		events:    newDispatcher(l),
		ctx:       ctx,
		cancel:    cancel,
		highlight: -1,
	}
}

// Mount subscribes to catalog loading events and starts a background
// preload. Calling it more than once has no further effect.
func (c *Controller) Mount(ctx context.Context) {
	c.mu.Lock()
	if c.mounted || c.closed {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	c.mu.Unlock()

	unsub := c.catalog.Subscribe(c.onLoading)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsub()
		return
	}
	c.unsubscribe = unsub
	c.mu.Unlock()

	go func() {
		if err := c.catalog.Preload(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("catalog preload failed", zap.Error(err))
		}
	}()
}

func (c *Controller) onLoading(ev catalog.LoadingEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.loading = ev.Loading
	if !ev.Loading && c.state == ShowingSuggestions {
		c.showLocked(c.listFor(c.query))
		return
	}
	c.emitViewLocked()
}

// Input records the query text as typed.
func (c *Controller) Input(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.query = q
	if c.cb.OnChange != nil {
		onChange := c.cb.OnChange
		c.events.post(func() { onChange(q) })
	}

	switch n := utf8.RuneCountInString(strings.TrimSpace(q)); {
	case n == 0:
		c.stopDebounceLocked()
		c.showLocked(c.catalog.Browse(c.opts.BrowseLimit))
	case n < c.opts.MinQueryLength:
		c.closeLocked()
	default:
		c.armDebounceLocked()
	}
}

// Focus cancels a pending blur. An empty query opens the browse list.
func (c *Controller) Focus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.stopBlurLocked()
	if strings.TrimSpace(c.query) == "" {
		c.stopDebounceLocked()
		c.showLocked(c.catalog.Browse(c.opts.BrowseLimit))
	}
}

func (c *Controller) Key(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	switch k {
	case KeyUp, KeyDown:
		n := len(c.suggestions)
		if c.state != ShowingSuggestions || n == 0 {
			return
		}
		step := 1
		if k == KeyUp {
			step = -1
		}
		if c.highlight < 0 {
			if step > 0 {
				c.highlight = 0
			} else {
				c.highlight = n - 1
			}
		} else {
			c.highlight = (c.highlight + step + n) % n
		}
		c.emitViewLocked()
	case KeyEnter:
		if c.state == ShowingSuggestions && c.highlight >= 0 && c.highlight < len(c.suggestions) {
			c.selectLocked(c.highlight)
		}
	case KeyEscape:
		if c.state == PendingFilter || c.state == ShowingSuggestions {
			c.closeLocked()
		}
	}
}

// Click selects suggestion i of the open dropdown. It reports whether a
// selection happened.
func (c *Controller) Click(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state != ShowingSuggestions || i < 0 || i >= len(c.suggestions) {
		return false
	}
	c.selectLocked(i)
	return true
}

// Blur closes the dropdown after the grace period, leaving room for a click
// on a suggestion to land first.
func (c *Controller) Blur() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.stopBlurLocked()
	gen := c.blurGen
	c.blur = time.AfterFunc(c.opts.BlurGrace, func() { c.fireBlur(gen) })
}

func (c *Controller) fireBlur(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.blurGen {
		return
	}
	c.blur = nil
	if c.state == PendingFilter || c.state == ShowingSuggestions {
		c.closeLocked()
	}
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Flush waits until every callback triggered so far has been delivered.
// It must not be called from inside a callback.
func (c *Controller) Flush() {
	c.events.flush()
}

// Close stops timers, detaches from the catalog, abandons any in-flight
// price lookup and stops callback delivery once queued callbacks have run.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopDebounceLocked()
	c.stopBlurLocked()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	c.cancel()
	c.events.stop()
}

func (c *Controller) armDebounceLocked() {
	c.stopDebounceLocked()
	gen := c.debounceGen
	c.debounce = time.AfterFunc(c.opts.Debounce, func() { c.fireDebounce(gen) })
	c.state = PendingFilter
	c.emitViewLocked()
}

func (c *Controller) fireDebounce(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.debounceGen || c.state != PendingFilter {
		return
	}
	c.debounce = nil
	c.showLocked(c.catalog.FilterAssets(c.query, c.opts.MaxSuggestions))
}

// stopDebounceLocked invalidates any armed filter timer, including one whose
// callback is already waiting on the lock.
func (c *Controller) stopDebounceLocked() {
	c.debounceGen++
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}

func (c *Controller) stopBlurLocked() {
	c.blurGen++
	if c.blur != nil {
		c.blur.Stop()
		c.blur = nil
	}
}

func (c *Controller) listFor(q string) []catalog.AssetRecord {
	if strings.TrimSpace(q) == "" {
		return c.catalog.Browse(c.opts.BrowseLimit)
	}
	return c.catalog.FilterAssets(q, c.opts.MaxSuggestions)
}

func (c *Controller) showLocked(items []catalog.AssetRecord) {
	c.suggestions = items
	c.highlight = -1
	c.state = ShowingSuggestions
	c.emitViewLocked()
}

func (c *Controller) closeLocked() {
	c.stopDebounceLocked()
	c.suggestions = nil
	c.highlight = -1
	if c.state != Fetching {
		c.state = Idle
	}
	c.emitViewLocked()
}

func (c *Controller) selectLocked(i int) {
	asset := c.suggestions[i]

	c.stopDebounceLocked()
	c.stopBlurLocked()
	c.suggestions = nil
	c.highlight = -1
	c.query = asset.Symbol
	c.state = Fetching

	t := c.tracker.Track(asset.Symbol)
	c.ticket = t

	c.logger.Debug("asset selected", zap.String("symbol", asset.Symbol), zap.String("id", string(asset.ID)))

	if c.cb.OnSelect != nil {
		onSelect := c.cb.OnSelect
		c.events.post(func() { onSelect(asset) })
	}
	c.postPriceLocked(pricing.Update{Symbol: asset.Symbol, Fetching: true})
	c.emitViewLocked()

	ctx := c.ctx
	go c.prices.Enrich(ctx, t, func(u pricing.Update) { c.applyPrice(t, u) })
}

func (c *Controller) applyPrice(t pricing.Ticket, u pricing.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || t != c.ticket {
		return
	}

	if c.state == Fetching {
		c.state = Idle
	}
	c.postPriceLocked(u)
	c.emitViewLocked()
}

func (c *Controller) postPriceLocked(u pricing.Update) {
	if c.cb.OnPriceUpdate == nil {
		return
	}
	onPrice := c.cb.OnPriceUpdate
	c.events.post(func() { onPrice(u) })
}

func (c *Controller) emitViewLocked() {
	if c.cb.OnSuggestions == nil {
		return
	}
	v := c.viewLocked()
	onSuggestions := c.cb.OnSuggestions
	c.events.post(func() { onSuggestions(v) })
}

func (c *Controller) viewLocked() View {
	var items []catalog.AssetRecord
	if len(c.suggestions) > 0 {
		items = make([]catalog.AssetRecord, len(c.suggestions))
		copy(items, c.suggestions)
	}
	return View{
		State:       c.state,
		Query:       c.query,
		Suggestions: items,
		Highlight:   c.highlight,
		Loading:     c.loading,
	}
}
