package dashboard

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"stockdash/internal/provider"
	"stockdash/internal/scheduler"
)

// Source serves the proxy endpoints a session reads. proxy.Local and
// proxyclient.Client both satisfy it.
type Source interface {
	Quote(ctx context.Context, symbol string) (provider.Quote, error)
	History(ctx context.Context, symbol string) (provider.HistoricalSeries, error)
	Search(ctx context.Context, query string) ([]provider.SearchMatch, error)
}

// View selects what the dashboard shows below the search bar.
type View string

const (
	ViewTable View = "table"
	ViewChart View = "chart"
)

// ChartMode selects the chart series.
type ChartMode string

const (
	ChartPrice      ChartMode = "price"
	ChartChange     ChartMode = "change"
	ChartHistorical ChartMode = "historical"
)

// ParseChartMode accepts the three chart mode names.
func ParseChartMode(s string) (ChartMode, bool) {
	switch m := ChartMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ChartPrice, ChartChange, ChartHistorical:
		return m, true
	}
	return "", false
}

type SessionConfig struct {
	Symbols         []string
	Queue           QueueConfig
	RefreshInterval time.Duration
	SearchDebounce  time.Duration
	MinQueryLength  int
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Symbols:         slices.Clone(DefaultSymbols),
		Queue:           DefaultQueueConfig(),
		RefreshInterval: 5 * time.Minute,
		SearchDebounce:  500 * time.Millisecond,
		MinQueryLength:  2,
	}
}

// Snapshot is the rendered state of a session.
type Snapshot struct {
	Quotes         []provider.Quote       `json:"quotes"`
	SearchQuery    string                 `json:"searchQuery"`
	SearchSymbol   string                 `json:"searchSymbol"`
	SearchResults  []provider.SearchMatch `json:"searchResults"`
	Searching      bool                   `json:"searching"`
	Error          string                 `json:"error,omitempty"`
	Loading        bool                   `json:"loading"`
	Remaining      int                    `json:"remaining"`
	Budget         int                    `json:"budget"`
	Pending        int                    `json:"pending"`
	View           View                   `json:"view"`
	Chart          ChartMode              `json:"chart"`
	Selected       string                 `json:"selected,omitempty"`
	History        []provider.DailyBar    `json:"history,omitempty"`
	HistoryLoading bool                   `json:"historyLoading"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

type SessionOption func(*Session)

func WithClock(c scheduler.Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// Session is one dashboard's state: its watch-list, search box, request
// queue and timers. All methods are safe for concurrent use.
type Session struct {
	src    Source
	cfg    SessionConfig
	clock  scheduler.Clock
	logger *zap.Logger

	queue    *Queue
	debounce *scheduler.Debouncer

	mu             sync.Mutex
	watch          *Watchlist
	searchQuery    string
	searchSymbol   string
	results        []provider.SearchMatch
	searching      bool
	searchSeq      uint64
	errMsg         string
	loading        bool
	view           View
	chart          ChartMode
	selected       string
	history        []provider.DailyBar
	historyLoading bool
	historySeq     uint64
	updatedAt      time.Time
	refresh        scheduler.Timer
	subs           map[int]func(Snapshot)
	nextSub        int
	closed         bool

	bg sync.WaitGroup
}

func NewSession(src Source, cfg SessionConfig, opts ...SessionOption) *Session {
	def := DefaultSessionConfig()
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = def.Symbols
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.SearchDebounce <= 0 {
		cfg.SearchDebounce = def.SearchDebounce
	}
	if cfg.MinQueryLength <= 0 {
		cfg.MinQueryLength = def.MinQueryLength
	}
	s := &Session{
		src:   src,
		cfg:   cfg,
		watch: NewWatchlist(),
		view:  ViewTable,
		chart: ChartPrice,
		subs:  make(map[int]func(Snapshot)),
	}
	for _, o := range opts {
		o(s)
	}
	s.clock = scheduler.Or(s.clock)
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.debounce = scheduler.NewDebouncer(s.clock, cfg.SearchDebounce)
	s.queue = NewQueue(cfg.Queue, src.Quote, s.clock, QueueHooks{
		BatchStarted: s.batchStarted,
		BatchDone:    s.batchDone,
	})
	return s
}

// Start runs a full refresh now and then every refresh interval.
func (s *Session) Start() {
	s.mu.Lock()
	if s.closed || s.refresh != nil {
		s.mu.Unlock()
		return
	}
	s.refresh = scheduler.Every(s.clock, s.cfg.RefreshInterval, s.FullRefresh)
	s.mu.Unlock()
	s.FullRefresh()
}

// FullRefresh clears the error and re-queues the defaults plus the searched
// symbol. Results of batches already in flight are discarded.
func (s *Session) FullRefresh() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.errMsg = ""
	symbols := slices.Clone(s.cfg.Symbols)
	if s.searchSymbol != "" && !slices.Contains(symbols, s.searchSymbol) {
		symbols = append(symbols, s.searchSymbol)
	}
	s.mu.Unlock()

	s.logger.Debug("full refresh", zap.Strings("symbols", symbols))
	s.queue.Reset(symbols...)
	s.notify()
}

// Submit makes query the searched symbol and queues a quote fetch for it.
// Blank input is ignored.
func (s *Session) Submit(query string) {
	sym := strings.ToUpper(strings.TrimSpace(query))
	if sym == "" {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.searchSymbol = sym
	s.results = nil
	s.mu.Unlock()

	s.queue.Enqueue(sym)
	s.notify()
}

// ClearSearch drops the searched symbol so the table shows every quote.
// A search already in flight is discarded.
func (s *Session) ClearSearch() {
	s.debounce.Cancel()
	s.mu.Lock()
	s.searchSymbol = ""
	s.searchQuery = ""
	s.results = nil
	s.searchSeq++
	s.searching = false
	s.mu.Unlock()
	s.notify()
}

// TypeQuery records the search box text and schedules a debounced symbol search.
func (s *Session) TypeQuery(query string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.searchQuery = query
	s.mu.Unlock()

	s.debounce.Do(func() { s.search(query) })
	s.notify()
}

// Pick fills the search box with a search result and hides the results.
func (s *Session) Pick(symbol string) {
	s.debounce.Cancel()
	s.mu.Lock()
	s.searchQuery = symbol
	s.results = nil
	s.searchSeq++
	s.searching = false
	s.mu.Unlock()
	s.notify()
}

func (s *Session) search(query string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.searchSeq++
	seq := s.searchSeq
	if len(strings.TrimSpace(query)) < s.cfg.MinQueryLength {
		s.results = nil
		s.searching = false
		s.mu.Unlock()
		s.notify()
		return
	}
	s.searching = true
	s.mu.Unlock()
	s.notify()

	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout())
	defer cancel()
	results, err := s.src.Search(ctx, query)

	s.mu.Lock()
	if seq != s.searchSeq || s.closed {
		s.mu.Unlock()
		return
	}
	s.searching = false
	if err != nil {
		s.logger.Warn("symbol search failed", zap.String("query", query), zap.Error(err))
	} else {
		s.results = results
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) SetView(v View) {
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
	s.notify()
}

func (s *Session) ToggleView() {
	s.mu.Lock()
	if s.view == ViewTable {
		s.view = ViewChart
	} else {
		s.view = ViewTable
	}
	s.mu.Unlock()
	s.notify()
}

// SetChartMode switches the chart series, loading history for the
// historical mode.
func (s *Session) SetChartMode(m ChartMode) {
	s.mu.Lock()
	s.chart = m
	s.mu.Unlock()
	if m == ChartHistorical {
		s.LoadHistory()
		return
	}
	s.notify()
}

// SelectSymbol picks the stock the chart and history refer to.
func (s *Session) SelectSymbol(symbol string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	s.mu.Lock()
	changed := s.selected != symbol
	s.selected = symbol
	if changed {
		s.history = nil
	}
	historical := s.chart == ChartHistorical
	s.mu.Unlock()
	if historical && changed {
		s.LoadHistory()
		return
	}
	s.notify()
}

// LoadHistory fetches the daily history of the selected stock, or of the
// first visible stock when none is selected. It returns immediately.
func (s *Session) LoadHistory() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	sym := s.selected
	if sym == "" {
		if visible := s.watch.Filter(s.searchSymbol); len(visible) > 0 {
			sym = visible[0].Symbol
			s.selected = sym
		}
	}
	if sym == "" {
		s.mu.Unlock()
		return
	}
	s.historySeq++
	seq := s.historySeq
	s.historyLoading = true
	s.bg.Add(1)
	s.mu.Unlock()
	s.notify()

	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout())
		defer cancel()
		series, err := s.src.History(ctx, sym)

		s.mu.Lock()
		if seq != s.historySeq || s.closed {
			s.mu.Unlock()
			return
		}
		s.historyLoading = false
		if err != nil {
			s.logger.Warn("history fetch failed", zap.String("symbol", sym), zap.Error(err))
			s.history = nil
		} else {
			s.history = series.Data
		}
		s.mu.Unlock()
		s.notify()
	}()
}

// Snapshot returns the current state. Quotes are filtered by the searched
// symbol and sorted.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Quotes:         s.watch.Filter(s.searchSymbol),
		SearchQuery:    s.searchQuery,
		SearchSymbol:   s.searchSymbol,
		SearchResults:  slices.Clone(s.results),
		Searching:      s.searching,
		Error:          s.errMsg,
		Loading:        s.loading,
		Remaining:      s.queue.Remaining(),
		Budget:         s.cfg.Queue.Budget,
		Pending:        len(s.queue.Pending()),
		View:           s.view,
		Chart:          s.chart,
		Selected:       s.selected,
		History:        slices.Clone(s.history),
		HistoryLoading: s.historyLoading,
		UpdatedAt:      s.updatedAt,
	}
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that made the change and must not block.
func (s *Session) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close stops the refresh timer, the pending search and the queue cooldown.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.refresh != nil {
		s.refresh.Stop()
	}
	clear(s.subs)
	s.mu.Unlock()
	s.debounce.Cancel()
	s.queue.Close()
	s.bg.Wait()
}

func (s *Session) batchStarted(symbols []string) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	s.logger.Debug("batch started", zap.Strings("symbols", symbols))
	s.notify()
}

func (s *Session) batchDone(res BatchResult) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.loading = false
	s.watch.Upsert(res.Quotes...)
	if len(res.Quotes) > 0 {
		s.updatedAt = s.clock.Now()
	}
	if res.Err != nil {
		s.errMsg = errorText(res.Err)
	}
	s.mu.Unlock()

	if res.Err != nil {
		s.logger.Warn("batch had failures",
			zap.Strings("symbols", res.Symbols),
			zap.Int("failed", res.Failed),
			zap.Error(res.Err))
	}
	s.notify()
}

func (s *Session) notify() {
	s.mu.Lock()
	if len(s.subs) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Session) fetchTimeout() time.Duration {
	if s.cfg.Queue.FetchTimeout > 0 {
		return s.cfg.Queue.FetchTimeout
	}
	return DefaultQueueConfig().FetchTimeout
}

// userMessager is implemented by proxy errors that carry display text.
type userMessager interface {
	UserMessage() string
}

// errorText prefers the proxy's display message, which already names the
// symbol, over the wrapped error chain.
func errorText(err error) string {
	var m userMessager
	if errors.As(err, &m) {
		return m.UserMessage()
	}
	return err.Error()
}
