package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/FormidableLabs/envy-tui/internal/config"
	"github.com/FormidableLabs/envy-tui/internal/export"
	"github.com/FormidableLabs/envy-tui/internal/nav"
	"github.com/FormidableLabs/envy-tui/internal/trace"
)

// --- Messages ---
//
// Everything that happens outside the Update loop (websocket frames,
// fixture replays, timers) arrives here as a message. Update is the
// only writer of model state.

type addTraceMsg struct {
	trace *trace.Trace
}

type connectionsMsg struct {
	clients int
}

type parseErrorMsg struct {
	err error
}

type peerMsg struct {
	inner     bool
	connected bool
	peers     int
}

type markTimedOutMsg struct {
	id string
}

// clearStatusMsg carries the sequence number of the status message it
// was scheduled for. A stale clear (an older seq) is ignored so the
// most recent status always wins.
type clearStatusMsg struct {
	seq int
}

const statusMessageTTL = 5 * time.Second

// --- Key bindings ---

type keyMap struct {
	Quit     key.Binding
	Help     key.Binding
	Debug    key.Binding
	Search   key.Binding
	Filter   key.Binding
	Sort     key.Binding
	Yank     key.Binding
	Delete   key.Binding
	Tab      key.Binding
	ShiftTab key.Binding
	Enter    key.Binding
	Esc      key.Binding
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	JumpUp   key.Binding
	JumpDown key.Binding
	Start    key.Binding
	End      key.Binding
	NextPane key.Binding
	PrevPane key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Debug:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "debug log")),
	Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Filter:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
	Sort:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
	Yank:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy as curl")),
	Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete trace")),
	Tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next block")),
	ShiftTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev block")),
	Enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "inspect")),
	Esc:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/up", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/down", "down")),
	Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("h/left", "scroll left")),
	Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("l/right", "scroll right")),
	JumpUp:   key.NewBinding(key.WithKeys("ctrl+up"), key.WithHelp("ctrl+up", "request details")),
	JumpDown: key.NewBinding(key.WithKeys("ctrl+down"), key.WithHelp("ctrl+down", "response details")),
	Start:    key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g/home", "go to start")),
	End:      key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G/end", "go to end")),
	NextPane: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next pane")),
	PrevPane: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev pane")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Search, k.Filter, k.Yank, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.Start, k.End},
		{k.Tab, k.ShiftTab, k.Enter, k.Esc, k.JumpUp, k.JumpDown},
		{k.Search, k.Filter, k.Sort, k.NextPane, k.PrevPane},
		{k.Yank, k.Delete, k.Debug, k.Help, k.Quit},
	}
}

// --- Filtering and sorting ---

var filterMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

var filterStatusGroups = []string{"1xx", "2xx", "3xx", "4xx", "5xx"}

// filterState holds the enabled sets per category. An empty set means
// the category is not filtering at all.
type filterState struct {
	methods  map[string]bool
	sources  map[string]bool
	statuses map[string]bool
}

func newFilterState() filterState {
	return filterState{
		methods:  make(map[string]bool),
		sources:  make(map[string]bool),
		statuses: make(map[string]bool),
	}
}

func (f filterState) active() bool {
	return len(f.methods) > 0 || len(f.sources) > 0 || len(f.statuses) > 0
}

func (f filterState) match(t *trace.Trace) bool {
	if len(f.methods) > 0 && !f.methods[t.Method] {
		return false
	}
	if len(f.sources) > 0 && !f.sources[t.ServiceName] {
		return false
	}
	if len(f.statuses) > 0 {
		if t.Status == nil || !f.statuses[statusGroup(*t.Status)] {
			return false
		}
	}
	return true
}

func statusGroup(code int) string {
	if code < 100 || code > 599 {
		return ""
	}
	return fmt.Sprintf("%dxx", code/100)
}

type sortField int

const (
	sortByTimestamp sortField = iota
	sortByMethod
	sortByStatus
	sortByURL
	sortByDuration
	sortBySource
)

var sortFieldNames = []string{"Timestamp", "Method", "Status", "URL", "Duration", "Source"}

func (f sortField) String() string { return sortFieldNames[f] }

type sortState struct {
	field     sortField
	ascending bool
}

// isDefault reports whether the sort matches the store's natural
// newest-first order, in which case no re-sort is needed.
func (s sortState) isDefault() bool {
	return s.field == sortByTimestamp && !s.ascending
}

// --- Model ---

type uiModel struct {
	cfg   config.Config
	store *trace.Store

	nav    nav.State
	width  int
	height int

	tracesVP      nav.Viewport
	queryVP       nav.Viewport
	reqHeadersVP  nav.Viewport
	reqBodyVP     nav.Viewport
	respDetailsVP nav.Viewport
	respBodyVP    nav.Viewport

	search      textinput.Model
	searchQuery string

	filters      filterState
	filterCursor int
	sources      []string // observed serviceNames, insertion order
	sorting      sortState
	sortCursor   int

	// selectedID is the trace the dependent panes were last synced
	// to; a change of selection resets their scroll state.
	selectedID string

	statusMessage string
	statusSeq     int

	connections int
	wsAddr      string

	debugLines []string
	help       help.Model
}

func newModel(cfg config.Config, wsAddr string) uiModel {
	applyTheme(cfg.Colors)

	search := textinput.New()
	search.Placeholder = "path, method, status..."
	search.Prompt = "/ "
	search.CharLimit = 128

	return uiModel{
		cfg:     cfg,
		store:   trace.NewStore(),
		nav:     nav.NewState(),
		search:  search,
		filters: newFilterState(),
		help:    help.New(),
		wsAddr:  wsAddr,
	}
}

func (m uiModel) Init() tea.Cmd {
	return nil
}

// visibleTraces applies the search query, filters, and sort order to
// the store's newest-first contents.
func (m uiModel) visibleTraces() []*trace.Trace {
	var out []*trace.Trace
	query := strings.ToLower(m.searchQuery)
	for t := range m.store.NewestFirst() {
		if query != "" && !traceMatchesQuery(t, query) {
			continue
		}
		if m.filters.active() && !m.filters.match(t) {
			continue
		}
		out = append(out, t)
	}
	if !m.sorting.isDefault() {
		sortTraces(out, m.sorting)
	}
	return out
}

func traceMatchesQuery(t *trace.Trace, query string) bool {
	if strings.Contains(strings.ToLower(t.URI), query) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Method), query) {
		return true
	}
	if strings.Contains(strings.ToLower(t.ServiceName), query) {
		return true
	}
	if t.Status != nil && strings.Contains(fmt.Sprint(*t.Status), query) {
		return true
	}
	return false
}

// sortTraces orders in place. Ties fall back to trace ID so the order
// is stable across repeated renders.
func sortTraces(traces []*trace.Trace, s sortState) {
	sort.SliceStable(traces, func(i, j int) bool {
		a, b := traces[i], traces[j]
		if s.ascending {
			a, b = b, a
		}
		switch s.field {
		case sortByMethod:
			if a.Method != b.Method {
				return a.Method > b.Method
			}
		case sortByStatus:
			av, bv := statusOrZero(a), statusOrZero(b)
			if av != bv {
				return av > bv
			}
		case sortByURL:
			if a.URI != b.URI {
				return a.URI > b.URI
			}
		case sortByDuration:
			av, bv := durationOrZero(a), durationOrZero(b)
			if av != bv {
				return av > bv
			}
		case sortBySource:
			if a.ServiceName != b.ServiceName {
				return a.ServiceName > b.ServiceName
			}
		default:
			if a.Timestamp != b.Timestamp {
				return a.Timestamp > b.Timestamp
			}
		}
		return a.ID < b.ID
	})
}

func statusOrZero(t *trace.Trace) int {
	if t.Status == nil {
		return 0
	}
	return *t.Status
}

func durationOrZero(t *trace.Trace) int64 {
	if t.Duration == nil {
		return 0
	}
	return *t.Duration
}

// selectedTrace resolves the trace list cursor against the current
// visible slice. Nil when the list is empty.
func (m uiModel) selectedTrace() *trace.Trace {
	vis := m.visibleTraces()
	if len(vis) == 0 {
		return nil
	}
	idx := m.tracesVP.Index
	if idx >= len(vis) {
		idx = len(vis) - 1
	}
	return vis[idx]
}

// syncViewports refreshes every viewport's content length from the
// current visible list and selection, then clamps cursors that the
// content shrank out from under.
func (m *uiModel) syncViewports() {
	vis := m.visibleTraces()
	m.tracesVP.ContentLen = len(vis)
	m.tracesVP.Clamp()

	t := m.selectedTrace()
	if t == nil {
		m.selectedID = ""
		m.queryVP.Reset()
		m.reqHeadersVP.Reset()
		m.reqBodyVP.Reset()
		m.respDetailsVP.Reset()
		m.respBodyVP.Reset()
		return
	}
	if t.ID != m.selectedID {
		m.selectedID = t.ID
		m.queryVP.Reset()
		m.reqHeadersVP.Reset()
		m.reqBodyVP.Reset()
		m.respDetailsVP.Reset()
		m.respBodyVP.Reset()
	}
	m.queryVP.ContentLen = len(t.QueryParams())
	m.reqHeadersVP.ContentLen = len(t.RequestHeaders)
	m.reqBodyVP.ContentLen = bodyLineCount(t.RequestBody, t.PrettyRequestBody, t.PrettyRequestBodyLines)
	m.respDetailsVP.ContentLen = len(t.ResponseHeaders)
	m.respBodyVP.ContentLen = bodyLineCount(t.ResponseBody, t.PrettyResponseBody, t.PrettyResponseBodyLines)

	m.queryVP.Clamp()
	m.reqHeadersVP.Clamp()
	m.reqBodyVP.Clamp()
	m.respDetailsVP.Clamp()
	m.respBodyVP.Clamp()
}

func bodyLineCount(raw, pretty string, prettyLines int) int {
	if pretty != "" {
		return prettyLines
	}
	if raw == "" {
		return 0
	}
	return strings.Count(raw, "\n") + 1
}

// activeViewport returns the viewport bound to the focused block, or
// nil for blocks without scroll state.
func (m *uiModel) activeViewport() *nav.Viewport {
	switch m.nav.Active {
	case nav.BlockTraces:
		return &m.tracesVP
	case nav.BlockRequestDetails:
		if m.nav.RequestPane == nav.PaneQuery {
			return &m.queryVP
		}
		return &m.reqHeadersVP
	case nav.BlockRequestBody:
		return &m.reqBodyVP
	case nav.BlockResponseDetails:
		return &m.respDetailsVP
	case nav.BlockResponseBody:
		return &m.respBodyVP
	}
	return nil
}

func (m *uiModel) debugf(format string, args ...any) {
	line := fmt.Sprintf("%s %s", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	m.debugLines = append(m.debugLines, line)
	if len(m.debugLines) > 200 {
		m.debugLines = m.debugLines[len(m.debugLines)-200:]
	}
}

// setStatus replaces the footer status message and schedules its
// expiry. Bumping the sequence number invalidates clears scheduled
// for earlier messages.
func (m *uiModel) setStatus(text string) tea.Cmd {
	m.statusMessage = text
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(statusMessageTTL, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

func (m uiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.applyLayout()
		m.syncViewports()

	case addTraceMsg:
		m.store.Upsert(msg.trace)
		m.observeSource(msg.trace.ServiceName)
		m.syncViewports()
		if !msg.trace.State.Terminal() {
			id := msg.trace.ID
			return m, tea.Tick(m.cfg.Timeout.Std(), func(time.Time) tea.Msg {
				return markTimedOutMsg{id: id}
			})
		}

	case markTimedOutMsg:
		m.store.MarkTimedOut(msg.id)
		m.syncViewports()

	case connectionsMsg:
		m.connections = msg.clients

	case peerMsg:
		m.connections = msg.peers
		kind := "client"
		if msg.inner {
			kind = "viewer"
		}
		verb := "disconnected"
		if msg.connected {
			verb = "connected"
		}
		m.debugf("%s %s, %d connected", kind, verb, msg.peers)

	case parseErrorMsg:
		m.debugf("parse: %v", msg.err)

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.statusMessage = ""
		}
	}

	return m, nil
}

func (m uiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The search prompt captures everything except its exit keys.
	if m.nav.Active == nav.BlockSearch {
		return m.handleSearchKey(msg)
	}
	if m.nav.Active == nav.BlockFilter {
		return m.handleFilterKey(msg)
	}
	if m.nav.Active == nav.BlockSort {
		return m.handleSortKey(msg)
	}
	if m.nav.Active == nav.BlockHelp || m.nav.Active == nav.BlockDebug {
		switch {
		case key.Matches(msg, keys.Quit), key.Matches(msg, keys.Esc),
			key.Matches(msg, keys.Help), key.Matches(msg, keys.Debug):
			m.nav.PopOverlay()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.nav.PushOverlay(nav.BlockHelp)

	case key.Matches(msg, keys.Debug):
		m.nav.PushOverlay(nav.BlockDebug)

	case key.Matches(msg, keys.Search):
		m.nav.PushOverlay(nav.BlockSearch)
		m.search.SetValue(m.searchQuery)
		m.search.CursorEnd()
		return m, m.search.Focus()

	case key.Matches(msg, keys.Filter):
		m.nav.PushOverlay(nav.BlockFilter)
		m.filterCursor = 0

	case key.Matches(msg, keys.Sort):
		m.nav.PushOverlay(nav.BlockSort)
		m.sortCursor = int(m.sorting.field)

	case key.Matches(msg, keys.Yank):
		if t := m.selectedTrace(); t != nil {
			return m.yank(t)
		}

	case key.Matches(msg, keys.Delete):
		if t := m.selectedTrace(); t != nil {
			m.store.Remove(t.ID)
			m.syncViewports()
		}

	case key.Matches(msg, keys.Tab):
		m.nav.Next()

	case key.Matches(msg, keys.ShiftTab):
		m.nav.Prev()

	case key.Matches(msg, keys.Enter):
		m.nav.Enter()

	case key.Matches(msg, keys.Esc):
		m.nav.Escape()

	case key.Matches(msg, keys.JumpUp):
		m.nav.JumpUp()

	case key.Matches(msg, keys.JumpDown):
		m.nav.JumpDown()

	case key.Matches(msg, keys.NextPane):
		m.nav.NextPane()

	case key.Matches(msg, keys.PrevPane):
		m.nav.PrevPane()

	case key.Matches(msg, keys.Up):
		if vp := m.activeViewport(); vp != nil {
			vp.Up()
			if m.nav.Active == nav.BlockTraces {
				m.syncViewports()
			}
		}

	case key.Matches(msg, keys.Down):
		if vp := m.activeViewport(); vp != nil {
			vp.Down()
			if m.nav.Active == nav.BlockTraces {
				m.syncViewports()
			}
		}

	case key.Matches(msg, keys.Left):
		if vp := m.activeViewport(); vp != nil {
			vp.Left()
		}

	case key.Matches(msg, keys.Right):
		if vp := m.activeViewport(); vp != nil {
			vp.Right()
		}

	case key.Matches(msg, keys.Start):
		if vp := m.activeViewport(); vp != nil {
			vp.GoToStart()
			if m.nav.Active == nav.BlockTraces {
				m.syncViewports()
			}
		}

	case key.Matches(msg, keys.End):
		if vp := m.activeViewport(); vp != nil {
			vp.GoToEnd()
			if m.nav.Active == nav.BlockTraces {
				m.syncViewports()
			}
		}
	}

	return m, nil
}

// yank copies what the focused block is showing: the response body
// from its pane, the trace as a curl command everywhere else.
func (m uiModel) yank(t *trace.Trace) (tea.Model, tea.Cmd) {
	text := export.Curl(t)
	what := "curl command"
	if m.nav.Active == nav.BlockResponseBody {
		text = t.PrettyResponseBody
		if text == "" {
			text = t.ResponseBody
		}
		what = "response body"
	}
	if err := clipboard.WriteAll(text); err != nil {
		m.debugf("clipboard: %v", err)
		return m, m.setStatus("Failed to copy to clipboard")
	}
	return m, m.setStatus("Copied " + what + " to clipboard")
}

func (m uiModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.nav.PopOverlay()
		m.nav.Active = nav.BlockTraces
		m.search.Blur()
		return m, nil
	case "esc":
		m.searchQuery = ""
		m.search.SetValue("")
		m.search.Blur()
		m.nav.PopOverlay()
		m.nav.Active = nav.BlockTraces
		m.syncViewports()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != m.searchQuery {
		m.searchQuery = m.search.Value()
		m.tracesVP.GoToStart()
		m.syncViewports()
	}
	return m, cmd
}

func (m uiModel) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.filterItems()

	switch {
	case key.Matches(msg, keys.Quit):
		m.nav.PopOverlay()
		m.syncViewports()

	case key.Matches(msg, keys.Esc), key.Matches(msg, keys.Filter):
		if m.nav.FilterScreen != nav.FilterMain {
			m.nav.FilterScreen = nav.FilterMain
			m.filterCursor = 0
			return m, nil
		}
		m.nav.PopOverlay()
		m.syncViewports()

	case key.Matches(msg, keys.Up):
		if m.filterCursor > 0 {
			m.filterCursor--
		}

	case key.Matches(msg, keys.Down):
		if m.filterCursor < len(items)-1 {
			m.filterCursor++
		}

	case key.Matches(msg, keys.Enter):
		if m.nav.FilterScreen == nav.FilterMain {
			switch m.filterCursor {
			case 0:
				m.nav.FilterScreen = nav.FilterMethod
			case 1:
				m.nav.FilterScreen = nav.FilterSource
			case 2:
				m.nav.FilterScreen = nav.FilterStatus
			}
			m.filterCursor = 0
			return m, nil
		}
		if m.filterCursor < len(items) {
			m.toggleFilter(items[m.filterCursor])
			m.syncViewports()
		}
	}

	return m, nil
}

// filterItems returns the rows of the current filter screen.
func (m uiModel) filterItems() []string {
	switch m.nav.FilterScreen {
	case nav.FilterMethod:
		return filterMethods
	case nav.FilterSource:
		return m.sources
	case nav.FilterStatus:
		return filterStatusGroups
	}
	return []string{"Method", "Source", "Status"}
}

func (m *uiModel) toggleFilter(item string) {
	var set map[string]bool
	switch m.nav.FilterScreen {
	case nav.FilterMethod:
		set = m.filters.methods
	case nav.FilterSource:
		set = m.filters.sources
	case nav.FilterStatus:
		set = m.filters.statuses
	default:
		return
	}
	if set[item] {
		delete(set, item)
	} else {
		set[item] = true
	}
}

func (m uiModel) handleSortKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit), key.Matches(msg, keys.Esc), key.Matches(msg, keys.Sort):
		m.nav.PopOverlay()

	case key.Matches(msg, keys.Up):
		if m.sortCursor > 0 {
			m.sortCursor--
		}

	case key.Matches(msg, keys.Down):
		if m.sortCursor < len(sortFieldNames)-1 {
			m.sortCursor++
		}

	case key.Matches(msg, keys.Enter):
		field := sortField(m.sortCursor)
		if m.sorting.field == field {
			// Re-selecting the current field flips the direction.
			m.sorting.ascending = !m.sorting.ascending
		} else {
			m.sorting = sortState{field: field}
		}
		m.tracesVP.GoToStart()
		m.syncViewports()
	}

	return m, nil
}

func (m *uiModel) observeSource(name string) {
	if name == "" {
		return
	}
	for _, s := range m.sources {
		if s == name {
			return
		}
	}
	m.sources = append(m.sources, name)
}
