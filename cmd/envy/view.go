package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/FormidableLabs/envy-tui/internal/config"
	"github.com/FormidableLabs/envy-tui/internal/nav"
	"github.com/FormidableLabs/envy-tui/internal/trace"
)

// Per-pane chrome: two border rows plus the title row. The traces pane
// carries an extra column-header row.
const (
	paneChrome   = 3
	tracesChrome = 4
	footerHeight = 1
)

// --- Styles ---

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#666666"))

	borderFocusedStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#fcba03"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#cccccc"))

	titleFocusedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#fcba03"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#16181a")).
			Background(lipgloss.Color("#fcba03"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))

	headerNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#89B4FA"))

	statusOKStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1"))

	statusWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAB387"))

	statusErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#1E1E2E"))

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#16181a")).
			Background(lipgloss.Color("#fcba03")).
			Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6C7086")).
				Padding(0, 1)

	overlayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#fcba03")).
			Padding(0, 1)
)

// applyTheme folds config color overrides into the style block.
func applyTheme(c config.Colors) {
	accent := lipgloss.Color(c.Accent)
	borderStyle = borderStyle.BorderForeground(lipgloss.Color(c.Border))
	borderFocusedStyle = borderFocusedStyle.BorderForeground(accent)
	titleFocusedStyle = titleFocusedStyle.Foreground(accent)
	selectedStyle = selectedStyle.Background(lipgloss.Color(c.Selected))
	tabActiveStyle = tabActiveStyle.Background(accent)
	dimStyle = dimStyle.Foreground(lipgloss.Color(c.Muted))
	statusErrStyle = statusErrStyle.Foreground(lipgloss.Color(c.Error))
	overlayStyle = overlayStyle.BorderForeground(accent)
}

// --- Layout ---

type layout struct {
	tracesW int
	rightW  int
	tracesH int
	sumH    int
	paneH   int
}

func computeLayout(width, height int) layout {
	l := layout{
		tracesW: width / 3,
		tracesH: height - footerHeight,
		sumH:    6,
	}
	l.rightW = width - l.tracesW
	// Remaining right-column rows split evenly across the two detail
	// and two body panes.
	l.paneH = (l.tracesH - l.sumH) / 4
	return l
}

// applyLayout folds the current layout into each viewport's usable
// height so cursor movement and rendering agree on the window.
func (m *uiModel) applyLayout() {
	l := computeLayout(m.width, m.height)
	m.tracesVP.Height = max(1, l.tracesH-tracesChrome)
	detailH := max(1, l.paneH-paneChrome)
	m.queryVP.Height = detailH
	m.reqHeadersVP.Height = detailH
	m.reqBodyVP.Height = detailH
	m.respDetailsVP.Height = detailH
	m.respBodyVP.Height = detailH
}

// --- View ---

func (m uiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	l := computeLayout(m.width, m.height)
	vis := m.visibleTraces()
	selected := m.selectedTrace()

	left := m.renderTraces(vis, l.tracesW, l.tracesH)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderSummary(selected, l.rightW, l.sumH),
		m.renderRequestDetails(selected, l.rightW, l.paneH),
		m.renderBody(nav.BlockRequestBody, selected, l.rightW, l.paneH),
		m.renderResponseDetails(selected, l.rightW, l.paneH),
		m.renderBody(nav.BlockResponseBody, selected, l.rightW, l.paneH),
	)

	screen := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	screen = lipgloss.JoinVertical(lipgloss.Left, screen, m.renderFooter(len(vis)))

	if overlay := m.renderOverlay(); overlay != "" {
		screen = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, overlay)
	}
	return screen
}

func (m uiModel) paneStyle(b nav.Block) (lipgloss.Style, lipgloss.Style) {
	if m.nav.Active == b {
		return borderFocusedStyle, titleFocusedStyle
	}
	return borderStyle, titleStyle
}

// pane frames content with a border and title, padded to the exact
// cell size so the joins line up.
func pane(border, title lipgloss.Style, name, content string, width, height int) string {
	innerW := max(0, width-2)
	innerH := max(0, height-2)

	lines := strings.Split(content, "\n")
	body := make([]string, 0, innerH)
	body = append(body, title.Render(truncateLine(name, innerW)))
	for _, line := range lines {
		if len(body) >= innerH {
			break
		}
		body = append(body, truncateLine(line, innerW))
	}
	for len(body) < innerH {
		body = append(body, "")
	}
	return border.Width(innerW).Height(innerH).Render(strings.Join(body, "\n"))
}

// --- Traces pane ---

func (m uiModel) renderTraces(vis []*trace.Trace, width, height int) string {
	border, title := m.paneStyle(nav.BlockTraces)
	innerW := max(0, width-2)

	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("%-7s %-4s %s", "Method", "St", "Path")))
	b.WriteRune('\n')

	end := min(len(vis), m.tracesVP.Offset+m.tracesVP.Height)
	for i := m.tracesVP.Offset; i < end; i++ {
		t := vis[i]
		line := fmt.Sprintf("%-7s %-4s %s", t.Method, statusLabel(t), pathOf(t.URI))
		if i == m.tracesVP.Index && m.nav.Active == nav.BlockTraces {
			line = selectedStyle.Render(padLine(truncateLine(line, innerW-1), innerW-1))
		} else {
			line = styleByState(t).Render(truncateLine(line, innerW-1))
		}
		b.WriteString(line)
		b.WriteRune('\n')
	}

	content := attachScrollbar(strings.TrimRight(b.String(), "\n"), m.tracesVP, innerW)
	name := fmt.Sprintf("Traces (%d)", len(vis))
	if m.searchQuery != "" {
		name += " /" + m.searchQuery
	}
	if m.filters.active() {
		name += " [filtered]"
	}
	return pane(border, title, name, content, width, height)
}

func statusLabel(t *trace.Trace) string {
	switch {
	case t.Status != nil:
		return fmt.Sprint(*t.Status)
	case t.State == trace.StateTimeout:
		return "T/O"
	case t.State == trace.StateSent:
		return "..."
	}
	return "-"
}

func styleByState(t *trace.Trace) lipgloss.Style {
	switch {
	case t.State == trace.StateTimeout, t.State == trace.StateError:
		return statusErrStyle
	case t.Status != nil && *t.Status >= 500:
		return statusErrStyle
	case t.Status != nil && *t.Status >= 400:
		return statusWarnStyle
	case t.State == trace.StateSent:
		return dimStyle
	}
	return statusOKStyle
}

// pathOf strips the scheme and host so the list column shows the
// interesting part of the URL.
func pathOf(url string) string {
	rest := url
	if _, after, ok := strings.Cut(rest, "://"); ok {
		rest = after
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[i:]
	}
	return "/"
}

// --- Summary pane ---

func (m uiModel) renderSummary(t *trace.Trace, width, height int) string {
	border, title := m.paneStyle(nav.BlockRequestSummary)
	if t == nil {
		return pane(border, title, "Request Summary", dimStyle.Render("Waiting for traces..."), width, height)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", t.Method, t.URI)
	fmt.Fprintf(&b, "Status: %s   Duration: %s   %s\n",
		statusLabel(t), durationLabel(t), t.HTTPVersion)
	if t.ServiceName != "" {
		fmt.Fprintf(&b, "Source: %s\n", t.ServiceName)
	}
	if tm := t.Timings; tm != nil {
		fmt.Fprintf(&b, "Timing: blocked %.0fms, dns %.0fms, connect %.0fms, send %.0fms, wait %.0fms, receive %.0fms",
			tm.Blocked, tm.DNS, tm.Connect, tm.Send, tm.Wait, tm.Receive)
	}
	return pane(border, title, "Request Summary", b.String(), width, height)
}

func durationLabel(t *trace.Trace) string {
	if t.Duration == nil {
		return "-"
	}
	return fmt.Sprintf("%dms", *t.Duration)
}

// --- Detail panes ---

func (m uiModel) renderRequestDetails(t *trace.Trace, width, height int) string {
	border, title := m.paneStyle(nav.BlockRequestDetails)
	innerW := max(0, width-2)

	tabs := renderPaneTabs(m.nav.RequestPane, m.nav.Active == nav.BlockRequestDetails)
	if t == nil {
		return pane(border, title, "Request Details "+tabs, "", width, height)
	}

	var content string
	if m.nav.RequestPane == nav.PaneQuery {
		content = renderQueryParams(t.QueryParams(), m.queryVP, innerW)
	} else {
		content = renderHeaders(t.RequestHeaders, m.reqHeadersVP, innerW)
	}
	return pane(border, title, "Request Details "+tabs, content, width, height)
}

func renderPaneTabs(active nav.DetailsPane, focused bool) string {
	render := func(p nav.DetailsPane) string {
		if p == active && focused {
			return tabActiveStyle.Render(p.String())
		}
		return tabInactiveStyle.Render(p.String())
	}
	return render(nav.PaneQuery) + render(nav.PaneHeaders)
}

func (m uiModel) renderResponseDetails(t *trace.Trace, width, height int) string {
	border, title := m.paneStyle(nav.BlockResponseDetails)
	innerW := max(0, width-2)
	if t == nil {
		return pane(border, title, "Response Details", "", width, height)
	}
	content := renderHeaders(t.ResponseHeaders, m.respDetailsVP, innerW)
	return pane(border, title, "Response Details", content, width, height)
}

func renderHeaders(headers trace.Headers, vp nav.Viewport, width int) string {
	if len(headers) == 0 {
		return dimStyle.Render("No headers")
	}
	var b strings.Builder
	end := min(len(headers), vp.Offset+vp.Height)
	for i := vp.Offset; i < end; i++ {
		h := headers[i]
		b.WriteString(headerNameStyle.Render(h.Name))
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteRune('\n')
	}
	return attachScrollbar(strings.TrimRight(b.String(), "\n"), vp, width)
}

func renderQueryParams(params []trace.Header, vp nav.Viewport, width int) string {
	if len(params) == 0 {
		return dimStyle.Render("No query parameters")
	}
	var b strings.Builder
	end := min(len(params), vp.Offset+vp.Height)
	for i := vp.Offset; i < end; i++ {
		p := params[i]
		b.WriteString(headerNameStyle.Render(p.Name))
		b.WriteString(" = ")
		b.WriteString(p.Value)
		b.WriteRune('\n')
	}
	return attachScrollbar(strings.TrimRight(b.String(), "\n"), vp, width)
}

// --- Body panes ---

func (m uiModel) renderBody(block nav.Block, t *trace.Trace, width, height int) string {
	border, title := m.paneStyle(block)
	innerW := max(0, width-2)

	name := "Request Body"
	vp := m.reqBodyVP
	var raw, pretty string
	if t != nil {
		raw, pretty = t.RequestBody, t.PrettyRequestBody
	}
	if block == nav.BlockResponseBody {
		name = "Response Body"
		vp = m.respBodyVP
		if t != nil {
			raw, pretty = t.ResponseBody, t.PrettyResponseBody
		}
	}

	body := pretty
	if body == "" {
		body = raw
	}
	if body == "" {
		return pane(border, title, name, dimStyle.Render("No body"), width, height)
	}

	lines := strings.Split(body, "\n")
	end := min(len(lines), vp.Offset+vp.Height)
	var b strings.Builder
	for i := vp.Offset; i < end; i++ {
		b.WriteString(shiftLine(lines[i], vp.HorizontalOffset))
		b.WriteRune('\n')
	}
	return pane(border, title, name, attachScrollbar(strings.TrimRight(b.String(), "\n"), vp, innerW), width, height)
}

// shiftLine applies the horizontal scroll offset in runes.
func shiftLine(line string, offset int) string {
	if offset <= 0 {
		return line
	}
	runes := []rune(line)
	if offset >= len(runes) {
		return ""
	}
	return string(runes[offset:])
}

// --- Scrollbar ---

// attachScrollbar pads each visible row to the pane width and drops a
// thumb in the last column when the content overflows.
func attachScrollbar(content string, vp nav.Viewport, width int) string {
	if !vp.Overflows() || width < 2 {
		return content
	}
	thumbRow := 0
	if vp.ContentLen > 0 && vp.Height > 1 {
		thumbRow = vp.ScrollbarPosition() * (vp.Height - 1) / vp.ContentLen
	}

	lines := strings.Split(content, "\n")
	for len(lines) < vp.Height {
		lines = append(lines, "")
	}
	for i := range lines {
		mark := "│"
		if i == thumbRow {
			mark = "█"
		}
		lines[i] = padLine(truncateLine(lines[i], width-1), width-1) + dimStyle.Render(mark)
	}
	return strings.Join(lines, "\n")
}

// --- Footer ---

func (m uiModel) renderFooter(visible int) string {
	left := " " + contextHelp(m.nav.Active)
	if m.statusMessage != "" {
		left = " " + m.statusMessage
	}
	right := fmt.Sprintf("%d traces | %d connected | ws://%s ", visible, m.connections, m.wsAddr)
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right)))
	return footerStyle.Render(truncateLine(left+gap+right, m.width))
}

func contextHelp(b nav.Block) string {
	switch b {
	case nav.BlockTraces:
		return "j/k: select | enter: inspect | /: search | f: filter | s: sort | y: curl | d: delete | ?: help | q: quit"
	case nav.BlockRequestDetails:
		return "j/k: scroll | [/]: pane | ctrl+down: response | tab: next | esc: back | q: quit"
	case nav.BlockRequestBody, nav.BlockResponseBody:
		return "j/k: scroll | h/l: pan | tab: next | esc: back | q: quit"
	case nav.BlockResponseDetails:
		return "j/k: scroll | ctrl+up: request | tab: next | esc: back | q: quit"
	}
	return "tab: next | esc: back | ?: help | q: quit"
}

// --- Overlays ---

func (m uiModel) renderOverlay() string {
	switch m.nav.Active {
	case nav.BlockHelp:
		return overlayStyle.Render(titleFocusedStyle.Render("Keys") + "\n\n" + m.help.FullHelpView(keys.FullHelp()))
	case nav.BlockDebug:
		return overlayStyle.Render(titleFocusedStyle.Render("Debug") + "\n\n" + m.renderDebugLog())
	case nav.BlockSearch:
		return overlayStyle.Width(max(30, m.width/2)).Render(
			titleFocusedStyle.Render("Search") + "\n" + m.search.View())
	case nav.BlockFilter:
		return overlayStyle.Render(m.renderFilterScreen())
	case nav.BlockSort:
		return overlayStyle.Render(m.renderSortScreen())
	}
	return ""
}

func (m uiModel) renderDebugLog() string {
	if len(m.debugLines) == 0 {
		return dimStyle.Render("Nothing logged yet")
	}
	start := max(0, len(m.debugLines)-(m.height-6))
	return strings.Join(m.debugLines[start:], "\n")
}

func (m uiModel) renderFilterScreen() string {
	titles := map[nav.FilterScreen]string{
		nav.FilterMain:   "Filter",
		nav.FilterMethod: "Filter by method",
		nav.FilterSource: "Filter by source",
		nav.FilterStatus: "Filter by status",
	}

	var b strings.Builder
	b.WriteString(titleFocusedStyle.Render(titles[m.nav.FilterScreen]))
	b.WriteString("\n\n")

	items := m.filterItems()
	if len(items) == 0 {
		b.WriteString(dimStyle.Render("Nothing to filter on yet"))
		return b.String()
	}
	for i, item := range items {
		cursor := "  "
		if i == m.filterCursor {
			cursor = "> "
		}
		line := cursor + item
		if m.nav.FilterScreen != nav.FilterMain {
			mark := "[ ] "
			if m.filterEnabled(item) {
				mark = "[x] "
			}
			line = cursor + mark + item
		}
		if i == m.filterCursor {
			line = titleFocusedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteRune('\n')
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter: toggle | esc: back"))
	return b.String()
}

func (m uiModel) filterEnabled(item string) bool {
	switch m.nav.FilterScreen {
	case nav.FilterMethod:
		return m.filters.methods[item]
	case nav.FilterSource:
		return m.filters.sources[item]
	case nav.FilterStatus:
		return m.filters.statuses[item]
	}
	return false
}

func (m uiModel) renderSortScreen() string {
	var b strings.Builder
	b.WriteString(titleFocusedStyle.Render("Sort"))
	b.WriteString("\n\n")
	for i, name := range sortFieldNames {
		cursor := "  "
		if i == m.sortCursor {
			cursor = "> "
		}
		line := cursor + name
		if sortField(i) == m.sorting.field {
			dir := "desc"
			if m.sorting.ascending {
				dir = "asc"
			}
			line += " (" + dir + ")"
		}
		if i == m.sortCursor {
			line = titleFocusedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteRune('\n')
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter: select, again to flip | esc: close"))
	return b.String()
}

// --- Helpers ---

// truncateLine truncates to at most width visible characters,
// preserving ANSI escape codes.
func truncateLine(line string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(line) > width {
		return ansi.Truncate(line, width, "")
	}
	return line
}

func padLine(line string, width int) string {
	if w := lipgloss.Width(line); w < width {
		return line + strings.Repeat(" ", width-w)
	}
	return line
}
