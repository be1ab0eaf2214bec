package display

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const panelWidth = 40

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Width(panelWidth - 2).PaddingLeft(1)
	labelNode1  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	labelNode2  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// TerminalRenderer draws the panel as text on w. Regions are kept separately
// and only composed in Flush, so one region never overwrites another.
type TerminalRenderer struct {
	mu     sync.Mutex
	w      io.Writer
	clear  bool
	header string
	node1  string
	node2  string
	link   string
}

var _ Renderer = (*TerminalRenderer)(nil)

// NewTerminalRenderer writes frames to w; clear prefixes each frame with the
// ANSI home/clear sequence for interactive terminals.
func NewTerminalRenderer(w io.Writer, clear bool) *TerminalRenderer {
	return &TerminalRenderer{w: w, clear: clear}
}

func (t *TerminalRenderer) DrawHeader(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.header = title
}

func (t *TerminalRenderer) DrawNode1(temp float64, oilFull bool, connected bool) {
	oil := badStyle.Render("Empty")
	if oilFull {
		oil = okStyle.Render("Full")
	}
	body := strings.Join([]string{
		labelNode1.Render("Node1") + " " + linkDot(connected),
		"Temp: " + strconv.FormatFloat(temp, 'f', 1, 64) + "C",
		"Oil: " + oil,
	}, "\n")

	t.mu.Lock()
	defer t.mu.Unlock()
	t.node1 = panelStyle.Render(body)
}

func (t *TerminalRenderer) DrawNode2(doorOpen bool, load, lat, lon float64, doorConnected, gpsConnected bool) {
	door := okStyle.Render("CLOSED")
	if doorOpen {
		door = badStyle.Render("OPEN")
	}
	body := strings.Join([]string{
		labelNode2.Render("Node2") + " " + linkDot(doorConnected) + "  " + labelNode2.Render("GPS") + " " + linkDot(gpsConnected),
		"Door: " + door,
		"Load: " + strconv.FormatFloat(load, 'f', 2, 64),
		"GPS: " + strconv.FormatFloat(lat, 'f', 6, 64),
		"     " + strconv.FormatFloat(lon, 'f', 6, 64),
	}, "\n")

	t.mu.Lock()
	defer t.mu.Unlock()
	t.node2 = panelStyle.Render(body)
}

func (t *TerminalRenderer) DrawLinkStatus(busOK bool) {
	s := badStyle.Render("NO CAN")
	if busOK {
		s = okStyle.Render("CAN OK")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.link = s
}

func (t *TerminalRenderer) Flush() error {
	t.mu.Lock()
	top := lipgloss.JoinHorizontal(lipgloss.Top, headerStyle.Width(panelWidth - 8).PaddingLeft(1).Render(t.header), " ", t.link)
	frame := lipgloss.JoinVertical(lipgloss.Left, top, t.node1, t.node2)
	t.mu.Unlock()

	if t.clear {
		frame = "\x1b[H\x1b[2J" + frame
	}
	_, err := fmt.Fprintln(t.w, frame)
	return err
}

func linkDot(connected bool) string {
	if connected {
		return okStyle.Render("●")
	}
	return badStyle.Render("○")
}
