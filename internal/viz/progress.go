package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/poresim/internal/sim"
)

const historyCapacity = 600

// EventMsg carries one controller event into the program.
type EventMsg sim.Event

// DoneMsg ends the program with the run outcome.
type DoneMsg struct {
	Result *sim.Result
	Err    error
}

// Progress is a live view of one run: current stage, progress through its
// budget, the latest relative changes and a history of the averages.
type Progress struct {
	title     string
	stage     string
	cycle     int
	iteration int
	budget    int
	total     int
	frames    int
	checks    int
	converged bool
	errs      []float64
	avgF1     []float64
	avgF2     []float64
	done      bool
	result    *sim.Result
	err       error
	width     int
}

func NewProgress(title string) Progress {
	return Progress{title: title, width: 80}
}

func (m Progress) Init() tea.Cmd { return nil }

func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case EventMsg:
		m.apply(sim.Event(msg))
	case DoneMsg:
		m.done = true
		m.result, m.err = msg.Result, msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m *Progress) apply(e sim.Event) {
	m.total = e.Total
	switch e.Kind {
	case sim.EventStage:
		m.stage, m.cycle, m.budget = e.Stage, e.Cycle, e.Budget
		m.iteration = 0
		m.converged = false
	case sim.EventCheck:
		m.checks++
		m.iteration = e.Iteration
		m.converged = e.Converged
		m.errs = e.Errors
		if len(e.Averages) > 0 {
			m.avgF1 = appendCapped(m.avgF1, e.Averages[0])
		}
		if len(e.Averages) > 1 {
			m.avgF2 = appendCapped(m.avgF2, e.Averages[1])
		}
	case sim.EventFrame:
		m.frames = e.Frame + 1
		m.iteration = e.Iteration
	case sim.EventDone:
		m.result = e.Result
	}
}

func appendCapped(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > historyCapacity {
		s = s[len(s)-historyCapacity:]
	}
	return s
}

func (m Progress) fraction() float64 {
	if m.budget <= 0 {
		return 0
	}
	return float64(m.iteration+1) / float64(m.budget)
}

func (m Progress) View() string {
	var s strings.Builder
	s.WriteString(Title.Render(m.title) + "\n\n")

	stage := m.stage
	if stage == "" {
		stage = "setup"
	}
	if m.cycle > 0 {
		stage = fmt.Sprintf("%s #%d", stage, m.cycle)
	}
	s.WriteString(Field("stage", stage) + "\n")
	s.WriteString(Field("iteration", fmt.Sprintf("%d / %d", m.iteration, m.budget)) + "\n")
	s.WriteString(Label.Render("progress") + ProgressBar(m.fraction(), 30) + "\n")
	s.WriteString(Field("total steps", m.total) + "\n")
	s.WriteString(Field("checks", m.checks) + "\n")
	s.WriteString(Field("frames", m.frames) + "\n")

	state := "settling"
	if m.converged {
		state = "converged"
	}
	s.WriteString(Label.Render("state") + Status(state) + "\n")
	for i, e := range m.errs {
		s.WriteString(Field(fmt.Sprintf("change f%d", i+1), fmt.Sprintf("%.4g %%", e)) + "\n")
	}

	if len(m.avgF1) > 1 {
		s.WriteString("\n" + Label.Render("f1 density") + Sparkline(m.avgF1, 40) + "\n")
	}
	if len(m.avgF2) > 1 {
		s.WriteString(Label.Render("f2 density") + Sparkline(m.avgF2, 40) + "\n")
	}

	switch {
	case m.err != nil:
		s.WriteString("\n" + StatusFail.Render("failed: "+m.err.Error()) + "\n")
	case m.done:
		s.WriteString("\n" + StatusOK.Render("done") + "\n")
	default:
		s.WriteString("\n" + KeyHint.Render("q to detach, the run continues") + "\n")
	}
	return s.String()
}

// Sender is the part of *tea.Program the observer needs.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramObserver forwards controller events to a running program.
type ProgramObserver struct {
	p Sender
}

func NewProgramObserver(p Sender) *ProgramObserver {
	return &ProgramObserver{p: p}
}

func (o *ProgramObserver) Observe(e sim.Event) {
	o.p.Send(EventMsg(e))
}
