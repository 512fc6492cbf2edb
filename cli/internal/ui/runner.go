package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/Warpdrop/cli/internal/chat"
	"github.com/BioHazard786/Warpdrop/cli/internal/fallback"
	"github.com/BioHazard786/Warpdrop/cli/internal/negotiator"
	"github.com/BioHazard786/Warpdrop/cli/internal/session"
)

const maxLines = 200

// Room is what the session view needs from a joined session.
type Room interface {
	ID() string
	RoomID() string
	Tier() fallback.Tier
	Peers() []session.Peer
	Events() <-chan session.Event
	Send(text string) (chat.Message, error)
}

type eventMsg session.Event

type line struct {
	at     time.Time
	sender string
	text   string
	own    bool
	system bool
}

// SessionModel is the live room view: peers, the active signaling tier,
// the chat log and an input line.
type SessionModel struct {
	room     Room
	link     string
	input    textinput.Model
	spinner  spinner.Model
	lines    []line
	peers    []session.Peer
	tier     fallback.Tier
	height   int
	quitting bool
	// done stops the pending event listener once the view quits.
	done chan struct{}
}

func NewSessionModel(room Room, link string) *SessionModel {
	in := textinput.New()
	in.Placeholder = "Type a message and press enter"
	in.Prompt = PromptStyle.Render("> ")
	in.CharLimit = 1000
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &SessionModel{
		room:    room,
		link:    link,
		input:   in,
		spinner: s,
		peers:   room.Peers(),
		tier:    room.Tier(),
		height:  24,
		done:    make(chan struct{}),
	}
}

// RunSessionView runs the view until the user quits.
func RunSessionView(room Room, link string) error {
	_, err := tea.NewProgram(NewSessionModel(room, link)).Run()
	return err
}

func (m *SessionModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.listen())
}

func (m *SessionModel) listen() tea.Cmd {
	events, done := m.room.Events(), m.done
	return func() tea.Msg {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			return eventMsg(ev)
		case <-done:
			return nil
		}
	}
}

func (m *SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quit()
			return m, tea.Quit
		case tea.KeyEnter:
			m.submit()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-4)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(session.Event(msg))
		if m.quitting {
			return m, nil
		}
		return m, m.listen()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *SessionModel) quit() {
	if !m.quitting {
		m.quitting = true
		close(m.done)
	}
}

func (m *SessionModel) submit() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	m.input.Reset()

	msg, err := m.room.Send(text)
	if err != nil {
		m.system(fmt.Sprintf("%s %v", IconError, err))
		return
	}
	m.append(line{at: msg.Time(), sender: msg.Sender, text: msg.Text, own: true})
}

func (m *SessionModel) apply(ev session.Event) {
	switch ev.Kind {
	case session.EventPeerJoined:
		m.system(fmt.Sprintf("%s %s joined", DeviceIcon(ev.DeviceType), chat.SenderName(ev.PeerID)))
	case session.EventPeerLeft:
		m.system(fmt.Sprintf("%s left", chat.SenderName(ev.PeerID)))
	case session.EventPeerState:
		switch ev.State {
		case negotiator.StateConnected:
			m.system(fmt.Sprintf("%s connected to %s", IconConnect, chat.SenderName(ev.PeerID)))
		case negotiator.StateFailed:
			m.system(fmt.Sprintf("%s connection to %s failed", IconWarning, chat.SenderName(ev.PeerID)))
		}
	case session.EventMessage:
		m.append(line{at: ev.Message.Time(), sender: ev.Message.Sender, text: ev.Message.Text})
	case session.EventTierChanged:
		m.tier = ev.Tier
		if ev.Tier == fallback.TierSimulation {
			m.system(IconSim + " signaling server unreachable, running a local simulation")
		} else {
			m.system(fmt.Sprintf("%s switched to %s signaling", IconWarning, ev.Tier))
		}
	case session.EventRejoined:
		m.system(IconRoom + " rejoined the room")
	}
	m.peers = m.room.Peers()
}

func (m *SessionModel) system(text string) {
	m.append(line{at: time.Now(), text: text, system: true})
}

func (m *SessionModel) append(l line) {
	m.lines = append(m.lines, l)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
}

func (m *SessionModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	status := StatusStyle.Render(m.tier.String())
	if m.tier != fallback.TierPrimary {
		status = FallbackStatusStyle.Render(m.tier.String())
	}
	fmt.Fprintf(&b, "%s %s  %s %s\n", IconRoom, BoldStyle.Render(m.room.RoomID()), status, MutedStyle.Render(m.link))

	b.WriteString(PeerTableView(m.peers) + "\n")
	if len(m.peers) == 0 {
		fmt.Fprintf(&b, "%s\n", m.spinner.View())
	}
	b.WriteString("\n")

	// Keep the log to what fits above the peer table and the input.
	visible := max(5, m.height-len(m.peers)-12)
	start := max(0, len(m.lines)-visible)
	for _, l := range m.lines[start:] {
		b.WriteString(renderLine(l) + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(FooterStyle.Render("enter to send, esc to leave"))
	return b.String()
}

func renderLine(l line) string {
	ts := TimestampStyle.Render(l.at.Format("15:04"))
	if l.system {
		return ts + " " + SystemLineStyle.Render(l.text)
	}
	sender := PeerSenderStyle.Render(l.sender)
	if l.own {
		sender = OwnSenderStyle.Render(l.sender)
	}
	return fmt.Sprintf("%s %s %s", ts, sender, l.text)
}
