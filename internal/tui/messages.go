package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/Keta432/medichat/internal/events"
	"github.com/Keta432/medichat/internal/models"
)

type sendResultMsg struct {
	err error
}

type messagesModel struct {
	app             *app
	counterpartID   string
	counterpartName string
	messages        []models.Message
	viewport        viewport.Model
	textarea        textarea.Model
	spinner         spinner.Model
	sending         bool
	err             error
	windowWidth     int
	windowHeight    int
}

func newMessagesModel(shared *app, counterpartID, counterpartName string) messagesModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	vp := viewport.New(80, 20)

	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.CharLimit = 1000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	m := messagesModel{
		app:             shared,
		counterpartID:   counterpartID,
		counterpartName: counterpartName,
		viewport:        vp,
		textarea:        ta,
		spinner:         s,
		windowWidth:     80,
		windowHeight:    30,
	}
	m.messages = shared.session.Messages(counterpartID)
	m.updateViewportContent()
	m.viewport.GotoBottom()
	shared.rememberThread(counterpartID, counterpartName)
	return m
}

func (m messagesModel) withSize(width, height int) messagesModel {
	if width > 0 {
		updated, _ := m.Update(tea.WindowSizeMsg{Width: width, Height: height})
		return updated.(messagesModel)
	}
	return m
}

func (m messagesModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textarea.Blink, m.app.waitForEvent())
}

func (m messagesModel) sendCmd(content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return sendResultMsg{err: m.app.session.Send(ctx, content)}
	}
}

func (m messagesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height

		headerHeight := 3
		textareaHeight := 5
		helpHeight := 2
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - headerHeight - textareaHeight - helpHeight
		m.textarea.SetWidth(msg.Width - 4)
		m.updateViewportContent()
		return m, nil

	case sessionEventMsg:
		switch msg.event.Type {
		case events.TypeThread:
			if msg.event.CounterpartID == m.counterpartID {
				atBottom := m.viewport.AtBottom()
				m.messages = m.app.session.Messages(m.counterpartID)
				m.updateViewportContent()
				if atBottom {
					m.viewport.GotoBottom()
				}
			}
		case events.TypeSyncError:
			m.err = msg.event.Err
		}
		return m, m.app.waitForEvent()

	case sendResultMsg:
		m.sending = false
		if msg.err != nil {
			// The draft stays in the composer so nothing is lost.
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.textarea.Reset()
		m.messages = m.app.session.Messages(m.counterpartID)
		m.updateViewportContent()
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc":
			m.app.session.ClearSelection()
			parent := newConversationsModel(m.app)
			if m.windowWidth > 0 {
				updated, cmd := parent.Update(tea.WindowSizeMsg{Width: m.windowWidth, Height: m.windowHeight})
				parent = updated.(conversationsModel)
				return parent, tea.Batch(parent.Init(), cmd)
			}
			return parent, parent.Init()

		case "ctrl+s":
			if m.sending {
				return m, nil
			}
			content := strings.TrimSpace(m.textarea.Value())
			if content == "" {
				return m, nil
			}
			m.sending = true
			return m, tea.Batch(m.spinner.Tick, m.sendCmd(content))

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *messagesModel) updateViewportContent() {
	if len(m.messages) == 0 {
		m.viewport.SetContent(normalStyle.Render("  No messages yet. Say hello."))
		return
	}

	wrapWidth := m.viewport.Width
	if wrapWidth <= 0 {
		wrapWidth = 80
	}

	selfID := m.app.session.Identity().UserID

	var content strings.Builder
	for i, message := range m.messages {
		if i > 0 && !m.app.display.CompactMode {
			content.WriteString("\n")
		}

		own := message.Sender.ID == selfID

		if own {
			header := "You"
			if m.app.display.ShowTimestamps {
				header += " • " + message.CreatedAt.Local().Format("Jan 2 15:04")
			}
			if message.Provisional {
				header = "You • sending..."
			} else if message.Read {
				header += " • seen"
			}
			content.WriteString(lipgloss.NewStyle().Align(lipgloss.Right).Width(wrapWidth).Render(messageHeaderStyle.Render(header)) + "\n")

			style := messageOwnStyle
			if message.Provisional {
				style = pendingStyle
			}
			wrapped := wordwrap.String(message.Content, wrapWidth-10)
			content.WriteString(lipgloss.NewStyle().Align(lipgloss.Right).Width(wrapWidth).Render(style.Render(wrapped)) + "\n")
		} else {
			sender := message.Sender.Name
			if sender == "" {
				sender = m.counterpartName
			}
			header := sender
			if m.app.display.ShowTimestamps {
				header += " • " + message.CreatedAt.Local().Format("Jan 2 15:04")
			}
			content.WriteString(messageHeaderStyle.Render(header) + "\n")
			wrapped := wordwrap.String(message.Content, wrapWidth-10)
			content.WriteString(messageOtherStyle.Render(wrapped) + "\n")
		}

		for _, attachment := range message.Attachments {
			label := attachment.Name
			if label == "" {
				label = attachment.URL
			}
			line := messageHeaderStyle.Render(fmt.Sprintf("[attachment: %s]", label))
			if own {
				line = lipgloss.NewStyle().Align(lipgloss.Right).Width(wrapWidth).Render(line)
			}
			content.WriteString(line + "\n")
		}
	}

	m.viewport.SetContent(content.String())
}

func (m messagesModel) View() string {
	name := m.counterpartName
	if name == "" {
		name = m.counterpartID
	}
	s := titleStyle.Render(name) + "\n"

	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n"
	}

	s += m.viewport.View() + "\n"

	if m.sending {
		s += fmt.Sprintf("\n  %s Sending...\n", m.spinner.View())
	} else {
		s += "\n" + inputStyle.Render("Message:") + "\n"
	}
	s += m.textarea.View() + "\n"
	s += helpStyle.Render("ctrl+s: send • pgup/pgdn: scroll • esc: back • ctrl+c: quit")
	return s
}
