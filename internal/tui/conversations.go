package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Keta432/medichat/internal/events"
	"github.com/Keta432/medichat/internal/models"
)

// conversationOpenedMsg reports the outcome of selecting a conversation
// through the session before the thread view takes over.
type conversationOpenedMsg struct {
	summary models.ConversationSummary
	err     error
}

type conversationItem struct {
	summary models.ConversationSummary
}

func (i conversationItem) Title() string {
	title := i.summary.Participant.Name
	if title == "" {
		title = i.summary.Participant.ID
	}
	if i.summary.UnreadCount > 0 {
		title += " " + unreadBadgeStyle.Render(fmt.Sprintf("%d", i.summary.UnreadCount))
	}
	return title
}

func (i conversationItem) Description() string {
	if i.summary.Placeholder {
		return helpStyle.Render("no messages yet")
	}
	preview := i.summary.LastMessage.Content
	if len(preview) > 50 {
		preview = preview[:47] + "..."
	}
	return fmt.Sprintf("%s • %s", formatTimeAgo(i.summary.UpdatedAt), preview)
}

func (i conversationItem) FilterValue() string {
	return i.summary.Participant.Name
}

func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	duration := time.Since(t)
	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return fmt.Sprintf("%dm ago", int(duration.Minutes()))
	case duration < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(duration.Hours()))
	case duration < 48*time.Hour:
		return "yesterday"
	case duration < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(duration.Hours()/24))
	}
	return t.Format("Jan 2")
}

type conversationsModel struct {
	app          *app
	list         list.Model
	spinner      spinner.Model
	opening      bool
	err          error
	windowWidth  int
	windowHeight int
}

func newConversationsModel(shared *app) conversationsModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("39")).
		Bold(true)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("8"))

	l := list.New([]list.Item{}, delegate, 80, 20)
	l.Title = "Conversations"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	m := conversationsModel{
		app:          shared,
		list:         l,
		spinner:      s,
		windowWidth:  80,
		windowHeight: 30,
	}
	m.reload()
	return m
}

func (m *conversationsModel) reload() {
	summaries := m.app.session.Conversations()
	items := make([]list.Item, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, conversationItem{summary: summary})
	}
	m.list.SetItems(items)
}

func (m conversationsModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.app.waitForEvent())
}

// openConversationCmd selects the counterpart on the session so the
// thread is fetched, unread clears, and the composer addresses it.
func (m conversationsModel) openConversationCmd(summary models.ConversationSummary) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return conversationOpenedMsg{summary: summary, err: m.app.session.SelectConversation(ctx, summary.Participant.ID)}
	}
}

func (m conversationsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.list.SetSize(msg.Width-2, msg.Height-4)
		return m, nil

	case sessionEventMsg:
		switch msg.event.Type {
		case events.TypeConversations:
			m.reload()
		case events.TypeSyncError:
			m.err = msg.event.Err
		}
		return m, m.app.waitForEvent()

	case conversationOpenedMsg:
		m.opening = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		thread := newMessagesModel(m.app, msg.summary.Participant.ID, msg.summary.Participant.Name)
		return thread.withSize(m.windowWidth, m.windowHeight), thread.Init()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "enter":
			item, ok := m.list.SelectedItem().(conversationItem)
			if !ok || m.opening {
				return m, nil
			}
			m.err = nil
			m.opening = true
			return m, tea.Batch(m.spinner.Tick, m.openConversationCmd(item.summary))

		case "n":
			picker := newContactsModel(m.app)
			return picker.withSize(m.windowWidth, m.windowHeight), picker.Init()

		case "r":
			m.err = nil
			m.app.session.RefreshNow()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m conversationsModel) View() string {
	s := titleStyle.Render("MediChat") + "\n"

	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("Sync error: %v", m.err)) + "\n"
	}

	if m.opening {
		s += fmt.Sprintf("  %s Opening thread...\n", m.spinner.View())
	} else if len(m.list.Items()) == 0 {
		s += normalStyle.Render("  No conversations yet. Press n to start one.") + "\n"
	} else {
		s += m.list.View() + "\n"
	}

	s += "\n" + helpStyle.Render("enter: open • n: new conversation • r: refresh • /: filter • q: quit")
	return s
}
