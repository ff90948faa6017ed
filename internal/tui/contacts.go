package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Keta432/medichat/internal/models"
)

type contactsFetchedMsg struct {
	contacts []models.Participant
	err      error
}

type contactOpenedMsg struct {
	contact models.Participant
	err     error
}

type contactItem struct {
	contact models.Participant
}

func (i contactItem) Title() string {
	if i.contact.Name != "" {
		return i.contact.Name
	}
	return i.contact.ID
}

func (i contactItem) Description() string {
	desc := string(i.contact.Role)
	if i.contact.Hospital != "" {
		desc += " • " + i.contact.Hospital
	}
	if i.contact.Email != "" {
		desc += " • " + i.contact.Email
	}
	return desc
}

func (i contactItem) FilterValue() string {
	return i.contact.Name
}

type contactsModel struct {
	app          *app
	list         list.Model
	spinner      spinner.Model
	loading      bool
	opening      bool
	err          error
	windowWidth  int
	windowHeight int
}

func newContactsModel(shared *app) contactsModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("39")).
		Bold(true)

	l := list.New([]list.Item{}, delegate, 80, 20)
	l.Title = "New Conversation"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	return contactsModel{
		app:          shared,
		list:         l,
		spinner:      s,
		loading:      true,
		windowWidth:  80,
		windowHeight: 30,
	}
}

func (m contactsModel) withSize(width, height int) contactsModel {
	if width > 0 {
		updated, _ := m.Update(tea.WindowSizeMsg{Width: width, Height: height})
		return updated.(contactsModel)
	}
	return m
}

func (m contactsModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchContactsCmd(), m.app.waitForEvent())
}

func (m contactsModel) fetchContactsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		contacts, err := m.app.session.EligibleContacts(ctx)
		return contactsFetchedMsg{contacts: contacts, err: err}
	}
}

func (m contactsModel) openContactCmd(contact models.Participant) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return contactOpenedMsg{contact: contact, err: m.app.session.SelectNewContact(ctx, contact)}
	}
}

func (m contactsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.list.SetSize(msg.Width-2, msg.Height-4)
		return m, nil

	case contactsFetchedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		items := make([]list.Item, 0, len(msg.contacts))
		for _, contact := range msg.contacts {
			items = append(items, contactItem{contact: contact})
		}
		m.list.SetItems(items)
		return m, nil

	case contactOpenedMsg:
		m.opening = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		thread := newMessagesModel(m.app, msg.contact.ID, msg.contact.Name)
		return thread.withSize(m.windowWidth, m.windowHeight), thread.Init()

	case sessionEventMsg:
		return m, m.app.waitForEvent()

	case spinner.TickMsg:
		if m.loading || m.opening {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "esc":
			parent := newConversationsModel(m.app)
			if m.windowWidth > 0 {
				updated, cmd := parent.Update(tea.WindowSizeMsg{Width: m.windowWidth, Height: m.windowHeight})
				parent = updated.(conversationsModel)
				return parent, tea.Batch(parent.Init(), cmd)
			}
			return parent, parent.Init()

		case "enter":
			item, ok := m.list.SelectedItem().(contactItem)
			if !ok || m.opening {
				return m, nil
			}
			m.err = nil
			m.opening = true
			return m, tea.Batch(m.spinner.Tick, m.openContactCmd(item.contact))
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m contactsModel) View() string {
	if m.loading {
		return fmt.Sprintf("\n  %s Loading contacts...\n", m.spinner.View())
	}

	s := titleStyle.Render("Start a conversation") + "\n"

	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n"
	}

	if m.opening {
		s += fmt.Sprintf("  %s Opening thread...\n", m.spinner.View())
	} else if len(m.list.Items()) == 0 {
		s += normalStyle.Render("  No contacts available.") + "\n"
	} else {
		s += m.list.View() + "\n"
	}

	s += "\n" + helpStyle.Render("enter: open • /: filter • esc: back • q: quit")
	return s
}
