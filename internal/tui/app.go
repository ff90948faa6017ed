// Package tui renders the interactive messaging terminal UI on top of
// the chat session: a conversation list, a thread view with a
// composer, and a contact picker for starting new conversations.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/Keta432/medichat/internal/chat"
	"github.com/Keta432/medichat/internal/config"
	"github.com/Keta432/medichat/internal/events"
	"github.com/Keta432/medichat/internal/logging"
)

const eventSubscriberID = "tui"

// sessionEventMsg wraps a session change event for the bubbletea loop.
type sessionEventMsg struct {
	event events.Event
}

// app carries the state shared by every screen model.
type app struct {
	session  *chat.Session
	contexts *config.ContextStore
	display  config.TUIConfig
	eventCh  chan events.Event
	logger   zerolog.Logger
}

// Run starts the terminal UI and blocks until the user quits. The
// session must already be started; its change events drive re-renders.
func Run(ctx context.Context, session *chat.Session, contexts *config.ContextStore, display config.TUIConfig) error {
	applyTheme(display.Theme)

	shared := &app{
		session:  session,
		contexts: contexts,
		display:  display,
		eventCh:  make(chan events.Event, 32),
		logger:   logging.Component("tui"),
	}

	err := session.Subscribe(eventSubscriberID, events.Filter{}, func(event events.Event) {
		select {
		case shared.eventCh <- event:
		default:
			// A slow render loop drops the notification; the next event
			// or poll cycle repaints anyway.
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Unsubscribe(eventSubscriberID); err != nil {
			shared.logger.Debug().Err(err).Msg("unsubscribe failed")
		}
	}()

	root := newConversationsModel(shared)

	var initial tea.Model = root
	if restored, ok := shared.restoreLastThread(ctx); ok {
		initial = restored
	}

	program := tea.NewProgram(initial, tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := program.Run()
	return runErr
}

// restoreLastThread reopens the thread the user had selected when the
// previous run exited.
func (a *app) restoreLastThread(ctx context.Context) (tea.Model, bool) {
	if a.contexts == nil {
		return nil, false
	}
	last, err := a.contexts.Load()
	if err != nil || last == nil || last.CounterpartID == "" {
		return nil, false
	}
	if err := a.session.SelectConversation(ctx, last.CounterpartID); err != nil {
		a.logger.Warn().Err(err).Str("counterpart", last.CounterpartID).Msg("could not restore last conversation")
		return nil, false
	}
	return newMessagesModel(a, last.CounterpartID, last.CounterpartName), true
}

// rememberThread persists the active counterpart so the next launch
// reopens it.
func (a *app) rememberThread(counterpartID, counterpartName string) {
	if a.contexts == nil {
		return
	}
	err := a.contexts.Save(&config.Context{
		CounterpartID:   counterpartID,
		CounterpartName: counterpartName,
		UpdatedAt:       time.Now(),
	})
	if err != nil {
		a.logger.Debug().Err(err).Msg("could not persist conversation context")
	}
}

// waitForEvent blocks on the session event channel and re-delivers the
// next change as a bubbletea message. Each screen re-arms it after
// consuming one.
func (a *app) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-a.eventCh
		if !ok {
			return nil
		}
		return sessionEventMsg{event: event}
	}
}
