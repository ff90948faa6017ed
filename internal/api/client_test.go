package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Keta432/medichat/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL: server.URL,
		Token:   "test-token",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return client, server
}

func TestListConversations(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode([]models.ConversationSummary{
			{
				ID:          "c-1",
				Participant: models.Participant{ID: "u-2", Name: "Dr. Adams", Role: models.RoleDoctor},
				UnreadCount: 3,
				UpdatedAt:   time.Now().UTC(),
			},
		})
	}))

	conversations, err := client.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	require.Equal(t, "u-2", conversations[0].Participant.ID)
	require.Equal(t, 3, conversations[0].UnreadCount)
}

func TestListMessages(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages/u-2", r.URL.Path)

		json.NewEncoder(w).Encode([]models.Message{
			{ID: "m-1", Sender: models.Participant{ID: "u-2"}, Receiver: models.Participant{ID: "u-1"}, Content: "hello", Read: true},
			{ID: "m-2", Sender: models.Participant{ID: "u-1"}, Receiver: models.Participant{ID: "u-2"}, Content: "hi", Read: false},
		})
	}))

	messages, err := client.ListMessages(context.Background(), "u-2")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "m-1", messages[0].ID)
	require.False(t, messages[0].Provisional)
}

func TestListMessagesRequiresCounterpart(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := client.ListMessages(context.Background(), "  ")
	require.True(t, IsValidation(err))
}

func TestSendMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/messages", r.URL.Path)

		var body struct {
			Receiver string `json:"receiver"`
			Content  string `json:"content"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "u-2", body.Receiver)
		require.Equal(t, "hello there", body.Content)

		json.NewEncoder(w).Encode(models.Message{
			ID:        "m-99",
			Sender:    models.Participant{ID: "u-1"},
			Receiver:  models.Participant{ID: "u-2"},
			Content:   body.Content,
			CreatedAt: time.Now().UTC(),
		})
	}))

	created, err := client.SendMessage(context.Background(), "u-2", "hello there")
	require.NoError(t, err)
	require.Equal(t, "m-99", created.ID)
}

func TestSendMessageValidation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))

	_, err := client.SendMessage(context.Background(), "u-2", "   ")
	require.True(t, IsValidation(err))

	_, err = client.SendMessage(context.Background(), "", "hello")
	require.True(t, IsValidation(err))
}

func TestAuthErrorMapping(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := client.ListConversations(context.Background())
		require.True(t, IsAuth(err), "status %d should map to auth error", status)
	}
}

func TestServerErrorMapping(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": "database unavailable"})
	}))

	_, err := client.ListConversations(context.Background())
	require.Equal(t, KindServer, KindOf(err))
	require.Contains(t, err.Error(), "database unavailable")
}

func TestMalformedPayloadIsServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))

	_, err := client.ListConversations(context.Background())
	require.Equal(t, KindServer, KindOf(err))
}

func TestNetworkErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	serverURL := server.URL
	server.Close()

	client, err := NewClient(ClientConfig{BaseURL: serverURL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.ListConversations(context.Background())
	require.True(t, IsNetwork(err))
}

func TestListEligibleContacts(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages/users", r.URL.Path)

		json.NewEncoder(w).Encode([]models.Participant{
			{ID: "u-2", Name: "Dr. Adams", Role: models.RoleDoctor, Hospital: "h-1"},
			{ID: "u-3", Name: "Site Admin", Role: models.RoleAdmin},
		})
	}))

	contacts, err := client.ListEligibleContacts(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	require.True(t, contacts[1].IsAdmin())
}
