package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vraj-wappnet/freelance-chat/internal/testutil"
	"github.com/vraj-wappnet/freelance-chat/internal/types"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, testutil.TestLogger(t))
}

func TestLogin(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method, "expected a POST")
		assert.Equal(t, "/auth/login", r.URL.Path, "expected the login path")

		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cleo@example.com", req.Email, "expected the email in the body")

		json.NewEncoder(w).Encode(LoginResponse{
			User:         types.User{Id: "U1", Role: types.RoleClient},
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
		})
	}))

	resp, err := client.Login(context.Background(), "cleo@example.com", "s3cret")
	require.NoError(t, err, "expected login to succeed")
	assert.Equal(t, "U1", resp.User.Id, "expected the user summary")
	assert.Equal(t, "access-1", client.AccessToken(), "expected the access token to be stored")
}

func TestUsersByRole(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/by-role", r.URL.Path, "expected the listing path")
		assert.Equal(t, "freelancer", r.URL.Query().Get("role"), "expected the role filter")
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"), "expected the bearer credential")

		json.NewEncoder(w).Encode([]types.User{{Id: "U2", Role: types.RoleFreelancer}})
	}))
	client.SetTokens("access-1", "refresh-1")

	users, err := client.UsersByRole(context.Background(), types.RoleFreelancer)
	require.NoError(t, err, "expected the listing to succeed")
	require.Len(t, users, 1, "expected one user")
	assert.Equal(t, "U2", users[0].Id, "expected the listed user")
}

func TestConversation(t *testing.T) {
	t.Run("returns the history", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/messages/conversation", r.URL.Path, "expected the conversation path")
			assert.Equal(t, "U1", r.URL.Query().Get("userId"), "expected the caller id")
			assert.Equal(t, "U2", r.URL.Query().Get("recipientId"), "expected the counterpart id")

			json.NewEncoder(w).Encode([]types.Message{{Id: "m1", Content: "hi", SenderId: "U1", RecipientId: "U2"}})
		}))

		msgs, err := client.Conversation(context.Background(), "U1", "U2")
		require.NoError(t, err, "expected the fetch to succeed")
		require.Len(t, msgs, 1, "expected one message")
		assert.Equal(t, "m1", msgs[0].Id, "expected the message id")
	})

	t.Run("non-list body reads as empty history", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"message": "no conversation yet"})
		}))

		msgs, err := client.Conversation(context.Background(), "U1", "U2")
		require.NoError(t, err, "expected an odd body to fail soft")
		assert.Empty(t, msgs, "expected an empty history")
		assert.NotNil(t, msgs, "expected an empty slice, not nil")
	})

	t.Run("null body reads as empty history", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("null"))
		}))

		msgs, err := client.Conversation(context.Background(), "U1", "U2")
		require.NoError(t, err, "expected a null body to fail soft")
		assert.NotNil(t, msgs, "expected an empty slice, not nil")
	})
}

func TestUpdateMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method, "expected a PATCH")
		assert.Equal(t, "/messages/m1", r.URL.Path, "expected the message path")

		var update types.MessageUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&update))
		assert.Equal(t, "edited", update.Content, "expected the new content")

		json.NewEncoder(w).Encode(types.Message{Id: "m1", Content: update.Content})
	}))

	msg, err := client.UpdateMessage(context.Background(), "m1", types.MessageUpdate{Content: "edited"})
	require.NoError(t, err, "expected the edit to succeed")
	assert.Equal(t, "edited", msg.Content, "expected the edited copy back")
}

func TestDeleteMessage(t *testing.T) {
	t.Run("deletes", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method, "expected a DELETE")
			assert.Equal(t, "/messages/m1", r.URL.Path, "expected the message path")
			w.WriteHeader(http.StatusNoContent)
		}))

		assert.NoError(t, client.DeleteMessage(context.Background(), "m1"), "expected the delete to succeed")
	})

	t.Run("surfaces the server's error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"message": "message not found"})
		}))

		err := client.DeleteMessage(context.Background(), "m1")
		require.Error(t, err, "expected the failure to surface")
		assert.True(t, IsStatus(err, http.StatusNotFound), "expected the status code to be carried")
		assert.Contains(t, err.Error(), "message not found", "expected the server's message")
	})
}

func TestDo_refreshesOnUnauthorized(t *testing.T) {
	t.Run("refreshes once and retries", func(t *testing.T) {
		var refreshes atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/refresh":
				refreshes.Add(1)
				var req struct {
					RefreshToken string `json:"refreshToken"`
				}
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "refresh-1", req.RefreshToken, "expected the stored refresh token")

				json.NewEncoder(w).Encode(TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"})
			case "/projects":
				if r.Header.Get("Authorization") != "Bearer access-2" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				json.NewEncoder(w).Encode([]types.Project{{Id: "P1"}})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		client.SetTokens("stale", "refresh-1")

		projects, err := client.Projects(context.Background())
		require.NoError(t, err, "expected the retried request to succeed")
		assert.Len(t, projects, 1, "expected the listing")
		assert.Equal(t, int32(1), refreshes.Load(), "expected exactly one refresh exchange")
		assert.Equal(t, "access-2", client.AccessToken(), "expected the rotated token to be stored")
	})

	t.Run("refresh failure surfaces", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		client.SetTokens("stale", "refresh-1")

		_, err := client.Projects(context.Background())
		require.Error(t, err, "expected the failed refresh to surface")
		assert.Contains(t, err.Error(), "refresh token", "expected the refresh step in the error")
	})

	t.Run("no refresh token means no retry", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		client.SetTokens("stale", "")

		_, err := client.Projects(context.Background())
		require.Error(t, err, "expected the 401 to surface")
		assert.True(t, IsStatus(err, http.StatusUnauthorized), "expected the original status")
		assert.Equal(t, int32(1), calls.Load(), "expected no retry without a refresh token")
	})
}
