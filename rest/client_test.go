package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, code int, msg string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{Code: code, Msg: msg, Data: data})
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeEnvelope(w, CodeSuccess, "success", data)
}

func TestClient_Login(t *testing.T) {
	var gotBody LoginRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeOK(w, &LoginResponse{
			Token: "tok-123",
			User:  &User{Id: "u1", Username: "alice", Email: "alice@example.com"},
		})
	}))
	defer srv.Close()

	c := MustNewClient(srv.URL)
	resp, err := c.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", gotBody.Email)
	assert.Equal(t, "secret", gotBody.Password)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, "tok-123", c.GetToken(), "login stores the session token")
}

func TestClient_BearerHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
		writeOK(w, &User{Id: "u1", Username: "alice"})
	}))
	defer srv.Close()

	c := MustNewClient(srv.URL, WithToken("tok-abc"))
	u, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", u.Id)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, CodeConvNotFound, "conversation not found", nil)
	}))
	defer srv.Close()

	c := MustNewClient(srv.URL)
	_, err := c.GetConversation(context.Background(), "nope")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeConvNotFound, apiErr.Code)
	assert.False(t, apiErr.IsAuthError())
}

func TestClient_UnauthorizedHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, CodeTokenExpired, "token expired", nil)
	}))
	defer srv.Close()

	fired := 0
	c := MustNewClient(srv.URL, WithToken("stale"), WithUnauthorizedHook(func() { fired++ }))
	_, err := c.Me(context.Background())

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsAuthError())
	assert.Equal(t, 1, fired, "auth rejection must fire the hook")
}

func TestClient_ListMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages/c1", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "50", r.URL.Query().Get("limit"))
		writeOK(w, &ListMessagesResponse{
			Messages: []*Message{{Id: "m1", ConversationId: "c1", Content: "hi"}},
			Page:     2,
			Total:    120,
		})
	}))
	defer srv.Close()

	c := MustNewClient(srv.URL)
	msgs, err := c.ListMessages(context.Background(), "c1", 2, 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].Id)
}

func TestClient_SendMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages/media", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "c1", r.FormValue("conversation_id"))
		assert.Equal(t, "holiday pic", r.FormValue("caption"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "beach.png", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "fake image bytes", string(content))

		writeOK(w, &Message{
			Id:             "m9",
			ConversationId: "c1",
			MsgType:        MsgTypeImage,
			Attachment:     &Attachment{Url: "/files/m9", Filename: header.Filename},
		})
	}))
	defer srv.Close()

	c := MustNewClient(srv.URL)
	msg, err := c.SendMedia(context.Background(), "c1", "holiday pic", "beach.png", strings.NewReader("fake image bytes"))
	require.NoError(t, err)
	assert.Equal(t, "m9", msg.Id)
	require.NotNil(t, msg.Attachment)
	assert.Equal(t, "beach.png", msg.Attachment.Filename)
}

func TestClient_MarkRead(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conversations/c1/read", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		hit = true
		writeOK(w, nil)
	}))
	defer srv.Close()

	c := MustNewClient(srv.URL)
	require.NoError(t, c.MarkRead(context.Background(), "c1"))
	assert.True(t, hit)
}

func TestError_IsAuthError(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{CodeSuccess, false},
		{CodeUnauthorized, true},
		{CodeTokenInvalid, true},
		{CodeTokenExpired, true},
		{CodeConvNotFound, false},
		{CodeMessageNotFound, false},
	}
	for _, tc := range cases {
		e := &Error{Code: tc.code}
		if e.IsAuthError() != tc.want {
			t.Errorf("code %d: expected IsAuthError=%v", tc.code, tc.want)
		}
	}
}

func TestConversation_DisplayName(t *testing.T) {
	alice := &User{Id: "u1", Username: "alice"}
	bob := &User{Id: "u2", Username: "bob"}

	t.Run("private conversation shows the counterpart", func(t *testing.T) {
		c := &Conversation{
			ConversationType: ConversationTypePrivate,
			Participants: []*Participant{
				{User: alice}, {User: bob},
			},
		}
		assert.Equal(t, "bob", c.DisplayName("u1"))
		assert.Equal(t, "alice", c.DisplayName("u2"))
	})

	t.Run("group conversation shows its name", func(t *testing.T) {
		c := &Conversation{
			ConversationType: ConversationTypeGroup,
			Name:             "ops",
			Participants:     []*Participant{{User: alice}, {User: bob}},
		}
		assert.Equal(t, "ops", c.DisplayName("u1"))
	})
}
