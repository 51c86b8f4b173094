package greenapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{APIURL: srv.URL, InstanceID: "1101", Token: "tok", HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Options{InstanceID: "1"})
	assert.Error(t, err)
}

func TestSendMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/waInstance1101/sendMessage/tok", r.URL.Path)
		var req SendMessageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "972501234567@c.us", req.ChatID)
		assert.Equal(t, "שלום", req.Message)
		_, _ = w.Write([]byte(`{"idMessage":"BAE5"}`))
	})

	id, err := c.SendMessage(context.Background(), "972501234567@c.us", "שלום")
	require.NoError(t, err)
	assert.Equal(t, "BAE5", id)
}

func TestSendMessage_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"instance not authorized"}`))
	})

	_, err := c.SendMessage(context.Background(), "1@c.us", "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestGetChatHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/waInstance1101/getChatHistory/tok", r.URL.Path)
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(30), req["count"])
		_, _ = w.Write([]byte(`[
			{"type":"outgoing","idMessage":"2","typeMessage":"textMessage","chatId":"1@c.us","textMessage":"hello back"},
			{"type":"incoming","idMessage":"1","typeMessage":"extendedTextMessage","chatId":"1@c.us","senderId":"1@c.us","extendedTextMessage":{"text":"hi"}}
		]`))
	})

	items, err := c.GetChatHistory(context.Background(), "1@c.us", 30)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "hello back", items[0].Text())
	assert.Equal(t, "hi", items[1].Text())
	assert.Equal(t, "incoming", items[1].Type)
}

func TestLastIncomingMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/waInstance1101/lastIncomingMessages/tok", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("minutes"))
		_, _ = w.Write([]byte(`[{"idMessage":"A1","typeMessage":"textMessage","chatId":"2@c.us","senderName":"Noa","textMessage":"still there?"}]`))
	})

	items, err := c.LastIncomingMessages(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A1", items[0].IDMessage)
	assert.Equal(t, "still there?", items[0].Text())
}

func TestReceiveAndDeleteNotification(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			calls++
			assert.Equal(t, "/waInstance1101/receiveNotification/tok", r.URL.Path)
			assert.Equal(t, "20", r.URL.Query().Get("receiveTimeout"))
			if calls > 1 {
				_, _ = w.Write([]byte(`null`))
				return
			}
			_, _ = w.Write([]byte(`{"receiptId":7,"body":{"typeWebhook":"incomingMessageReceived","idMessage":"M1",
				"senderData":{"chatId":"3@c.us","senderName":"Avi"},
				"messageData":{"typeMessage":"quotedMessage","extendedTextMessageData":{"text":"quoted reply"}}}}`))
		case http.MethodDelete:
			assert.Equal(t, "/waInstance1101/deleteNotification/tok/7", r.URL.Path)
			_, _ = w.Write([]byte(`{"result":true}`))
		}
	})

	n, err := c.ReceiveNotification(context.Background(), 20)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, int64(7), n.ReceiptID)
	assert.Equal(t, "quoted reply", n.Body.MessageData.Text())
	require.NoError(t, c.DeleteNotification(context.Background(), n.ReceiptID))

	n, err = c.ReceiveNotification(context.Background(), 20)
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestMessageData_TextByType(t *testing.T) {
	cases := []struct {
		name string
		data MessageData
		want string
	}{
		{"plain", MessageData{TypeMessage: TypeText, TextMessageData: &TextData{TextMessage: "a"}}, "a"},
		{"extended", MessageData{TypeMessage: TypeExtendedText, ExtendedTextMessageData: &ExtendedText{Text: "b"}}, "b"},
		{"quoted falls back to plain", MessageData{TypeMessage: TypeQuoted, TextMessageData: &TextData{TextMessage: "c"}}, "c"},
		{"image ignored", MessageData{TypeMessage: "imageMessage", TextMessageData: &TextData{TextMessage: "d"}}, ""},
		{"missing payload", MessageData{TypeMessage: TypeText}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.data.Text())
		})
	}
}
