package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parkease/internal/domain"
	"parkease/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: spot 1", service.ErrNotFound), http.StatusNotFound},
		{service.ErrExhausted, http.StatusBadRequest},
		{service.ErrConflict, http.StatusBadRequest},
		{service.ErrInvalidState, http.StatusBadRequest},
		{service.ErrInvalidSpotClass, http.StatusBadRequest},
		{service.ErrGeocodingFailed, http.StatusBadRequest},
		{service.ErrInvalidInput, http.StatusBadRequest},
		{service.ErrUnauthorized, http.StatusForbidden},
		{service.ErrUpstreamUnavailable, http.StatusBadGateway},
		{service.ErrTransactionAborted, http.StatusConflict},
		{errors.New("pq: connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			writeError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestWriteError_RetryableAndOpaque(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	writeError(c, service.ErrTransactionAborted)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["retryable"])

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	writeError(c, errors.New("secret table reservations_x is missing"))
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestWebSocketManager_Broadcast(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWebSocketManager()
	go hub.Start(ctx)

	r := gin.New()
	r.GET("/ws", NewWebSocketHandler(hub).HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	event := domain.ReservationEvent{EventID: "e1", Type: domain.EventReservationReleased, ReservationID: 9}
	require.NoError(t, hub.Publish(ctx, event))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got domain.ReservationEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, event.EventID, got.EventID)
	assert.Equal(t, event.Type, got.Type)
	assert.Equal(t, 9, got.ReservationID)
}

func TestWebSocketManager_PublishDoesNotBlock(t *testing.T) {
	hub := NewWebSocketManager()
	var err error
	for i := 0; i < cap(hub.broadcast)+1; i++ {
		err = hub.Publish(context.Background(), domain.ReservationEvent{EventID: "x"})
	}
	assert.ErrorIs(t, err, ErrBroadcastFull)
}
