package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/YikKhai0303/ChatApp/internal/chat"
	"github.com/YikKhai0303/ChatApp/internal/database"
	"github.com/YikKhai0303/ChatApp/internal/gemini"
	"github.com/YikKhai0303/ChatApp/internal/reply"
	"github.com/YikKhai0303/ChatApp/internal/store"
	"github.com/YikKhai0303/ChatApp/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowUpstream struct {
	called  chan struct{}
	release chan struct{}
}

func (s *slowUpstream) GenerateContent(ctx context.Context, _ []gemini.Content) (string, error) {
	close(s.called)
	<-s.release
	return "late answer", nil
}

func TestStopApp_ClosesStorageAfterInFlightSend(t *testing.T) {
	db, err := database.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)

	ctx := context.Background()
	st := store.New(db)
	room, err := st.CreateChatroom(ctx, 1, "Trip Planning", "")
	require.NoError(t, err)

	up := &slowUpstream{called: make(chan struct{}), release: make(chan struct{})}
	svc := chat.NewService(st, reply.New(up, reply.WithMinInterval(0)), reply.ScopeGlobal)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.Send(r.Context(), 1, room.ID, "Plan a day in Paris"); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})}
	go srv.Serve(ln)

	go func() {
		resp, err := http.Post("http://"+ln.Addr().String(), "application/json", nil)
		if err == nil {
			resp.Body.Close()
		}
	}()

	select {
	case <-up.called:
	case <-time.After(5 * time.Second):
		t.Fatal("send never reached the upstream")
	}

	storedAtClose := -1
	closeDB := func() error {
		msgs, err := st.ListMessages(ctx, room.ID)
		if err != nil {
			return err
		}
		storedAtClose = len(msgs)
		return sqlDB.Close()
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- stopApp(srv, ws.NewHub(), func() {}, closeDB)(stopCtx)
	}()

	select {
	case err := <-done:
		t.Fatalf("stopped while a send was in flight: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	assert.Equal(t, -1, storedAtClose)

	close(up.release)
	require.NoError(t, <-done)
	assert.Equal(t, 2, storedAtClose, "user message and reply stored before the database closed")
}
