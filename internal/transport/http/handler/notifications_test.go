package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lendi-api/internal/application/notification"
	"github.com/lendi-api/internal/application/notification/notificationtest"
	"github.com/lendi-api/internal/domain"
	jwtinfra "github.com/lendi-api/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notificationFixture struct {
	jwt   *jwtinfra.Provider
	store *notificationtest.Store
	push  *notificationtest.Dispatcher
	svc   notification.Service
	h     *NotificationHandler
}

func newNotificationFixture(t *testing.T) *notificationFixture {
	t.Helper()
	f := &notificationFixture{
		jwt:   newTestJWTProvider(t),
		store: notificationtest.NewStore(),
		push:  notificationtest.NewDispatcher("u1"),
	}
	// Each notification gets its own millisecond so ids sort by creation.
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.svc = notification.NewService(notification.ServiceDeps{
		Repo:       f.store,
		Dispatcher: f.push,
		Clock: func() time.Time {
			clock = clock.Add(time.Millisecond)
			return clock
		},
	})
	f.h = NewNotificationHandler(f.svc)
	return f
}

func (f *notificationFixture) seed(t *testing.T, userID string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		res, err := f.svc.Notify(context.Background(), notification.Event{
			UserID:   userID,
			Category: domain.CategorySystem,
			Title:    fmt.Sprintf("n%d", i),
		})
		require.NoError(t, err)
		ids = append(ids, res.Notification.NotificationID)
	}
	return ids
}

func TestNotificationList_Paginates(t *testing.T) {
	f := newNotificationFixture(t)
	f.seed(t, "u1", 25)

	rr := httptest.NewRecorder()
	serveAuthed(f.jwt, f.h.List, rr, bearerReq(t, f.jwt, http.MethodGet, "/v1/notifications?page=3&limit=10", "u1", domain.RoleUser, nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body notificationListEnvelope
	decodeBody(t, rr, &body)
	assert.Len(t, body.Notifications, 5)
	assert.Equal(t, Pagination{Total: 25, Page: 3, Pages: 3}, body.Pagination)
	// Newest first: page 3 ends with the oldest.
	assert.Equal(t, "n0", body.Notifications[4].Title)
}

func TestNotificationList_DefaultsAndEmptyPage(t *testing.T) {
	f := newNotificationFixture(t)
	f.seed(t, "u1", 3)

	rr := httptest.NewRecorder()
	serveAuthed(f.jwt, f.h.List, rr, bearerReq(t, f.jwt, http.MethodGet, "/v1/notifications?page=9", "u1", domain.RoleUser, nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body notificationListEnvelope
	decodeBody(t, rr, &body)
	assert.Empty(t, body.Notifications)
	assert.Equal(t, 3, body.Pagination.Total)
}

func TestNotificationList_InvalidPaging(t *testing.T) {
	for _, q := range []string{"page=0", "page=-1", "limit=0", "page=abc", "limit=1000"} {
		t.Run(q, func(t *testing.T) {
			f := newNotificationFixture(t)
			rr := httptest.NewRecorder()
			serveAuthed(f.jwt, f.h.List, rr, bearerReq(t, f.jwt, http.MethodGet, "/v1/notifications?"+q, "u1", domain.RoleUser, nil))
			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		})
	}
}

func TestNotificationUnreadCount_TracksMarkRead(t *testing.T) {
	f := newNotificationFixture(t)
	ids := f.seed(t, "u1", 3)

	rr := httptest.NewRecorder()
	r := withChiParam(bearerReq(t, f.jwt, http.MethodPut, "/v1/notifications/"+ids[0]+"/read", "u1", domain.RoleUser, nil), "id", ids[0])
	serveAuthed(f.jwt, f.h.MarkRead, rr, r)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	serveAuthed(f.jwt, f.h.UnreadCount, rr, bearerReq(t, f.jwt, http.MethodGet, "/v1/notifications/unread", "u1", domain.RoleUser, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]int
	decodeBody(t, rr, &body)
	assert.Equal(t, 2, body["count"])
}

func TestNotificationMarkRead_ForeignIDIsNoop(t *testing.T) {
	f := newNotificationFixture(t)
	ids := f.seed(t, "u2", 1)
	before := len(f.push.Pushes())

	rr := httptest.NewRecorder()
	r := withChiParam(bearerReq(t, f.jwt, http.MethodPut, "/v1/notifications/x/read", "u1", domain.RoleUser, nil), "id", ids[0])
	serveAuthed(f.jwt, f.h.MarkRead, rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, f.store.All("u2")[0].Read)
	assert.Len(t, f.push.Pushes(), before)
}

func TestNotificationMarkAllRead(t *testing.T) {
	f := newNotificationFixture(t)
	f.seed(t, "u1", 4)

	rr := httptest.NewRecorder()
	serveAuthed(f.jwt, f.h.MarkAllRead, rr, bearerReq(t, f.jwt, http.MethodPut, "/v1/notifications/mark-all-read", "u1", domain.RoleUser, nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]int
	decodeBody(t, rr, &body)
	assert.Equal(t, 4, body["updated"])
	n, err := f.svc.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotificationDelete_PushesDeleteMessage(t *testing.T) {
	f := newNotificationFixture(t)
	ids := f.seed(t, "u1", 2)

	rr := httptest.NewRecorder()
	r := withChiParam(bearerReq(t, f.jwt, http.MethodDelete, "/v1/notifications/"+ids[1], "u1", domain.RoleUser, nil), "id", ids[1])
	serveAuthed(f.jwt, f.h.Delete, rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, f.store.All("u1"), 1)
	types := f.push.Types()
	assert.Equal(t, domain.RealtimeDeleteNotification, types[len(types)-1])
}
