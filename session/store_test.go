package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, "ag")
}

func newTestSession(id, userID, token string) *Session {
	now := time.Now()
	return &Session{
		ID:            id,
		UserID:        userID,
		Token:         token,
		DeviceType:    DeviceDesktop,
		Browser:       BrowserFirefox,
		ClientAddress: "203.0.113.7",
		Status:        StatusActive,
		CreatedAt:     now.Unix(),
		LastActivity:  now.Unix(),
		ExpiresAt:     now.Add(time.Hour).Unix(),
	}
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("s1", "u1", "tok-1")
	if err := store.Create(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "u1" || got.Token != "tok-1" || got.Status != StatusActive {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.Browser != BrowserFirefox || got.DeviceType != DeviceDesktop {
		t.Fatalf("device fields lost: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("Get missing = %v, want redis.Nil", err)
	}
}

func TestGetPrunesExpiredRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess := newTestSession("s1", "u1", "tok-1")
	sess.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Create(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := store.Get(ctx, "s1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("Get expired = %v, want redis.Nil", err)
	}
	// The token index goes with it.
	if _, err := store.GetByToken(ctx, "tok-1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("GetByToken after prune = %v, want redis.Nil", err)
	}
}

func TestGetByToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, newTestSession("s1", "u1", "tok-1"), time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.GetByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if got.ID != "s1" {
		t.Fatalf("GetByToken resolved %q, want s1", got.ID)
	}
}

func TestListForUserNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"s1", "s2", "s3"} {
		sess := newTestSession(id, "u1", "tok-"+id)
		sess.CreatedAt = base.Add(time.Duration(i) * time.Minute).Unix()
		if err := store.Create(ctx, sess, time.Hour); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	// Someone else's session must not leak into the listing.
	if err := store.Create(ctx, newTestSession("x1", "u2", "tok-x1"), time.Hour); err != nil {
		t.Fatalf("Create x1: %v", err)
	}

	sessions, err := store.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("ListForUser returned %d sessions, want 3", len(sessions))
	}
	if sessions[0].ID != "s3" || sessions[2].ID != "s1" {
		t.Fatalf("wrong order: %s, %s, %s", sessions[0].ID, sessions[1].ID, sessions[2].ID)
	}
}

func TestListForUserPrunesStaleIndexEntries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	live := newTestSession("s1", "u1", "tok-1")
	dead := newTestSession("s2", "u1", "tok-2")
	dead.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Create(ctx, live, time.Hour); err != nil {
		t.Fatalf("Create live: %v", err)
	}
	if err := store.Create(ctx, dead, time.Hour); err != nil {
		t.Fatalf("Create dead: %v", err)
	}

	sessions, err := store.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" {
		t.Fatalf("ListForUser = %+v, want only s1", sessions)
	}

	// Second listing hits the pruned index.
	sessions, err = store.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListForUser after prune: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("ListForUser after prune returned %d sessions, want 1", len(sessions))
	}
}

func TestTouchRepointsTokenIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, newTestSession("s1", "u1", "tok-old"), time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}

	at := time.Now().Add(time.Minute)
	if err := store.Touch(ctx, "s1", "tok-new", at); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	if _, err := store.GetByToken(ctx, "tok-old"); !errors.Is(err, redis.Nil) {
		t.Fatalf("old token still resolves: %v", err)
	}

	got, err := store.GetByToken(ctx, "tok-new")
	if err != nil {
		t.Fatalf("GetByToken new: %v", err)
	}
	if got.ID != "s1" || got.Token != "tok-new" {
		t.Fatalf("unexpected session after touch: %+v", got)
	}
	if got.LastActivity != at.Unix() {
		t.Fatalf("LastActivity = %d, want %d", got.LastActivity, at.Unix())
	}
}

func TestTouchRevokedSessionRefused(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, newTestSession("s1", "u1", "tok-1"), time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Revoke(ctx, "s1", "user logout", time.Now()); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	err := store.Touch(ctx, "s1", "tok-2", time.Now())
	if !errors.Is(err, redis.Nil) {
		t.Fatalf("Touch revoked = %v, want redis.Nil", err)
	}
}

func TestRevokeIsTerminal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, newTestSession("s1", "u1", "tok-1"), time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.Revoke(ctx, "s1", "admin action", time.Now()); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get after revoke: %v", err)
	}
	if got.Status != StatusRevoked || got.RevokeReason != "admin action" {
		t.Fatalf("session not revoked: %+v", got)
	}

	// Token index is dropped, record stays listable.
	if _, err := store.GetByToken(ctx, "tok-1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("token index survived revoke: %v", err)
	}

	// Second revoke is a no-op, not an error.
	if err := store.Revoke(ctx, "s1", "again", time.Now()); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	got, err = store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get after second revoke: %v", err)
	}
	if got.RevokeReason != "admin action" {
		t.Fatalf("revoke reason overwritten: %q", got.RevokeReason)
	}
}

func TestRevokeByToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, newTestSession("s1", "u1", "tok-1"), time.Hour); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sess, err := store.RevokeByToken(ctx, "tok-1", "user logout", time.Now())
	if err != nil {
		t.Fatalf("RevokeByToken: %v", err)
	}
	if sess.ID != "s1" || sess.Status != StatusRevoked {
		t.Fatalf("unexpected revoked session: %+v", sess)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := store.Create(ctx, newTestSession(id, "u1", "tok-"+id), time.Hour); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	if err := store.Revoke(ctx, "s2", "earlier", time.Now()); err != nil {
		t.Fatalf("Revoke s2: %v", err)
	}
	if err := store.Create(ctx, newTestSession("x1", "u2", "tok-x1"), time.Hour); err != nil {
		t.Fatalf("Create x1: %v", err)
	}

	n, err := store.RevokeAllForUser(ctx, "u1", "password reset", time.Now())
	if err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	if n != 2 {
		t.Fatalf("RevokeAllForUser revoked %d, want 2", n)
	}

	sessions, err := store.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	for _, sess := range sessions {
		if sess.Status != StatusRevoked {
			t.Fatalf("session %s still %s", sess.ID, sess.Status)
		}
	}

	other, err := store.Get(ctx, "x1")
	if err != nil {
		t.Fatalf("Get x1: %v", err)
	}
	if other.Status != StatusActive {
		t.Fatalf("unrelated user's session was revoked")
	}
}

func TestSessionCurrent(t *testing.T) {
	now := time.Now()
	sess := newTestSession("s1", "u1", "tok-1")

	if !sess.Current(now) {
		t.Fatalf("fresh active session reported not current")
	}

	sess.Status = StatusRevoked
	if sess.Current(now) {
		t.Fatalf("revoked session reported current")
	}

	sess.Status = StatusActive
	sess.ExpiresAt = now.Add(-time.Second).Unix()
	if sess.Current(now) {
		t.Fatalf("expired session reported current")
	}
}
