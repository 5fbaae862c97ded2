package directory

import (
	"errors"
	"testing"

	"gamehall/lobby/internal/logging"
)

type fakeHandle struct {
	frames [][]byte
	fail   bool
	closed bool
}

func (f *fakeHandle) WriteFrame(payload []byte) error {
	if f.fail {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, append([]byte(nil), payload...))
	return nil
}

func (f *fakeHandle) Close() error {
	f.closed = true
	return nil
}

func TestAttachIsIdempotent(t *testing.T) {
	dir := New(logging.NewTestLogger())
	h := &fakeHandle{}
	dir.Attach("ada", h, RolePrimary)
	dir.Attach("ada", h, RolePrimary)
	if got := dir.Handles("ada"); got != 1 {
		t.Fatalf("expected 1 handle, got %d", got)
	}
}

func TestDeliverReachesAllRoles(t *testing.T) {
	dir := New(logging.NewTestLogger())
	primary := &fakeHandle{}
	notifier := &fakeHandle{}
	dir.Attach("ada", primary, RolePrimary)
	dir.Attach("ada", notifier, RoleNotifier)

	if got := dir.Deliver("ada", []byte("hello")); got != 2 {
		t.Fatalf("expected 2 deliveries, got %d", got)
	}
	if len(primary.frames) != 1 || len(notifier.frames) != 1 {
		t.Fatalf("both handles should receive the push")
	}
}

func TestDeliverPrunesDeadHandles(t *testing.T) {
	dir := New(logging.NewTestLogger())
	dead := &fakeHandle{fail: true}
	live := &fakeHandle{}
	dir.Attach("ada", dead, RolePrimary)
	dir.Attach("ada", live, RoleNotifier)

	if got := dir.Deliver("ada", []byte("x")); got != 1 {
		t.Fatalf("expected 1 delivery, got %d", got)
	}
	if !dead.closed {
		t.Fatalf("dead handle should be closed after pruning")
	}
	if got := dir.Handles("ada"); got != 1 {
		t.Fatalf("dead handle should be pruned, have %d", got)
	}
}

func TestDeliverToOfflineIdentityIsNotAnError(t *testing.T) {
	dir := New(logging.NewTestLogger())
	if got := dir.Deliver("ghost", []byte("x")); got != 0 {
		t.Fatalf("expected 0 deliveries, got %d", got)
	}
}

func TestDetachRemovesIdentityWhenEmpty(t *testing.T) {
	dir := New(logging.NewTestLogger())
	h := &fakeHandle{}
	dir.Attach("ada", h, RolePrimary)
	dir.Detach("ada", h)
	if got := dir.Handles("ada"); got != 0 {
		t.Fatalf("expected no handles, got %d", got)
	}
}
