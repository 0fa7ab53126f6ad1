package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/ronith256-meesho/qw-asr/services/vad"
	"github.com/ronith256-meesho/qw-asr/test/mock"
)

func newTestManager(t *testing.T, max int) *Manager {
	t.Helper()
	m := NewManager(ManagerOptions{
		Decoder:     mock.NewDecoder(),
		NewVADModel: func() (vad.Model, error) { return mock.NewVAD(), nil },
		MaxSessions: max,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return m
}

func TestManagerCreateAndLookup(t *testing.T) {
	is := is.New(t)
	m := newTestManager(t, 0)

	s, err := m.Create()
	is.NoErr(err)
	is.Equal(len(s.ID()), 32) // 128-bit id as hex

	got, ok := m.Get(s.ID())
	is.True(ok)
	is.Equal(got, s)
	is.Equal(m.Len(), 1)

	_, ok = m.Get("no-such-session")
	is.True(!ok)
}

func TestManagerEnforcesMaxSessions(t *testing.T) {
	is := is.New(t)
	m := newTestManager(t, 2)

	_, err := m.Create()
	is.NoErr(err)
	s2, err := m.Create()
	is.NoErr(err)

	_, err = m.Create()
	is.True(errors.Is(err, ErrServerBusy))

	// Closing a session frees a slot once it self-retires.
	s2.Close()
	deadline := time.After(2 * time.Second)
	for m.Len() >= 2 {
		select {
		case <-deadline:
			t.Fatal("closed session was not retired")
		case <-time.After(5 * time.Millisecond):
		}
	}
	_, err = m.Create()
	is.NoErr(err)
}

func TestManagerSessionIDsAreUnique(t *testing.T) {
	is := is.New(t)
	m := newTestManager(t, 0)

	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		s, err := m.Create()
		is.NoErr(err)
		is.True(!seen[s.ID()])
		seen[s.ID()] = true
	}
}

func TestManagerShutdownClosesSessions(t *testing.T) {
	is := is.New(t)
	m := NewManager(ManagerOptions{
		Decoder:     mock.NewDecoder(),
		NewVADModel: func() (vad.Model, error) { return mock.NewVAD(), nil },
	})

	s, err := m.Create()
	is.NoErr(err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	is.NoErr(m.Shutdown(ctx))

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session not closed on shutdown")
	}
}

// Isolation: closing one session leaves another untouched.
func TestManagerSessionIsolation(t *testing.T) {
	is := is.New(t)
	m := newTestManager(t, 0)

	a, err := m.Create()
	is.NoErr(err)
	b, err := m.Create()
	is.NoErr(err)

	is.NoErr(a.ApplyConfig(DefaultConfig()))
	is.NoErr(b.ApplyConfig(DefaultConfig()))

	is.NoErr(a.Ingest(ones(8000)))
	b.Close()

	// Session A still finalizes its utterance normally.
	is.NoErr(a.Finalize())
	finals := eventsOfType(drain(a), EventFinal)
	is.Equal(len(finals), 1)
	is.Equal(finals[0].SessionID, a.ID())
}
