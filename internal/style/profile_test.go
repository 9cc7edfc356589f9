package style_test

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/email-copilot/internal/model"
	"github.com/nhle/email-copilot/internal/store"
	"github.com/nhle/email-copilot/internal/style"
	"github.com/nhle/email-copilot/tests/testutil"
)

func newProfile(t *testing.T) (*style.Profile, *store.SQLiteStore) {
	t.Helper()
	s := testutil.NewTestStore(t)
	return style.NewProfile(s, log.New(io.Discard)), s
}

func TestLoadDefaults(t *testing.T) {
	p, _ := newProfile(t)

	w, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultWritingStyle(), w)
}

func TestRecordFeedback(t *testing.T) {
	ctx := context.Background()
	p, s := newProfile(t)

	_, err := p.RecordFeedback(ctx, "tone", "warm")
	require.NoError(t, err)
	_, err = p.RecordFeedback(ctx, "tone", "warm")
	require.NoError(t, err)
	_, err = p.RecordFeedback(ctx, "greeting", "Hey")
	require.NoError(t, err)
	w, err := p.RecordFeedback(ctx, "closing", "Cheers,")
	require.NoError(t, err)

	assert.Equal(t, []string{"warm", "warm"}, w.ToneMarkers)
	assert.Equal(t, []string{"Hi", "Hello", "Hey"}, w.PreferredGreetings)
	assert.Equal(t, []string{"Best,", "Regards,", "Cheers,"}, w.PreferredClosings)

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, w, loaded)

	events, err := s.ListFeedback(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestRecordFeedbackDeduplicatesGreetings(t *testing.T) {
	ctx := context.Background()
	p, s := newProfile(t)

	_, err := p.RecordFeedback(ctx, "greeting", "Hello")
	require.NoError(t, err)

	w, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi", "Hello"}, w.PreferredGreetings)

	// Nothing changed, so nothing was written or logged.
	_, err = s.Get(ctx, store.KeyWritingStyle)
	assert.ErrorIs(t, err, store.ErrNotFound)
	events, err := s.ListFeedback(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecordFeedbackUnknownKind(t *testing.T) {
	ctx := context.Background()
	p, s := newProfile(t)

	_, err := p.RecordFeedback(ctx, "signature", "J")
	assert.ErrorIs(t, err, style.ErrUnknownFeedback)

	_, err = s.Get(ctx, store.KeyWritingStyle)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordFeedbackConcurrentWritersKeepEveryTone(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(t.TempDir() + "/style.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	p := style.NewProfile(s, log.New(io.Discard))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.RecordFeedback(ctx, "tone", "concise")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	w, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, w.ToneMarkers, 8)
}

func TestStoredProfileIsNormalized(t *testing.T) {
	ctx := context.Background()
	p, s := newProfile(t)

	require.NoError(t, s.Put(ctx, store.KeyWritingStyle, []byte(`{"formality":3,"brevity":-1}`)))

	w, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultProfileName, w.ProfileName)
	assert.Equal(t, 1.0, w.Formality)
	assert.Equal(t, 0.0, w.Brevity)
	assert.Equal(t, "Hi", w.Greeting())
	assert.Equal(t, "Best,", w.Closing())
}
