package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/data-lens/internal/dataset"
	"github.com/golovatskygroup/data-lens/internal/report"
)

func testFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	f, err := dataset.LoadCSV(strings.NewReader("a,b\n1,x\n"), "t.csv", dataset.Options{})
	require.NoError(t, err)
	return f
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	s := m.Create(testFrame(t))
	require.NotEmpty(t, s.ID)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, m.List(), 1)
	assert.True(t, m.Delete(s.ID))
	assert.False(t, m.Delete(s.ID))
}

func TestReportsKeyedByKind(t *testing.T) {
	s := NewManager().Create(testFrame(t))

	_, ok := s.Report(report.Statistics)
	assert.False(t, ok)

	s.SetReport(report.Report{Kind: report.Statistics, Text: "stats v1"})
	s.SetReport(report.Report{Kind: report.GeneralInfo, Text: "geral"})
	s.SetReport(report.Report{Kind: report.Statistics, Text: "stats v2"})

	r, ok := s.Report(report.Statistics)
	require.True(t, ok)
	assert.Equal(t, "stats v2", r.Text)

	all := s.Reports()
	require.Len(t, all, 2)
	assert.Equal(t, report.GeneralInfo, all[0].Kind)
}

func TestDoSerializesRequests(t *testing.T) {
	s := NewManager().Create(testFrame(t))

	var mu sync.Mutex
	active, maxActive := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(context.Background(), func(context.Context) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
}

func TestDoHonorsCanceledContext(t *testing.T) {
	s := NewManager().Create(testFrame(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestExpire(t *testing.T) {
	m := NewManager()
	old := m.Create(testFrame(t))
	old.mu.Lock()
	old.lastUsed = time.Now().Add(-time.Hour)
	old.mu.Unlock()
	fresh := m.Create(testFrame(t))

	ids := m.Expire(time.Now().Add(-time.Minute))
	assert.Equal(t, []string{old.ID}, ids)
	_, err := m.Get(fresh.ID)
	assert.NoError(t, err)
}
