package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSaver struct {
	mu    sync.Mutex
	saves []string
	keys  []Key
	err   error
	block chan struct{}
}

func (s *recordingSaver) Save(_ context.Context, key Key, content string) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves = append(s.saves, content)
	s.keys = append(s.keys, key)
	return nil
}

func (s *recordingSaver) Saves() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saves...)
}

func (s *recordingSaver) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

var phase11 = Key{ProjectID: "p1", ModuleNumber: 1, PhaseNumber: 1}

func newController(t *testing.T, saver Saver, opts Options) (*Controller, *ManualScheduler) {
	t.Helper()
	sched := NewManualScheduler()
	opts.Scheduler = sched
	if opts.Delay == 0 {
		opts.Delay = 2 * time.Second
	}
	return New(saver, phase11, "", opts), sched
}

func TestDebounceSavesOnceAfterQuietPeriod(t *testing.T) {
	saver := &recordingSaver{}
	c, sched := newController(t, saver, Options{})

	// Edits at t=0, 0.5s and 1.0s; the save happens 2s after the last one.
	require.NoError(t, c.Edit("a"))
	sched.Advance(500 * time.Millisecond)
	require.NoError(t, c.Edit("ab"))
	sched.Advance(500 * time.Millisecond)
	require.NoError(t, c.Edit("abc"))
	require.Equal(t, Pending, c.Status().State)

	sched.Advance(1900 * time.Millisecond)
	c.Wait()
	require.Empty(t, saver.Saves())

	sched.Advance(100 * time.Millisecond)
	c.Wait()
	require.Equal(t, []string{"abc"}, saver.Saves())
	require.Equal(t, Clean, c.Status().State)
	require.Equal(t, "abc", c.Status().LastSaved)
	require.Equal(t, 0, sched.Pending())
}

func TestEditPassesThroughDirty(t *testing.T) {
	var transitions []State
	c, _ := newController(t, &recordingSaver{}, Options{
		OnTransition: func(_, to State) { transitions = append(transitions, to) },
	})

	require.NoError(t, c.Edit("x"))
	require.Equal(t, []State{Dirty, Pending}, transitions)
}

func TestEditBackToSavedContentIsClean(t *testing.T) {
	saver := &recordingSaver{}
	c, sched := newController(t, saver, Options{})

	require.NoError(t, c.Edit("draft"))
	require.NoError(t, c.Edit(""))
	require.Equal(t, Clean, c.Status().State)
	require.Equal(t, 0, sched.Pending())

	sched.Advance(5 * time.Second)
	c.Wait()
	require.Empty(t, saver.Saves())
}

func TestSaveNowCancelsPendingTimer(t *testing.T) {
	saver := &recordingSaver{}
	c, sched := newController(t, saver, Options{})

	require.NoError(t, c.Edit("hello"))
	require.NoError(t, c.SaveNow(context.Background()))
	require.Equal(t, []string{"hello"}, saver.Saves())
	require.Equal(t, Clean, c.Status().State)

	sched.Advance(10 * time.Second)
	c.Wait()
	require.Equal(t, []string{"hello"}, saver.Saves())
}

func TestSaveNowWithoutChangesStillSaves(t *testing.T) {
	saver := &recordingSaver{}
	c, _ := newController(t, saver, Options{})

	require.NoError(t, c.SaveNow(context.Background()))
	require.Equal(t, []string{""}, saver.Saves())
	require.Equal(t, Clean, c.Status().State)
}

func TestSaveAndCloseWithoutEditsSavesOnce(t *testing.T) {
	saver := &recordingSaver{}
	c := New(saver, phase11, "loaded", Options{Scheduler: NewManualScheduler()})

	require.NoError(t, c.SaveAndClose(context.Background()))
	require.Equal(t, []string{"loaded"}, saver.Saves())
	require.Equal(t, []Key{phase11}, saver.keys)
	require.True(t, c.Status().Closed)
}

func TestSaveFailureEntersErrorAndRetries(t *testing.T) {
	saver := &recordingSaver{}
	var gotErr error
	c, sched := newController(t, saver, Options{
		OnError: func(_ Key, err error) { gotErr = err },
	})

	saver.fail(errors.New("network down"))
	require.NoError(t, c.Edit("text"))
	sched.Advance(2 * time.Second)
	c.Wait()

	st := c.Status()
	require.Equal(t, Error, st.State)
	require.Equal(t, "text", st.Content)
	require.EqualError(t, st.Err, "network down")
	require.EqualError(t, gotErr, "network down")

	saver.fail(nil)
	require.NoError(t, c.Edit("text!"))
	require.Equal(t, Pending, c.Status().State)
	sched.Advance(2 * time.Second)
	c.Wait()
	require.Equal(t, []string{"text!"}, saver.Saves())
	require.Equal(t, Clean, c.Status().State)
	require.NoError(t, c.Status().Err)
}

func TestSaveNowRetriesAfterError(t *testing.T) {
	saver := &recordingSaver{}
	c, sched := newController(t, saver, Options{})

	saver.fail(errors.New("boom"))
	require.NoError(t, c.Edit("text"))
	sched.Advance(2 * time.Second)
	c.Wait()
	require.Equal(t, Error, c.Status().State)

	saver.fail(nil)
	require.NoError(t, c.SaveNow(context.Background()))
	require.Equal(t, []string{"text"}, saver.Saves())
	require.Equal(t, Clean, c.Status().State)
}

func TestEditDuringSaveIsSavedAfterwards(t *testing.T) {
	saver := &recordingSaver{block: make(chan struct{})}
	c, sched := newController(t, saver, Options{})

	require.NoError(t, c.Edit("first"))
	sched.Advance(2 * time.Second)
	require.Equal(t, Saving, c.Status().State)

	require.NoError(t, c.Edit("second"))
	require.Equal(t, Saving, c.Status().State)

	close(saver.block)
	c.Wait()
	require.Equal(t, []string{"first"}, saver.Saves())
	require.Equal(t, Pending, c.Status().State)
	require.Equal(t, "first", c.Status().LastSaved)

	sched.Advance(2 * time.Second)
	c.Wait()
	require.Equal(t, []string{"first", "second"}, saver.Saves())
	require.Equal(t, Clean, c.Status().State)
}

func TestSaveAndClose(t *testing.T) {
	saver := &recordingSaver{}
	var saved []string
	c, sched := newController(t, saver, Options{
		OnSaved: func(_ Key, content string) { saved = append(saved, content) },
	})

	require.NoError(t, c.Edit("final"))
	require.NoError(t, c.SaveAndClose(context.Background()))
	require.True(t, c.Status().Closed)
	require.Equal(t, []string{"final"}, saved)

	require.ErrorIs(t, c.Edit("more"), ErrClosed)
	sched.Advance(time.Minute)
	c.Wait()
	require.Equal(t, []string{"final"}, saver.Saves())
}

func TestSaveAndCloseFailureStaysOpen(t *testing.T) {
	saver := &recordingSaver{}
	c, _ := newController(t, saver, Options{})
	saver.fail(errors.New("offline"))

	require.NoError(t, c.Edit("final"))
	err := c.SaveAndClose(context.Background())
	require.Error(t, err)

	st := c.Status()
	require.False(t, st.Closed)
	require.Equal(t, Error, st.State)
	require.Equal(t, "final", st.Content)
}

func TestCloseIgnoresLateTimer(t *testing.T) {
	saver := &recordingSaver{}
	c, sched := newController(t, saver, Options{})

	require.NoError(t, c.Edit("never saved"))
	c.Close()
	sched.Advance(time.Minute)
	c.Wait()
	require.Empty(t, saver.Saves())
}

func TestStaleTimerCallbackIsIgnored(t *testing.T) {
	saver := &recordingSaver{}
	sched := NewManualScheduler()
	c := New(saver, phase11, "", Options{Scheduler: sched})

	require.NoError(t, c.Edit("a"))
	c.mu.Lock()
	staleGen := c.gen
	c.mu.Unlock()
	require.NoError(t, c.Edit("ab"))

	c.fire(staleGen)
	c.Wait()
	require.Empty(t, saver.Saves())
	require.Equal(t, Pending, c.Status().State)
}

func TestSwitchPhaseDiscardsPendingSave(t *testing.T) {
	saver := &recordingSaver{}
	c, sched := newController(t, saver, Options{})

	require.NoError(t, c.Edit("phase one draft"))
	phase12 := Key{ProjectID: "p1", ModuleNumber: 1, PhaseNumber: 2}
	require.NoError(t, c.SwitchPhase(phase12, "stored"))

	st := c.Status()
	require.Equal(t, Clean, st.State)
	require.Equal(t, phase12, st.Key)
	require.Equal(t, "stored", st.LastSaved)

	sched.Advance(time.Minute)
	c.Wait()
	require.Empty(t, saver.Saves())

	require.NoError(t, c.Edit("stored and more"))
	sched.Advance(2 * time.Second)
	c.Wait()
	require.Equal(t, []string{"stored and more"}, saver.Saves())
	require.Equal(t, []Key{phase12}, saver.keys)
}

func TestRealSchedulerFires(t *testing.T) {
	saver := &recordingSaver{}
	saved := make(chan string, 1)
	c := New(saver, phase11, "", Options{
		Delay:   10 * time.Millisecond,
		OnSaved: func(_ Key, content string) { saved <- content },
	})

	require.NoError(t, c.Edit("real"))
	select {
	case got := <-saved:
		require.Equal(t, "real", got)
	case <-time.After(2 * time.Second):
		t.Fatal("autosave did not fire")
	}
}

func TestManualSchedulerStop(t *testing.T) {
	sched := NewManualScheduler()
	fired := false
	timer := sched.AfterFunc(time.Second, func() { fired = true })
	require.True(t, timer.Stop())
	require.False(t, timer.Stop())
	sched.Advance(2 * time.Second)
	require.False(t, fired)
}
