package session

import (
	"context"
	"errors"
	"testing"

	"github.com/ripplecut/ripplecut/internal/media"
)

func TestNew(t *testing.T) {
	info := media.Info{Duration: 120, HasVideo: true, HasAudio: true}
	sess := New("/media/talk.mp4", info)

	if sess.ID == "" {
		t.Error("expected generated ID")
	}
	if sess.Timeline == nil || sess.Timeline.OriginalDuration() != 120 {
		t.Error("expected timeline model at probed duration")
	}
	if sess.Waveform == nil {
		t.Error("expected waveform stream")
	}
	if got := sess.Export().State; got != ExportIdle {
		t.Errorf("expected idle export state, got %s", got)
	}
}

func TestSession_ExportLifecycle(t *testing.T) {
	sess := New("a.mp4", media.Info{Duration: 10})

	if err := sess.BeginExport(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sess.BeginExport(); !errors.Is(err, ErrExportActive) {
		t.Errorf("expected ErrExportActive while running, got %v", err)
	}

	sess.SetExportProgress(0.4)
	if got := sess.Export().Progress; got != 0.4 {
		t.Errorf("expected progress 0.4, got %v", got)
	}

	sess.CompleteExport("/out/a_export.mp4", "")
	exp := sess.Export()
	if exp.State != ExportCompleted || exp.OutputPath != "/out/a_export.mp4" {
		t.Errorf("unexpected export snapshot: %+v", exp)
	}

	// A finished export can be re-run.
	if err := sess.BeginExport(); err != nil {
		t.Errorf("expected re-export allowed, got %v", err)
	}
}

func TestSession_StaleCompletionAfterCancelIgnored(t *testing.T) {
	sess := New("a.mp4", media.Info{Duration: 10})
	_ = sess.BeginExport()

	sess.CancelExport()
	if got := sess.Export().State; got != ExportCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}

	// The in-flight run finishing later must not resurrect the export.
	sess.CompleteExport("/out/late.mp4", "")
	if got := sess.Export(); got.State != ExportCancelled || got.OutputPath != "" {
		t.Errorf("expected stale completion dropped, got %+v", got)
	}

	sess.FailExport("late failure")
	if got := sess.Export().State; got != ExportCancelled {
		t.Errorf("expected stale failure dropped, got %s", got)
	}
}

func TestSession_ProgressAfterTerminalDropped(t *testing.T) {
	sess := New("a.mp4", media.Info{Duration: 10})
	_ = sess.BeginExport()
	sess.CompleteExport("/out/a.mp4", "")

	sess.SetExportProgress(0.5)
	if got := sess.Export().Progress; got != 1 {
		t.Errorf("expected progress pinned at 1, got %v", got)
	}
}

func TestSession_DetectParamsClearError(t *testing.T) {
	sess := New("a.mp4", media.Info{Duration: 10})
	sess.SetDetectError("decoder exploded")
	if sess.DetectError() == "" {
		t.Fatal("expected error recorded")
	}

	sess.SetDetectParams(sess.DetectParams())
	if sess.DetectError() != "" {
		t.Error("expected new parameters to clear the stale error")
	}
}

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	sess := New("a.mp4", media.Info{Duration: 10})

	if err := repo.Save(ctx, sess); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found, err := repo.FindByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != sess.ID {
		t.Errorf("expected ID %s, got %s", sess.ID, found.ID)
	}
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.FindByID(context.Background(), "nonexistent")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	sess := New("a.mp4", media.Info{Duration: 10})
	_ = repo.Save(ctx, sess)

	if err := repo.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FindByID(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected session gone, got %v", err)
	}
	if err := repo.Delete(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on double delete, got %v", err)
	}
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.Save(ctx, New("a.mp4", media.Info{Duration: 10}))
	_ = repo.Save(ctx, New("b.mp4", media.Info{Duration: 20}))

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(all))
	}
}
