package health

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/purpose-technology/namapp-server/internal/logging"
)

type recordedStatus struct {
	mu     sync.Mutex
	status map[string]bool
}

func (r *recordedStatus) SetBackendUp(backend string, up bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == nil {
		r.status = make(map[string]bool)
	}
	r.status[backend] = up
}

func TestChecker_RunAll(t *testing.T) {
	recorder := &recordedStatus{}
	checker := NewChecker(logging.New("test", "error", "json"), recorder)

	checker.Register("good", func(ctx context.Context) error { return nil })
	checker.Register("bad", func(ctx context.Context) error { return fmt.Errorf("unreachable") })
	checker.RunAll()

	results := checker.Results()
	if !results["good"].Healthy {
		t.Fatalf("good backend unhealthy: %+v", results["good"])
	}
	if results["bad"].Healthy || results["bad"].Error == "" {
		t.Fatalf("bad backend not recorded as failed: %+v", results["bad"])
	}
	if checker.Healthy() {
		t.Fatal("checker healthy with a failed backend")
	}
	if !recorder.status["good"] || recorder.status["bad"] {
		t.Fatalf("recorder status = %+v", recorder.status)
	}
}

func TestChecker_HealthyWithNothingProbed(t *testing.T) {
	checker := NewChecker(logging.New("test", "error", "json"), nil)
	if !checker.Healthy() {
		t.Fatal("no probes should mean healthy")
	}
}

func TestChecker_RecoversAfterFailure(t *testing.T) {
	checker := NewChecker(logging.New("test", "error", "json"), nil)

	var fail bool
	checker.Register("flaky", func(ctx context.Context) error {
		if fail {
			return fmt.Errorf("down")
		}
		return nil
	})

	fail = true
	checker.RunAll()
	if checker.Healthy() {
		t.Fatal("expected unhealthy")
	}

	fail = false
	checker.RunAll()
	if !checker.Healthy() {
		t.Fatal("expected recovery")
	}
}
