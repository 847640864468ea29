package events

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRecorderOfType(t *testing.T) {
	r := &Recorder{}
	r.Emit(Event{Type: StatusHealed, ExpenseID: "a"})
	r.Emit(Event{Type: VerificationRetry, ExpenseID: "b"})
	r.Emit(Event{Type: StatusHealed, ExpenseID: "c"})

	if got := len(r.Events()); got != 3 {
		t.Fatalf("Events() returned %d events, expected 3", got)
	}

	healed := r.OfType(StatusHealed)
	if len(healed) != 2 {
		t.Fatalf("OfType(StatusHealed) returned %d events, expected 2", len(healed))
	}
	if healed[0].ExpenseID != "a" || healed[1].ExpenseID != "c" {
		t.Errorf("OfType(StatusHealed) = %+v, expected ids a and c in order", healed)
	}
}

func TestLogEmitter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewLogEmitter(logger, slog.LevelWarn).Emit(Event{
		Type:      StatusHealed,
		ExpenseID: "exp-1",
		Message:   "status corrected",
		Attrs:     map[string]any{"from": "paid"},
	})

	out := buf.String()
	for _, want := range []string{"level=WARN", "status corrected", "event=status_healed", "expense_id=exp-1", "from=paid"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q does not contain %q", out, want)
		}
	}
}

func TestMultiAndOrDiscard(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi{a, nil, b}.Emit(Event{Type: ActiveDebtExcluded})

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Errorf("Multi did not forward to every emitter: a=%d b=%d", len(a.Events()), len(b.Events()))
	}

	if OrDiscard(nil) != Discard {
		t.Errorf("OrDiscard(nil) should return Discard")
	}
	if OrDiscard(a) != Emitter(a) {
		t.Errorf("OrDiscard(a) should return a")
	}
}
