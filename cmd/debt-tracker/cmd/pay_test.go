package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/config"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/inflight"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/reconcile"
)

func TestParsePaymentType(t *testing.T) {
	tests := []struct {
		input   string
		want    model.PaymentType
		wantErr bool
	}{
		{"installment", model.PaymentInstallment, false},
		{"settle_all", model.PaymentSettleAll, false},
		{"partial", model.PaymentPartial, false},
		{"everything", "", true},
	}

	for _, tt := range tests {
		got, err := parsePaymentType(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parsePaymentType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePaymentType(%q) = %q, expected %q", tt.input, got, tt.want)
		}
	}
}

func TestDescribePaymentError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
		is   error
	}{
		{
			name: "insufficient funds",
			err:  &reconcile.InsufficientFundsError{Account: "Billetera", Available: 200, Requested: 250},
			want: "200.00 available, 250.00 requested",
		},
		{
			name: "overpayment",
			err:  &reconcile.OverpaymentError{Outstanding: 600, Requested: 700},
			want: "700.00 is more than the 600.00",
		},
		{
			name: "mismatch keeps amounts",
			err:  &reconcile.MismatchError{ExpenseID: "d1", Expected: 300, Actual: 300.6},
			want: "expected total paid 300.00, actual 300.60",
			is:   reconcile.ErrVerificationMismatch,
		},
		{
			name: "submission",
			err:  fmt.Errorf("%w: %w", reconcile.ErrSubmissionFailed, errors.New("reset")),
			want: "could not send",
			is:   reconcile.ErrSubmissionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describePaymentError(tt.err)
			if !strings.Contains(got.Error(), tt.want) {
				t.Errorf("describePaymentError() = %q, expected it to contain %q", got, tt.want)
			}
			if tt.is != nil && !errors.Is(got, tt.is) {
				t.Errorf("describePaymentError() lost %v", tt.is)
			}
		})
	}
}

func TestWithGuardReleasesOnError(t *testing.T) {
	guard := inflight.NewMemoryGuard()
	loadErr := errors.New("sheet unreachable")

	err := withGuard(context.Background(), guard, "d1", func(ctx context.Context) error {
		if !guard.Held("d1") {
			t.Error("withGuard() ran fn without holding the key")
		}
		return fmt.Errorf("failed to load sheet: %w", loadErr)
	})
	if !errors.Is(err, loadErr) {
		t.Errorf("withGuard() = %v, expected it to wrap %v", err, loadErr)
	}
	if guard.Held("d1") {
		t.Error("withGuard() kept the key after fn failed")
	}
}

func TestWithGuardInFlight(t *testing.T) {
	guard := inflight.NewMemoryGuard()
	release, err := guard.Acquire(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()

	called := false
	err = withGuard(context.Background(), guard, "d1", func(ctx context.Context) error {
		called = true
		return nil
	})
	if err == nil || !strings.Contains(err.Error(), "already in progress") {
		t.Errorf("withGuard() = %v, expected an in-progress error", err)
	}
	if called {
		t.Error("withGuard() ran fn while the key was held elsewhere")
	}
}

func TestGuardWithoutRedisIsProcessLocal(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	a := &app{cfg: &config.Config{}}
	guard, closeGuard, err := a.guard(context.Background())
	if err != nil {
		t.Fatalf("guard() error = %v", err)
	}
	defer closeGuard()

	if _, ok := guard.(*inflight.MemoryGuard); !ok {
		t.Errorf("guard() = %T, expected *inflight.MemoryGuard", guard)
	}
	if !strings.Contains(buf.String(), "only covers this process") {
		t.Errorf("guard() logged %q, expected a process-local notice", buf.String())
	}
}
