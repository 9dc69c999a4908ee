package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockStoragePinger struct {
	err error
}

func (m *mockStoragePinger) Ping(_ context.Context) error { return m.err }

type mockIndexVerifier struct {
	err error
}

func (m *mockIndexVerifier) VerifyIndex(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		storageErr error
		indexErr   error
		want       Status
		wantChecks map[string]CheckResult
	}{
		{
			name:       "all healthy",
			want:       Healthy,
			wantChecks: map[string]CheckResult{"storage": CheckOK, "index": CheckOK},
		},
		{
			name:       "storage down",
			storageErr: errors.New("conn refused"),
			want:       Degraded,
			wantChecks: map[string]CheckResult{"storage": CheckError, "index": CheckOK},
		},
		{
			name:       "index drift",
			indexErr:   errors.New("out of sync"),
			want:       Degraded,
			wantChecks: map[string]CheckResult{"storage": CheckOK, "index": CheckError},
		},
		{
			name:       "both fail",
			storageErr: errors.New("down"),
			indexErr:   errors.New("closed"),
			want:       Unhealthy,
			wantChecks: map[string]CheckResult{"storage": CheckError, "index": CheckError},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&mockStoragePinger{err: tc.storageErr}, &mockIndexVerifier{err: tc.indexErr})
			r := svc.Check(context.Background())

			if r.Status != tc.want {
				t.Errorf("expected %q, got %q", tc.want, r.Status)
			}
			for k, v := range tc.wantChecks {
				if r.Checks[k] != v {
					t.Errorf("expected %s %q, got %q", k, v, r.Checks[k])
				}
			}
		})
	}
}

func TestCheck_NilIndexVerifier(t *testing.T) {
	svc := New(&mockStoragePinger{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["index"]; ok {
		t.Error("index check should be absent when verifier is nil")
	}
}

func TestCheck_StorageOnlyFailing(t *testing.T) {
	svc := New(&mockStoragePinger{err: errors.New("down")}, nil)
	if r := svc.Check(context.Background()); r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}
