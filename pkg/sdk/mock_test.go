package memcore

import (
	"context"

	domunit "github.com/kailas-cloud/memcore/internal/domain/unit"
	healthuc "github.com/kailas-cloud/memcore/internal/usecase/health"
)

// --- unitUseCase mock ---

type mockUnitUC struct {
	createFn func(ctx context.Context, draft domunit.Unit) (domunit.Unit, error)
	getFn    func(ctx context.Context, id string) (domunit.Unit, error)
	updateFn func(ctx context.Context, id string, patch domunit.Unit) (domunit.Unit, error)
	listFn   func(ctx context.Context, typ string) ([]string, error)
}

func (m *mockUnitUC) Create(ctx context.Context, draft domunit.Unit) (domunit.Unit, error) {
	return m.createFn(ctx, draft)
}

func (m *mockUnitUC) Get(ctx context.Context, id string) (domunit.Unit, error) {
	return m.getFn(ctx, id)
}

func (m *mockUnitUC) Update(ctx context.Context, id string, patch domunit.Unit) (domunit.Unit, error) {
	return m.updateFn(ctx, id, patch)
}

func (m *mockUnitUC) ListByType(ctx context.Context, typ string) ([]string, error) {
	return m.listFn(ctx, typ)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report {
	return m.report
}
