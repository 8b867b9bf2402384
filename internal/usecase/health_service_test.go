package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/rallyhq/league-etl/internal/domain/etl"
)

type stubProber struct {
	hasConstraint bool
	constraintErr error
	duplicates    int
	duplicatesErr error
	orphans       etl.OrphanCounts
	orphansErr    error
}

func (p stubProber) HasTeamNaturalKeyConstraint(context.Context) (bool, error) {
	return p.hasConstraint, p.constraintErr
}

func (p stubProber) CountDuplicateTeamKeys(context.Context) (int, error) {
	return p.duplicates, p.duplicatesErr
}

func (p stubProber) OrphanCounts(context.Context) (etl.OrphanCounts, error) {
	return p.orphans, p.orphansErr
}

func TestCheckPreconditions(t *testing.T) {
	svc := NewHealthService(HealthConfig{}, nil)
	ctx := context.Background()

	if err := svc.CheckPreconditions(ctx, stubProber{hasConstraint: true}); err != nil {
		t.Fatalf("healthy schema: %v", err)
	}

	err := svc.CheckPreconditions(ctx, stubProber{hasConstraint: false})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("missing constraint: err = %v, want ErrPreconditionFailed", err)
	}

	err = svc.CheckPreconditions(ctx, stubProber{hasConstraint: true, duplicates: 3})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("duplicate keys: err = %v, want ErrPreconditionFailed", err)
	}

	err = svc.CheckPreconditions(ctx, stubProber{hasConstraint: true, orphans: etl.OrphanCounts{Links: 40}})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("critical orphans: err = %v, want ErrPreconditionFailed", err)
	}

	probeErr := errors.New("connection refused")
	err = svc.CheckPreconditions(ctx, stubProber{hasConstraint: true, duplicatesErr: probeErr})
	if !errors.Is(err, probeErr) {
		t.Fatalf("probe failure: err = %v, want wrapped %v", err, probeErr)
	}
}

func TestGrade(t *testing.T) {
	svc := NewHealthService(HealthConfig{OrphanBaseline: 10, OrphanCritical: 25}, nil)

	tests := []struct {
		total int
		want  etl.HealthStatus
	}{
		{0, etl.HealthHealthy},
		{10, etl.HealthHealthy},
		{11, etl.HealthDegraded},
		{25, etl.HealthDegraded},
		{26, etl.HealthCritical},
	}
	for _, tt := range tests {
		if got := svc.Grade(etl.OrphanCounts{Schedule: tt.total}); got != tt.want {
			t.Fatalf("Grade(%d) = %s, want %s", tt.total, got, tt.want)
		}
	}
}
