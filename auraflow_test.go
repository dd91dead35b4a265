package auraflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/petrijr/auraflow/pkg/api"
)

func testStages(deployErr *error) Stages {
	return NewStages().
		Discover(func(ctx context.Context, v *Venture) (NicheIdea, error) {
			return NicheIdea{ChosenTopic: "Sourdough at altitude", TargetAudience: "mountain bakers", Reasoning: "recurring questions"}, nil
		}).
		Produce(func(ctx context.Context, v *Venture, idea NicheIdea) (ProductDetails, error) {
			return ProductDetails{Title: idea.ChosenTopic, ArtifactPath: "ventures/" + v.ID + "/product.md"}, nil
		}).
		Deploy(func(ctx context.Context, v *Venture, idea NicheIdea, product *ProductDetails) (SalesDetails, error) {
			if deployErr != nil && *deployErr != nil {
				return SalesDetails{}, *deployErr
			}
			if product == nil {
				return SalesDetails{}, errors.New("expected product details")
			}
			return SalesDetails{LandingPageURL: "https://" + strings.ToLower(v.ID[:8]) + ".example", PaymentLinkURL: "https://pay.example/x"}, nil
		}).
		MustBuild()
}

func TestLaunch_ReachesLive(t *testing.T) {
	orch, err := NewInMemoryOrchestrator(testStages(nil))
	if err != nil {
		t.Fatalf("NewInMemoryOrchestrator: %v", err)
	}

	v, err := Launch(context.Background(), orch)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if v.State != StateLive {
		t.Fatalf("expected %s, got %s", StateLive, v.State)
	}

	sales, err := api.DecodeSalesDetails(v.SalesDetails)
	if err != nil {
		t.Fatalf("decode sales details: %v", err)
	}
	if sales.PaymentLinkURL != "https://pay.example/x" {
		t.Fatalf("unexpected payment link %q", sales.PaymentLinkURL)
	}
}

func TestRetryFailed_ResumesFromFailedStage(t *testing.T) {
	deployErr := errors.New("deploy quota exceeded")
	orch, err := NewInMemoryOrchestrator(testStages(&deployErr))
	if err != nil {
		t.Fatalf("NewInMemoryOrchestrator: %v", err)
	}
	ctx := context.Background()

	v, err := Launch(ctx, orch)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if v.State != StateFailedDeployment {
		t.Fatalf("expected %s, got %s", StateFailedDeployment, v.State)
	}

	deployErr = nil
	v, err = RetryFailed(ctx, orch, v.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if v.State != StateLive {
		t.Fatalf("expected %s after retry, got %s", StateLive, v.State)
	}

	if _, err := RetryFailed(ctx, orch, v.ID); !errors.Is(err, api.ErrNotFailed) {
		t.Fatalf("expected ErrNotFailed for a live venture, got %v", err)
	}
}

func TestStagesBuilder_BuildReportsUnboundStates(t *testing.T) {
	_, err := NewStages().
		Discovery(api.StageFunc(func(ctx context.Context, in api.StageInput) (any, error) { return nil, nil })).
		Build()
	if err == nil {
		t.Fatal("expected error for unbound stages")
	}
	for _, s := range []string{"PRODUCT_GENERATION", "DEPLOYMENT"} {
		if !strings.Contains(err.Error(), s) {
			t.Fatalf("expected error to name %s, got %v", s, err)
		}
	}
}

func TestStagesBuilder_NilFunctionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil discovery function")
		}
	}()
	NewStages().Discover(nil)
}

func TestObserverConstructorVariant(t *testing.T) {
	metrics := &BasicMetrics{}
	orch, err := NewInMemoryOrchestratorWithObserver(testStages(nil), metrics)
	if err != nil {
		t.Fatalf("NewInMemoryOrchestratorWithObserver: %v", err)
	}
	if _, err := Launch(context.Background(), orch); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	snap := metrics.Snapshot()
	if snap.StagesSucceeded != 3 {
		t.Fatalf("expected 3 successful stages, got %d", snap.StagesSucceeded)
	}
}
