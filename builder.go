package auraflow

import (
	"context"
	"errors"

	"github.com/petrijr/auraflow/pkg/api"
)

// StagesBuilder provides a fluent API for binding stage executors:
//
//	stages := auraflow.NewStages().
//	    Discover(findNiche).
//	    Produce(writeEbook).
//	    Deploy(publish).
//	    MustBuild()
//
//	orch, err := auraflow.NewInMemoryOrchestrator(stages)
//
// The typed helpers receive decoded details; Discovery, Production and
// Deployment bind raw executors instead.
type StagesBuilder struct {
	stages api.Stages
}

// NewStages creates an empty builder.
func NewStages() *StagesBuilder {
	return &StagesBuilder{}
}

var errMissingNiche = errors.New("niche idea not provided")

// Discover binds a typed discovery function.
func (b *StagesBuilder) Discover(fn func(ctx context.Context, v *Venture) (NicheIdea, error)) *StagesBuilder {
	if fn == nil {
		panic("auraflow: discovery function is nil")
	}
	return b.Discovery(api.StageFunc(func(ctx context.Context, in api.StageInput) (any, error) {
		return fn(ctx, in.Venture)
	}))
}

// Produce binds a typed product generation function.
func (b *StagesBuilder) Produce(fn func(ctx context.Context, v *Venture, idea NicheIdea) (ProductDetails, error)) *StagesBuilder {
	if fn == nil {
		panic("auraflow: production function is nil")
	}
	return b.Production(api.StageFunc(func(ctx context.Context, in api.StageInput) (any, error) {
		if in.NicheIdea == nil {
			return nil, errMissingNiche
		}
		return fn(ctx, in.Venture, *in.NicheIdea)
	}))
}

// Deploy binds a typed deployment function. product is nil when the
// venture has no product details.
func (b *StagesBuilder) Deploy(fn func(ctx context.Context, v *Venture, idea NicheIdea, product *ProductDetails) (SalesDetails, error)) *StagesBuilder {
	if fn == nil {
		panic("auraflow: deployment function is nil")
	}
	return b.Deployment(api.StageFunc(func(ctx context.Context, in api.StageInput) (any, error) {
		if in.NicheIdea == nil {
			return nil, errMissingNiche
		}
		return fn(ctx, in.Venture, *in.NicheIdea, in.ProductDetails)
	}))
}

// Discovery binds ex to DISCOVERY.
func (b *StagesBuilder) Discovery(ex StageExecutor) *StagesBuilder {
	b.stages.Discovery = ex
	return b
}

// Production binds ex to PRODUCT_GENERATION.
func (b *StagesBuilder) Production(ex StageExecutor) *StagesBuilder {
	b.stages.Production = ex
	return b
}

// Deployment binds ex to DEPLOYMENT.
func (b *StagesBuilder) Deployment(ex StageExecutor) *StagesBuilder {
	b.stages.Deployment = ex
	return b
}

// Build returns the bound stages, or an error naming every unbound state.
func (b *StagesBuilder) Build() (Stages, error) {
	if err := b.stages.Validate(); err != nil {
		return Stages{}, err
	}
	return b.stages, nil
}

// MustBuild is like Build but panics on error.
// Useful for initialization in main().
func (b *StagesBuilder) MustBuild() Stages {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
