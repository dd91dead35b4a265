package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// State represents the lifecycle state of a venture.
type State string

const (
	StateDiscovery         State = "DISCOVERY"
	StateProductGeneration State = "PRODUCT_GENERATION"
	StateDeployment        State = "DEPLOYMENT"
	StateLive              State = "LIVE"

	StateFailedDiscovery         State = "FAILED_DISCOVERY"
	StateFailedProductGeneration State = "FAILED_PRODUCT_GENERATION"
	StateFailedDeployment        State = "FAILED_DEPLOYMENT"
)

// InitialState is the state every new venture starts in.
const InitialState = StateDiscovery

// ActiveStates lists the non-terminal states in pipeline order.
var ActiveStates = []State{
	StateDiscovery,
	StateProductGeneration,
	StateDeployment,
}

// AllStates is the closed set of states a venture can be in.
var AllStates = []State{
	StateDiscovery,
	StateProductGeneration,
	StateDeployment,
	StateLive,
	StateFailedDiscovery,
	StateFailedProductGeneration,
	StateFailedDeployment,
}

// transition describes the edges out of a non-terminal state.
type transition struct {
	next   State
	failed State
	output DetailField
}

var transitions = map[State]transition{
	StateDiscovery:         {next: StateProductGeneration, failed: StateFailedDiscovery, output: FieldNicheIdea},
	StateProductGeneration: {next: StateDeployment, failed: StateFailedProductGeneration, output: FieldProductDetails},
	StateDeployment:        {next: StateLive, failed: StateFailedDeployment, output: FieldSalesDetails},
}

var failedOrigins = map[State]State{
	StateFailedDiscovery:         StateDiscovery,
	StateFailedProductGeneration: StateProductGeneration,
	StateFailedDeployment:        StateDeployment,
}

// ParseState converts s to a State, rejecting anything outside AllStates.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
	return st, nil
}

// Valid reports whether s is a member of the closed state set.
func (s State) Valid() bool {
	for _, st := range AllStates {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no automatic transition leaves s.
func (s State) Terminal() bool {
	return s == StateLive || s.Failed()
}

// Active reports whether s has a stage the orchestrator can run.
// Unknown values are neither active nor terminal.
func (s State) Active() bool {
	_, ok := transitions[s]
	return ok
}

// Failed reports whether s is one of the FAILED_* states.
func (s State) Failed() bool {
	_, ok := failedOrigins[s]
	return ok
}

// Next returns the state reached when the stage for s succeeds.
func (s State) Next() (State, bool) {
	t, ok := transitions[s]
	return t.next, ok
}

// FailedState returns the FAILED_* variant of a non-terminal state.
func (s State) FailedState() (State, bool) {
	t, ok := transitions[s]
	return t.failed, ok
}

// Output returns the detail field written when the stage for s succeeds.
func (s State) Output() (DetailField, bool) {
	t, ok := transitions[s]
	return t.output, ok
}

// Origin returns the state a FAILED_* state was entered from.
func (s State) Origin() (State, bool) {
	o, ok := failedOrigins[s]
	return o, ok
}

// Venture is the unit of work driven through the pipeline.
//
// Detail fields hold serialized JSON documents and are nil until the
// producing stage has succeeded.
type Venture struct {
	ID    string `json:"id"`
	State State  `json:"state"`

	NicheIdea        json.RawMessage `json:"niche_idea,omitempty"`
	ProductDetails   json.RawMessage `json:"product_details,omitempty"`
	MarketingDetails json.RawMessage `json:"marketing_details,omitempty"`
	SalesDetails     json.RawMessage `json:"sales_details,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Detail returns the raw document stored under f.
func (v *Venture) Detail(f DetailField) json.RawMessage {
	switch f {
	case FieldNicheIdea:
		return v.NicheIdea
	case FieldProductDetails:
		return v.ProductDetails
	case FieldMarketingDetails:
		return v.MarketingDetails
	case FieldSalesDetails:
		return v.SalesDetails
	default:
		return nil
	}
}

// SetDetail assigns raw to the field f. Unknown fields are rejected.
func (v *Venture) SetDetail(f DetailField, raw json.RawMessage) error {
	switch f {
	case FieldNicheIdea:
		v.NicheIdea = raw
	case FieldProductDetails:
		v.ProductDetails = raw
	case FieldMarketingDetails:
		v.MarketingDetails = raw
	case FieldSalesDetails:
		v.SalesDetails = raw
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDetailField, string(f))
	}
	return nil
}

// Clone returns a deep copy of v.
func (v *Venture) Clone() *Venture {
	if v == nil {
		return nil
	}
	c := *v
	c.NicheIdea = cloneRaw(v.NicheIdea)
	c.ProductDetails = cloneRaw(v.ProductDetails)
	c.MarketingDetails = cloneRaw(v.MarketingDetails)
	c.SalesDetails = cloneRaw(v.SalesDetails)
	return &c
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

// VentureListOptions filters Orchestrator.List.
// A zero value lists every venture.
type VentureListOptions struct {
	State State
}
