package api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		state  State
		next   State
		failed State
		output DetailField
	}{
		{StateDiscovery, StateProductGeneration, StateFailedDiscovery, FieldNicheIdea},
		{StateProductGeneration, StateDeployment, StateFailedProductGeneration, FieldProductDetails},
		{StateDeployment, StateLive, StateFailedDeployment, FieldSalesDetails},
	}
	for _, tc := range cases {
		if tc.state.Terminal() {
			t.Fatalf("%s should not be terminal", tc.state)
		}
		if next, ok := tc.state.Next(); !ok || next != tc.next {
			t.Fatalf("%s: expected next %s, got %s", tc.state, tc.next, next)
		}
		if failed, ok := tc.state.FailedState(); !ok || failed != tc.failed {
			t.Fatalf("%s: expected failed %s, got %s", tc.state, tc.failed, failed)
		}
		if out, ok := tc.state.Output(); !ok || out != tc.output {
			t.Fatalf("%s: expected output %s, got %s", tc.state, tc.output, out)
		}
		if origin, ok := tc.failed.Origin(); !ok || origin != tc.state {
			t.Fatalf("%s: expected origin %s, got %s", tc.failed, tc.state, origin)
		}
	}
}

func TestTerminalStatesHaveNoSuccessor(t *testing.T) {
	for _, s := range []State{StateLive, StateFailedDiscovery, StateFailedProductGeneration, StateFailedDeployment} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
		if _, ok := s.Next(); ok {
			t.Fatalf("%s should have no successor", s)
		}
	}
	if _, ok := StateLive.Origin(); ok {
		t.Fatal("LIVE has no failed origin")
	}
}

func TestState_Active(t *testing.T) {
	for _, s := range ActiveStates {
		if !s.Active() {
			t.Fatalf("%s should be active", s)
		}
	}
	for _, s := range []State{StateLive, StateFailedDeployment, State("PRODUCT_GEN"), State("")} {
		if s.Active() {
			t.Fatalf("%q should not be active", s)
		}
	}
}

func TestParseState(t *testing.T) {
	for _, s := range AllStates {
		got, err := ParseState(string(s))
		if err != nil || got != s {
			t.Fatalf("ParseState(%s) = %s, %v", s, got, err)
		}
	}
	for _, bad := range []string{"", "live", "PAUSED"} {
		if _, err := ParseState(bad); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("ParseState(%q): expected ErrInvalidState, got %v", bad, err)
		}
	}
}

func TestVenture_CloneIsDeep(t *testing.T) {
	v := &Venture{ID: "v1", State: StateDiscovery, NicheIdea: json.RawMessage(`{"chosen_topic":"a"}`)}
	c := v.Clone()
	c.NicheIdea[2] = 'X'
	if string(v.NicheIdea) != `{"chosen_topic":"a"}` {
		t.Fatalf("clone shares detail bytes: %s", v.NicheIdea)
	}
	if (*Venture)(nil).Clone() != nil {
		t.Fatal("expected nil clone of nil venture")
	}
}

func TestVenture_SetDetailRejectsUnknownField(t *testing.T) {
	v := &Venture{}
	if err := v.SetDetail(DetailField("state"), json.RawMessage(`{}`)); !errors.Is(err, ErrInvalidDetailField) {
		t.Fatalf("expected ErrInvalidDetailField, got %v", err)
	}
	if err := v.SetDetail(FieldMarketingDetails, json.RawMessage(`{"a":1}`)); err != nil {
		t.Fatalf("SetDetail: %v", err)
	}
	if string(v.Detail(FieldMarketingDetails)) != `{"a":1}` {
		t.Fatalf("unexpected marketing details %s", v.MarketingDetails)
	}
}

func TestDecodeNicheIdea(t *testing.T) {
	var pe *PreconditionError

	_, err := DecodeNicheIdea(nil)
	if !errors.As(err, &pe) || pe.Reason != ReasonAbsent {
		t.Fatalf("expected absent precondition, got %v", err)
	}

	_, err = DecodeNicheIdea(json.RawMessage(`{not json`))
	if !errors.As(err, &pe) || pe.Reason != ReasonCorrupt {
		t.Fatalf("expected corrupt precondition, got %v", err)
	}

	_, err = DecodeNicheIdea(json.RawMessage(`{"chosen_topic":"  "}`))
	if !errors.As(err, &pe) || pe.Reason != ReasonCorrupt {
		t.Fatalf("expected corrupt precondition for empty topic, got %v", err)
	}

	idea, err := DecodeNicheIdea(json.RawMessage(`{"chosen_topic":"Tiny homes","target_audience":"retirees"}`))
	if err != nil || idea.ChosenTopic != "Tiny homes" || idea.TargetAudience != "retirees" {
		t.Fatalf("unexpected decode %+v, %v", idea, err)
	}
	if !IsPrecondition(&StageError{Stage: StateDeployment, Kind: FailurePrecondition, Err: &PreconditionError{Field: FieldNicheIdea, Reason: ReasonAbsent}}) {
		t.Fatal("expected IsPrecondition to see through StageError")
	}
}

func TestStages_ValidateAndFor(t *testing.T) {
	noop := StageFunc(func(ctx context.Context, in StageInput) (any, error) { return nil, nil })
	var s Stages
	if err := s.Validate(); err == nil {
		t.Fatal("expected validation error for empty stages")
	}
	s = Stages{Discovery: noop, Production: noop, Deployment: noop}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, ok := s.For(StateLive); ok {
		t.Fatal("LIVE has no executor")
	}
	if got := Requirements(StateDiscovery); len(got) != 0 {
		t.Fatalf("discovery has no requirements, got %v", got)
	}
	if got := Requirements(StateDeployment); len(got) != 1 || got[0] != FieldNicheIdea {
		t.Fatalf("deployment requires niche_idea only, got %v", got)
	}
}
