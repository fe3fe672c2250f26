package domain

import (
	"errors"
	"testing"

	"github.com/xela07ax/condgate/internal/gate"
)

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		ok   bool
	}{
		{"valid", Rule{Name: "kudos", Attribute: "language"}, true},
		{"no name", Rule{Attribute: "language"}, false},
		{"no attribute", Rule{Name: "kudos"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidRule) {
				t.Errorf("Validate() = %v, want ErrInvalidRule", err)
			}
		})
	}
}

func TestRuleGate(t *testing.T) {
	r := Rule{Name: "kudos", Attribute: "language", Included: []string{"Python", "C"}, Excluded: []string{"Java"}}
	g := r.Gate()

	if g.Name() != "kudos" || g.Attribute() != "language" {
		t.Fatalf("gate = %s/%s", g.Name(), g.Attribute())
	}
	for lang, want := range map[string]bool{"python": true, "C": true, "java": false, "perl": false} {
		d, err := g.Decide(gate.Fields{"language": lang})
		if err != nil {
			t.Fatal(err)
		}
		if d.Allowed != want {
			t.Errorf("Decide(%s).Allowed = %v, want %v", lang, d.Allowed, want)
		}
	}
}

func TestNewDecisionRecord(t *testing.T) {
	d := gate.Decision{Gate: "kudos", Attribute: "language", Value: "JAVA", Reason: gate.ReasonNotIncluded}
	rec := NewDecisionRecord(d, "trace", SourceHTTP)
	if rec.ID == "" || rec.Timestamp.IsZero() {
		t.Errorf("record missing id/timestamp: %+v", rec)
	}
	if rec.Rule != "kudos" || rec.Reason != "not_included" || rec.Allowed {
		t.Errorf("record = %+v", rec)
	}
}

func TestRuleGatePrefersRawFilters(t *testing.T) {
	r := Rule{
		Name:          "kudos",
		Attribute:     "language",
		Included:      []string{"Go"},
		IncludeFilter: gate.Delimited("Python, C"),
	}
	d, err := r.Gate().Decide(gate.Fields{"language": "c"})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Errorf("Decide(c) = %+v, want allowed by raw filter", d)
	}
	if d, _ := r.Gate().Decide(gate.Fields{"language": "go"}); d.Allowed {
		t.Error("display tokens must not override the raw filter")
	}
}
