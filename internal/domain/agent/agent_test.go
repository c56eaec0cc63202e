package agent

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/agent0/runner/internal/domain"
	"github.com/agent0/runner/internal/domain/message"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func baseData() VersionData {
	return VersionData{
		Model:           ModelRef{ProviderID: "p1", Name: "gpt-4o"},
		Messages:        []message.Message{message.System("hi")},
		MaxOutputTokens: intp(100),
		Temperature:     floatp(0.2),
		ProviderOptions: &ProviderOptions{OpenAI: &ReasoningOptions{ReasoningEffort: "low"}},
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name  string
		o     *Overrides
		check func(t *testing.T, got VersionData)
	}{
		{
			name: "nil overrides",
			o:    nil,
			check: func(t *testing.T, got VersionData) {
				if got.Model.Name != "gpt-4o" || *got.MaxOutputTokens != 100 {
					t.Errorf("unexpected %+v", got)
				}
			},
		},
		{
			name: "model name only keeps provider",
			o:    &Overrides{Model: &ModelOverride{Name: "gpt-4.1"}},
			check: func(t *testing.T, got VersionData) {
				if got.Model.ProviderID != "p1" || got.Model.Name != "gpt-4.1" {
					t.Errorf("model = %+v", got.Model)
				}
			},
		},
		{
			name: "provider only keeps name",
			o:    &Overrides{Model: &ModelOverride{ProviderID: "p2"}},
			check: func(t *testing.T, got VersionData) {
				if got.Model.ProviderID != "p2" || got.Model.Name != "gpt-4o" {
					t.Errorf("model = %+v", got.Model)
				}
			},
		},
		{
			name: "scalar fields",
			o:    &Overrides{Temperature: floatp(1), MaxStepCount: intp(4)},
			check: func(t *testing.T, got VersionData) {
				if *got.Temperature != 1 || got.StepCount() != 4 || *got.MaxOutputTokens != 100 {
					t.Errorf("unexpected %+v", got)
				}
			},
		},
		{
			name: "provider options replaced",
			o:    &Overrides{ProviderOptions: &ProviderOptions{XAI: &ReasoningOptions{ReasoningEffort: "high"}}},
			check: func(t *testing.T, got VersionData) {
				if got.ProviderOptions.OpenAI != nil || got.ProviderOptions.XAI.ReasoningEffort != "high" {
					t.Errorf("provider options = %+v", got.ProviderOptions)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := baseData()
			got := Merge(d, tt.o)
			tt.check(t, got)
			if d.Model.Name != "gpt-4o" || d.Model.ProviderID != "p1" {
				t.Fatalf("stored version mutated: %+v", d.Model)
			}
		})
	}
}

func TestStepCountDefault(t *testing.T) {
	if got := (VersionData{}).StepCount(); got != DefaultMaxStepCount {
		t.Fatalf("StepCount = %d", got)
	}
}

func TestVersionDataValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*VersionData)
		wantErr bool
	}{
		{"valid", func(*VersionData) {}, false},
		{"missing provider", func(d *VersionData) { d.Model.ProviderID = "" }, true},
		{"missing model name", func(d *VersionData) { d.Model.Name = "" }, true},
		{"bad output format", func(d *VersionData) { d.OutputFormat = "xml" }, true},
		{"zero step count", func(d *VersionData) { d.MaxStepCount = intp(0) }, true},
		{"temperature too high", func(d *VersionData) { d.Temperature = floatp(3) }, true},
		{"tool without mcp id", func(d *VersionData) { d.Tools = []ToolRef{{Name: "x"}} }, true},
		{"empty user message", func(d *VersionData) { d.Messages = append(d.Messages, message.User()) }, true},
		{"detailed reasoning summary", func(d *VersionData) {
			d.ProviderOptions = &ProviderOptions{OpenAI: &ReasoningOptions{ReasoningSummary: "detailed"}}
		}, false},
		{"unknown reasoning summary", func(d *VersionData) {
			d.ProviderOptions = &ProviderOptions{XAI: &ReasoningOptions{ReasoningSummary: "verbose"}}
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := baseData()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr != (err != nil) {
				t.Fatalf("wantErr=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestVersionDataJSON(t *testing.T) {
	raw := `{"model":{"provider_id":"p","name":"m"},"messages":[{"role":"system","content":"x"}],` +
		`"maxStepCount":3,"tools":[{"mcp_id":"s1","name":"search"}],` +
		`"providerOptions":{"google":{"thinkingConfig":{"thinkingBudget":512}},"openai":{"reasoningSummary":"auto"}}}`
	var d VersionData
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.StepCount() != 3 || d.Tools[0].MCPID != "s1" || *d.ProviderOptions.Google.ThinkingConfig.ThinkingBudget != 512 ||
		d.ProviderOptions.OpenAI.ReasoningSummary != "auto" {
		t.Fatalf("unexpected %+v", d)
	}
}

func TestDeploy(t *testing.T) {
	a := &Agent{ID: "a1"}

	changed, err := a.Deploy(EnvProduction, "v1")
	if err != nil || !changed {
		t.Fatalf("first deploy: changed=%v err=%v", changed, err)
	}
	changed, err = a.Deploy(EnvProduction, "v1")
	if err != nil || changed {
		t.Fatalf("duplicate deploy must be a no-op: changed=%v err=%v", changed, err)
	}
	if _, ok := a.Deployed(EnvStaging); ok {
		t.Fatal("staging should be empty")
	}
	if id, ok := a.Deployed(EnvProduction); !ok || id != "v1" {
		t.Fatalf("production = %q", id)
	}
	if _, err := a.Deploy("preview", "v1"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestParseEnvironment(t *testing.T) {
	if env, err := ParseEnvironment(""); err != nil || env != EnvProduction {
		t.Fatalf("empty = %q, %v", env, err)
	}
	if env, err := ParseEnvironment("staging"); err != nil || env != EnvStaging {
		t.Fatalf("staging = %q, %v", env, err)
	}
	if _, err := ParseEnvironment("dev"); err == nil {
		t.Fatal("expected error")
	}
}
