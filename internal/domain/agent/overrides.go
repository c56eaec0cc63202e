package agent

// ModelOverride replaces the provider and/or model name. Empty fields keep
// the stored value.
type ModelOverride struct {
	ProviderID string `json:"provider_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Overrides is a partial, per-run replacement of a version's options.
type Overrides struct {
	Model           *ModelOverride   `json:"model,omitempty"`
	MaxOutputTokens *int             `json:"maxOutputTokens,omitempty"`
	Temperature     *float64         `json:"temperature,omitempty"`
	MaxStepCount    *int             `json:"maxStepCount,omitempty"`
	ProviderOptions *ProviderOptions `json:"providerOptions,omitempty"`
}

// Merge applies o on top of d field by field and returns the result. d is
// not modified. A nil o returns d unchanged.
func Merge(d VersionData, o *Overrides) VersionData {
	if o == nil {
		return d
	}
	out := d
	if o.Model != nil {
		if o.Model.ProviderID != "" {
			out.Model.ProviderID = o.Model.ProviderID
		}
		if o.Model.Name != "" {
			out.Model.Name = o.Model.Name
		}
	}
	if o.MaxOutputTokens != nil {
		out.MaxOutputTokens = o.MaxOutputTokens
	}
	if o.Temperature != nil {
		out.Temperature = o.Temperature
	}
	if o.MaxStepCount != nil {
		out.MaxStepCount = o.MaxStepCount
	}
	if o.ProviderOptions != nil {
		out.ProviderOptions = o.ProviderOptions
	}
	return out
}
