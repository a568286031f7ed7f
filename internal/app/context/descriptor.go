package context

// ProviderDescriptor is the transportable description of a provider. It
// carries configuration only; collaborators are re-resolved on the other
// side by NewFromDescriptor.
type ProviderDescriptor struct {
	Categories []Category `json:"categories"`
}

// Descriptor describes p for transport.
func (p *Provider) Descriptor() ProviderDescriptor {
	return ProviderDescriptor{Categories: p.Categories()}
}

// NewFromDescriptor rebuilds a provider from a descriptor using local
// collaborators.
func NewFromDescriptor(d ProviderDescriptor, deps Dependencies, opts ...Option) (*Provider, error) {
	names := make([]string, len(d.Categories))
	for i, c := range d.Categories {
		names[i] = string(c)
	}

	categories, err := ParseCategories(names)
	if err != nil {
		return nil, err
	}

	return New(deps, categories, opts...)
}
