package domain

// Property is a typed configuration key in the config.properties.*
// namespace. Its schema must validate its default value (§3).
type Property struct {
	Key          string
	DefaultValue any
	Schema       map[string]any
	Description  string
}

// FullKey returns the dotted key stored against the config service.
func (p Property) FullKey() string {
	return "config.properties." + p.Key
}
