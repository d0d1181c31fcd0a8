package driven

// TemplateStore provides named prompt templates for generation.
// Implementations may load them from files or embed them in the binary.
type TemplateStore interface {
	// Load returns the template with the given name.
	// Returns domain.ErrNotFound if no such template exists.
	Load(name string) (string, error)

	// List returns the available template names, sorted.
	List() ([]string, error)

	// Store writes a template under name.
	Store(name, template string) error

	// Reload clears any cached templates.
	Reload()
}

// DefaultTemplateName is the template applied when nothing else is chosen.
const DefaultTemplateName = "default"
