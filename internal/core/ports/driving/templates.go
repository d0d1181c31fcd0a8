package driving

// TemplateService manages the named prompt template library.
type TemplateService interface {
	// List returns the available template names, sorted.
	List() ([]string, error)

	// Show returns the template stored under name.
	Show(name string) (string, error)

	// Use loads the named template into the generation controller.
	Use(name string) error

	// Save stores template under name.
	Save(name, template string) error

	// SaveCurrent stores the generation controller's template under name.
	SaveCurrent(name string) error
}
