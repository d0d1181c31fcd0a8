package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
	"github.com/custodia-labs/privatetune/internal/logger"
)

// Verify interface compliance.
var _ driving.TemplateService = (*TemplateLibrary)(nil)

// TemplateLibrary exposes stored prompt templates to the generation controller.
type TemplateLibrary struct {
	store      driven.TemplateStore
	generation driving.GenerationService
}

// NewTemplateLibrary creates a template library.
func NewTemplateLibrary(store driven.TemplateStore, generation driving.GenerationService) *TemplateLibrary {
	return &TemplateLibrary{
		store:      store,
		generation: generation,
	}
}

// List returns the available template names.
func (l *TemplateLibrary) List() ([]string, error) {
	if l.store == nil {
		return nil, domain.ErrNotImplemented
	}
	return l.store.List()
}

// Show returns the named template.
func (l *TemplateLibrary) Show(name string) (string, error) {
	if l.store == nil {
		return "", domain.ErrNotImplemented
	}
	tmpl, err := l.store.Load(name)
	if err != nil {
		return "", fmt.Errorf("load template %q: %w", name, err)
	}
	return tmpl, nil
}

// Use loads the named template into the generation controller.
func (l *TemplateLibrary) Use(name string) error {
	tmpl, err := l.Show(name)
	if err != nil {
		return err
	}
	l.generation.SetTemplate(tmpl)
	logger.Debug("templates: using %q", name)
	return nil
}

// Save stores template under name.
func (l *TemplateLibrary) Save(name, template string) error {
	if l.store == nil {
		return domain.ErrNotImplemented
	}
	if strings.TrimSpace(name) == "" {
		return domain.ErrEmptyName
	}
	if strings.TrimSpace(template) == "" {
		return domain.ErrEmptyTemplate
	}
	if err := l.store.Store(name, template); err != nil {
		return fmt.Errorf("store template %q: %w", name, err)
	}
	return nil
}

// SaveCurrent stores the generation controller's template under name.
func (l *TemplateLibrary) SaveCurrent(name string) error {
	return l.Save(name, l.generation.Template())
}
