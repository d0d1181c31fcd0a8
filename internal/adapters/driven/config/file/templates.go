package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
)

// Ensure TemplateStore implements the interface.
var _ driven.TemplateStore = (*TemplateStore)(nil)

const templateExt = ".txt"

// TemplateStore keeps prompt templates as user-editable .txt files.
//
// Files are only created on first access, not in the constructor.
type TemplateStore struct {
	mu    sync.RWMutex
	dir   string
	cache map[string]string

	initOnce sync.Once
	initErr  error
}

// builtinTemplates seed the template directory.
var builtinTemplates = map[string]string{
	driven.DefaultTemplateName: domain.DefaultPromptTemplate,

	"concise": `Write one short question a user might ask about the text below, and answer it in at most three sentences using only the text.

` + domain.TemplatePlaceholder,

	"stepwise": `Read the knowledge point below. Write an instruction that asks for a step-by-step explanation, then write the explanation as a numbered list.

` + domain.TemplatePlaceholder,
}

// NewTemplateStore creates a template store in templateDir.
// An empty templateDir means ~/.privatetune/templates.
func NewTemplateStore(templateDir string) (*TemplateStore, error) {
	if templateDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		templateDir = filepath.Join(dir, "templates")
	}
	return &TemplateStore{
		dir:   templateDir,
		cache: make(map[string]string),
	}, nil
}

// Load returns the named template. Built-in templates are returned even
// when the directory cannot be created.
func (s *TemplateStore) Load(name string) (string, error) {
	if err := validTemplateName(name); err != nil {
		return "", err
	}

	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		if tmpl, ok := builtinTemplates[name]; ok {
			return tmpl, nil
		}
		return "", fmt.Errorf("template store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	if tmpl, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return tmpl, nil
	}
	s.mu.RUnlock()

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if tmpl, ok := builtinTemplates[name]; ok {
				return tmpl, nil
			}
			return "", fmt.Errorf("template %q: %w", name, domain.ErrNotFound)
		}
		return "", fmt.Errorf("read template %q: %w", name, err)
	}
	tmpl := strings.TrimSpace(string(data))
	if tmpl == "" {
		return "", fmt.Errorf("template %q: %w", name, domain.ErrEmptyTemplate)
	}

	s.mu.Lock()
	s.cache[name] = tmpl
	s.mu.Unlock()
	return tmpl, nil
}

// List returns the names of all templates on disk plus the built-ins.
func (s *TemplateStore) List() ([]string, error) {
	s.initOnce.Do(s.initialise)

	names := make(map[string]struct{}, len(builtinTemplates))
	for name := range builtinTemplates {
		names[name] = struct{}{}
	}

	if s.initErr == nil {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return nil, fmt.Errorf("list templates: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != templateExt {
				continue
			}
			names[strings.TrimSuffix(e.Name(), templateExt)] = struct{}{}
		}
	}

	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Store writes a template file and updates the cache.
func (s *TemplateStore) Store(name, template string) error {
	if err := validTemplateName(name); err != nil {
		return err
	}
	template = strings.TrimSpace(template)
	if template == "" {
		return domain.ErrEmptyTemplate
	}

	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		return s.initErr
	}
	if err := os.WriteFile(s.path(name), []byte(template+"\n"), 0600); err != nil {
		return fmt.Errorf("write template %q: %w", name, err)
	}

	s.mu.Lock()
	s.cache[name] = template
	s.mu.Unlock()
	return nil
}

// Reload clears the cache so edited files are read again.
func (s *TemplateStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the template directory.
func (s *TemplateStore) Dir() string {
	return s.dir
}

func (s *TemplateStore) path(name string) string {
	return filepath.Join(s.dir, name+templateExt)
}

// initialise creates the directory and writes missing built-in templates.
func (s *TemplateStore) initialise() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.initErr = fmt.Errorf("create template directory: %w", err)
		return
	}
	for name, content := range builtinTemplates {
		path := s.path(name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := os.WriteFile(path, []byte(content+"\n"), 0600); err != nil {
				s.initErr = fmt.Errorf("create template %q: %w", name, err)
				return
			}
		}
	}
}

func validTemplateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: template name %q", domain.ErrInvalidInput, name)
	}
	return nil
}
