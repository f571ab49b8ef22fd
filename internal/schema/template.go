package schema

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Template describes a starter dashboard shipped as YAML.
// Instantiating a template produces a regular Dashboard with fresh ids
// and the IsTemplate flag set.
type Template struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Widgets     []TemplateWidget `yaml:"widgets"`
}

// TemplateWidget is the YAML shape of a widget inside a template.
type TemplateWidget struct {
	Type   string                 `yaml:"type"`
	Title  string                 `yaml:"title"`
	X      float64                `yaml:"x"`
	Y      float64                `yaml:"y"`
	Width  float64                `yaml:"width"`
	Height float64                `yaml:"height"`
	Config map[string]interface{} `yaml:"config"`
}

// templateFile is the top-level YAML document.
type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadTemplates reads dashboard templates from a YAML file.
func LoadTemplates(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file %s: %w", path, err)
	}

	var doc templateFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse templates file %s: %w", path, err)
	}

	for i := range doc.Templates {
		if doc.Templates[i].Name == "" {
			return nil, fmt.Errorf("template %d in %s has no name", i+1, path)
		}
	}

	return doc.Templates, nil
}

// Instantiate materializes the template as a Dashboard owned by userID.
// Every widget gets a fresh id so two instantiations never collide.
func (tpl *Template) Instantiate(userID string) (*Dashboard, error) {
	now := time.Now()
	board := &Dashboard{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        tpl.Name,
		Description: tpl.Description,
		Widgets:     make([]Widget, 0, len(tpl.Widgets)),
		IsTemplate:  true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for _, tw := range tpl.Widgets {
		board.Widgets = append(board.Widgets, Widget{
			ID:       uuid.NewString(),
			Type:     WidgetType(tw.Type),
			Title:    tw.Title,
			Position: Position{X: tw.X, Y: tw.Y},
			Size:     Size{Width: tw.Width, Height: tw.Height},
			Config:   tw.Config,
		})
	}

	if err := board.Validate(); err != nil {
		return nil, fmt.Errorf("template %q produces invalid dashboard: %w", tpl.Name, err)
	}

	return board, nil
}
