package debate

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// SchoolVariant 是某個學校對模板的改編版本
type SchoolVariant struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	University string `json:"university" yaml:"university"`
	Steps      []Step `json:"steps" yaml:"steps"`
}

// Template 表示一種辯論形式
type Template struct {
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Description    string          `json:"description" yaml:"description"`
	Icon           string          `json:"icon" yaml:"icon"`
	Guide          string          `json:"guide,omitempty" yaml:"guide"`
	University     string          `json:"university,omitempty" yaml:"university"`
	Hidden         bool            `json:"hidden,omitempty" yaml:"hidden"`
	Steps          []Step          `json:"steps" yaml:"steps"`
	SchoolVariants []SchoolVariant `json:"schoolVariants,omitempty" yaml:"schoolVariants"`
}

// Catalog 是靜態的模板目錄
type Catalog struct {
	templates []Template
	byID      map[string]int
}

// LoadCatalog 解析 YAML 格式的模板目錄並驗證
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{templates: doc.Templates, byID: make(map[string]int, len(doc.Templates))}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultCatalog 回傳內建的模板目錄
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is broken: %v", err))
	}
	return c
}

// Validate 檢查模板 ID 唯一且每個階段都合法
func (c *Catalog) Validate() error {
	c.byID = make(map[string]int, len(c.templates))
	for i, t := range c.templates {
		if t.ID == "" {
			return fmt.Errorf("%w: template #%d has no id", ErrInvalidConfig, i)
		}
		if _, dup := c.byID[t.ID]; dup {
			return fmt.Errorf("%w: duplicate template %q", ErrInvalidConfig, t.ID)
		}
		c.byID[t.ID] = i
		if err := validateSteps(t.Steps); err != nil {
			return fmt.Errorf("template %q: %w", t.ID, err)
		}
		for _, v := range t.SchoolVariants {
			if err := validateSteps(v.Steps); err != nil {
				return fmt.Errorf("template %q variant %q: %w", t.ID, v.ID, err)
			}
		}
	}
	return nil
}

// Templates 回傳模板列表，includeHidden 為 false 時略過首頁隱藏的模板
func (c *Catalog) Templates(includeHidden bool) []Template {
	out := make([]Template, 0, len(c.templates))
	for _, t := range c.templates {
		if t.Hidden && !includeHidden {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Template 依 ID 取得模板
func (c *Catalog) Template(id string) (Template, error) {
	i, ok := c.byID[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateUnknown, id)
	}
	return c.templates[i], nil
}

// Variant 取得模板下的學校版本，回傳的模板以該版本的階段取代原本的階段
func (c *Catalog) Variant(templateID, variantID string) (Template, error) {
	t, err := c.Template(templateID)
	if err != nil {
		return Template{}, err
	}
	for _, v := range t.SchoolVariants {
		if v.ID == variantID {
			t.Name = v.Name
			t.University = v.University
			t.Steps = v.Steps
			t.SchoolVariants = nil
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("%w: %s/%s", ErrVariantUnknown, templateID, variantID)
}

func validateSteps(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidConfig)
	}
	for i, s := range steps {
		if s.Time <= 0 {
			return fmt.Errorf("%w: step %d has non-positive time", ErrInvalidConfig, i)
		}
		if !s.Type.Valid() {
			return fmt.Errorf("%w: step %d has unknown type %q", ErrInvalidConfig, i, s.Type)
		}
		if !s.Team.Valid() {
			return fmt.Errorf("%w: step %d has unknown team %q", ErrInvalidConfig, i, s.Team)
		}
		if s.MaxSpeakTime < 0 {
			return fmt.Errorf("%w: step %d has negative max speak time", ErrInvalidConfig, i)
		}
	}
	return nil
}
