package vectorizer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Formatting stage implementations.
const (
	FormattingImplChunkValue = "chunk_value"
	FormattingImplTemplate   = "template"
)

// ChunkPlaceholder is the substitution marker a formatting template must
// contain; it is replaced with the chunk text. Other $name markers resolve
// to source column values.
const ChunkPlaceholder = "$chunk"

// Formatting configures how a chunk is decorated before embedding.
type Formatting interface {
	ConfigType() string
	Implementation() string
	validate(source SourceTable) error
}

// FormattingChunkValue embeds the raw chunk text.
type FormattingChunkValue struct {
	Type string `json:"config_type"`
	Impl string `json:"implementation"`
}

// NewFormattingChunkValue creates the passthrough formatting config.
func NewFormattingChunkValue() FormattingChunkValue {
	return FormattingChunkValue{Type: StageFormatting, Impl: FormattingImplChunkValue}
}

// ConfigType returns the stage tag.
func (f FormattingChunkValue) ConfigType() string { return f.Type }

// Implementation returns the implementation name.
func (f FormattingChunkValue) Implementation() string { return f.Impl }

func (f FormattingChunkValue) validate(_ SourceTable) error {
	return checkStageTag(StageFormatting, f.Type)
}

// FormattingTemplate wraps each chunk in a template before embedding.
// The template must contain $chunk; any other $name marker is replaced with
// the value of the named source column, which must exist.
type FormattingTemplate struct {
	Type     string `json:"config_type"`
	Impl     string `json:"implementation"`
	Template string `json:"template"`
}

// NewFormattingTemplate creates a template formatting config.
func NewFormattingTemplate(template string) FormattingTemplate {
	return FormattingTemplate{Type: StageFormatting, Impl: FormattingImplTemplate, Template: template}
}

// ConfigType returns the stage tag.
func (f FormattingTemplate) ConfigType() string { return f.Type }

// Implementation returns the implementation name.
func (f FormattingTemplate) Implementation() string { return f.Impl }

func (f FormattingTemplate) validate(source SourceTable) error {
	if err := checkStageTag(StageFormatting, f.Type); err != nil {
		return err
	}
	if !strings.Contains(f.Template, ChunkPlaceholder) {
		return fmt.Errorf("%w: formatting: template must contain %q", ErrInvalidConfig, ChunkPlaceholder)
	}
	for _, name := range TemplateColumns(f.Template) {
		if _, ok := source.Column(name); !ok {
			return fmt.Errorf("%w: formatting: template references column %q which does not exist in %q", ErrInvalidConfig, name, source.Name)
		}
	}
	return nil
}

// TemplateColumns returns the source column names referenced by $name
// markers in a template, excluding $chunk.
func TemplateColumns(template string) []string {
	var cols []string
	seen := map[string]bool{}
	for i := 0; i < len(template); i++ {
		if template[i] != '$' {
			continue
		}
		j := i + 1
		for j < len(template) && (isWordByte(template[j])) {
			j++
		}
		name := template[i+1 : j]
		i = j - 1
		if name == "" || name == "chunk" || seen[name] {
			continue
		}
		seen[name] = true
		cols = append(cols, name)
	}
	return cols
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func parseFormatting(raw json.RawMessage) (Formatting, error) {
	impl, err := peekImplementation(StageFormatting, raw)
	if err != nil {
		return nil, err
	}
	switch impl {
	case FormattingImplChunkValue:
		f := NewFormattingChunkValue()
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: formatting: %v", ErrInvalidConfig, err)
		}
		return f, nil
	case FormattingImplTemplate:
		f := NewFormattingTemplate("")
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: formatting: %v", ErrInvalidConfig, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: formatting: unknown implementation %q", ErrInvalidConfig, impl)
	}
}
