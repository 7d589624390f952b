package vectorizer

import (
	"encoding/json"
	"fmt"
)

// Parsing stage implementations.
const (
	ParsingImplAuto = "auto"
	ParsingImplNone = "none"
)

// Parsing configures how loaded content is converted to plain text before
// chunking. "auto" detects the document format from the bytes; "none"
// passes content through untouched and therefore requires text input.
type Parsing interface {
	ConfigType() string
	Implementation() string
	validate(source SourceTable, loading Loading) error
}

// ParsingAuto detects document formats (plain text, markdown, PDF-style
// binary documents) and extracts text accordingly.
type ParsingAuto struct {
	Type string `json:"config_type"`
	Impl string `json:"implementation"`
}

// NewParsingAuto creates the auto-detecting parsing config.
func NewParsingAuto() ParsingAuto {
	return ParsingAuto{Type: StageParsing, Impl: ParsingImplAuto}
}

// ConfigType returns the stage tag.
func (p ParsingAuto) ConfigType() string { return p.Type }

// Implementation returns the implementation name.
func (p ParsingAuto) Implementation() string { return p.Impl }

func (p ParsingAuto) validate(_ SourceTable, _ Loading) error {
	return checkStageTag(StageParsing, p.Type)
}

// ParsingNone passes loaded content through unchanged. It cannot be combined
// with a binary source column: there is no text to pass through.
type ParsingNone struct {
	Type string `json:"config_type"`
	Impl string `json:"implementation"`
}

// NewParsingNone creates the pass-through parsing config.
func NewParsingNone() ParsingNone {
	return ParsingNone{Type: StageParsing, Impl: ParsingImplNone}
}

// ConfigType returns the stage tag.
func (p ParsingNone) ConfigType() string { return p.Type }

// Implementation returns the implementation name.
func (p ParsingNone) Implementation() string { return p.Impl }

func (p ParsingNone) validate(source SourceTable, loading Loading) error {
	if err := checkStageTag(StageParsing, p.Type); err != nil {
		return err
	}
	if loading == nil {
		return nil
	}
	if col, ok := source.Column(loading.ColumnName()); ok && col.IsBinary() {
		return fmt.Errorf("%w: parsing: implementation %q cannot be used with binary column %q", ErrInvalidConfig, ParsingImplNone, col.Name)
	}
	return nil
}

func parseParsing(raw json.RawMessage) (Parsing, error) {
	impl, err := peekImplementation(StageParsing, raw)
	if err != nil {
		return nil, err
	}
	switch impl {
	case ParsingImplAuto:
		p := NewParsingAuto()
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: parsing: %v", ErrInvalidConfig, err)
		}
		return p, nil
	case ParsingImplNone:
		p := NewParsingNone()
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: parsing: %v", ErrInvalidConfig, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: parsing: unknown implementation %q", ErrInvalidConfig, impl)
	}
}
