package share

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// DefaultMaxItems is the collection limit used when none is configured.
const DefaultMaxItems = 6

var (
	ErrMissingSource      = errors.New("no media source set")
	ErrConflictingSources = errors.New("more than one media source set")
	ErrUnsupportedSource  = errors.New("media source not supported by share context")
	ErrInvalidCaption     = errors.New("caption is blank")
	ErrTooManyItems       = errors.New("too many media items")
	ErrInvalidHashtag     = errors.New("invalid hashtag")
)

// ValidationError reports which item failed and why.
// Index is -1 when a single value was validated on its own.
type ValidationError struct {
	Index  int
	Source SourceKind
	Err    error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("share: ")
	if e.Index >= 0 {
		fmt.Fprintf(&b, "item %d: ", e.Index)
	}
	b.WriteString(e.Err.Error())
	if e.Source != "" {
		fmt.Fprintf(&b, " (%s)", e.Source)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validator checks media against a sharing context. It holds no state beyond
// its limits and is safe for concurrent use.
type Validator struct {
	MaxItems int
}

var defaultValidator = NewValidator(DefaultMaxItems)

// NewValidator returns a validator with the given collection limit.
// Non-positive values fall back to DefaultMaxItems.
func NewValidator(maxItems int) *Validator {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Validator{MaxItems: maxItems}
}

// ValidatePhoto checks a single photo: exactly one source, a source the
// context accepts, and a non-blank caption if one is set. The collection
// limit does not apply, so the result is the same for every Validator.
func (v *Validator) ValidatePhoto(p Photo, ctx Context) error {
	kind, err := checkSources(p.Sources(), ctx)
	if err != nil {
		return err
	}
	if caption, ok := p.CaptionText(); ok && strings.TrimSpace(caption) == "" {
		return &ValidationError{Index: -1, Source: kind, Err: ErrInvalidCaption}
	}
	return nil
}

// ValidateVideo applies the source rules to a video and validates its preview.
func (v *Validator) ValidateVideo(video Video, ctx Context) error {
	if _, err := checkSources(video.sources(), ctx); err != nil {
		return err
	}
	if video.Preview != nil {
		return v.ValidatePhoto(*video.Preview, ctx)
	}
	return nil
}

// ValidateItems checks the collection size and then every item in order.
// The first failure is returned with its index set.
func (v *Validator) ValidateItems(items []Media, ctx Context) error {
	limit := v.limit(ctx)
	if len(items) > limit {
		return &ValidationError{
			Index: -1,
			Err:   fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(items), limit),
		}
	}
	for i, item := range items {
		if err := v.validateItem(item, ctx); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				indexed := *verr
				indexed.Index = i
				return &indexed
			}
			return &ValidationError{Index: i, Err: err}
		}
	}
	return nil
}

func (v *Validator) limit(ctx Context) int {
	if ctx.MaxItems > 0 {
		return ctx.MaxItems
	}
	if v.MaxItems > 0 {
		return v.MaxItems
	}
	return DefaultMaxItems
}

func (v *Validator) validateItem(item Media, ctx Context) error {
	switch m := item.(type) {
	case nil:
		return &ValidationError{Index: -1, Err: ErrMissingSource}
	case Photo:
		return v.ValidatePhoto(m, ctx)
	case *Photo:
		if m == nil {
			return &ValidationError{Index: -1, Err: ErrMissingSource}
		}
		return v.ValidatePhoto(*m, ctx)
	case Video:
		return v.ValidateVideo(m, ctx)
	case *Video:
		if m == nil {
			return &ValidationError{Index: -1, Err: ErrMissingSource}
		}
		return v.ValidateVideo(*m, ctx)
	case Validatable:
		return m.Validate(ctx)
	default:
		return &ValidationError{
			Index: -1,
			Err:   fmt.Errorf("%w: %s items cannot be validated", ErrUnsupportedSource, item.MediaType()),
		}
	}
}

func checkSources(kinds []SourceKind, ctx Context) (SourceKind, error) {
	switch len(kinds) {
	case 0:
		return "", &ValidationError{Index: -1, Err: ErrMissingSource}
	case 1:
	default:
		return "", &ValidationError{
			Index: -1,
			Err:   fmt.Errorf("%w: %v", ErrConflictingSources, kinds),
		}
	}
	kind := kinds[0]
	if !ctx.Allows(kind) {
		return kind, &ValidationError{
			Index:  -1,
			Source: kind,
			Err:    fmt.Errorf("%w: %s", ErrUnsupportedSource, ctx.Surface),
		}
	}
	return kind, nil
}

func validateHashtag(tag string) error {
	if tag == "" {
		return nil
	}
	body, ok := strings.CutPrefix(tag, "#")
	if !ok || body == "" {
		return &ValidationError{Index: -1, Err: fmt.Errorf("%w: %q", ErrInvalidHashtag, tag)}
	}
	for _, r := range body {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return &ValidationError{Index: -1, Err: fmt.Errorf("%w: %q", ErrInvalidHashtag, tag)}
		}
	}
	return nil
}
