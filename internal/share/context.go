package share

import (
	"fmt"
	"slices"
	"strings"
)

// Surface names the presentation or transport path a share goes through.
type Surface string

const (
	// SurfaceShareSheet is the platform's native share surface.
	SurfaceShareSheet Surface = "share_sheet"
	// SurfaceAPI is programmatic sharing without any UI.
	SurfaceAPI Surface = "api"
	// SurfaceStory embeds photos into a linked-content story.
	SurfaceStory Surface = "story"
)

// Context describes the target surface of a share and what it accepts.
type Context struct {
	Surface Surface      `json:"surface"`
	Sources []SourceKind `json:"sources"`
	// MaxItems overrides the validator's collection limit when positive.
	MaxItems int `json:"max_items,omitempty"`
}

// Allows reports whether the context accepts media from the given source.
func (c Context) Allows(kind SourceKind) bool {
	return slices.Contains(c.Sources, kind)
}

// ShareSheetContext accepts every source; the share sheet resolves assets itself.
func ShareSheetContext() Context {
	return Context{
		Surface: SurfaceShareSheet,
		Sources: []SourceKind{SourceInMemory, SourceRemote, SourceAsset},
	}
}

// APIContext only accepts in-memory data since nothing on the API path can
// fetch URLs or library assets.
func APIContext() Context {
	return Context{
		Surface: SurfaceAPI,
		Sources: []SourceKind{SourceInMemory},
	}
}

// StoryContext accepts in-memory data and remote URLs.
func StoryContext() Context {
	return Context{
		Surface: SurfaceStory,
		Sources: []SourceKind{SourceInMemory, SourceRemote},
	}
}

// ContextFor returns the predefined context for a surface.
func ContextFor(surface Surface) (Context, error) {
	switch surface {
	case SurfaceShareSheet:
		return ShareSheetContext(), nil
	case SurfaceAPI:
		return APIContext(), nil
	case SurfaceStory:
		return StoryContext(), nil
	default:
		return Context{}, fmt.Errorf("unknown share surface %q", surface)
	}
}

// ParseSurface parses a surface name such as "api" or "share-sheet".
func ParseSurface(raw string) (Surface, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "-", "_")
	switch Surface(value) {
	case SurfaceShareSheet, SurfaceAPI, SurfaceStory:
		return Surface(value), nil
	case "sheet", "native":
		return SurfaceShareSheet, nil
	default:
		return "", fmt.Errorf("unknown share surface %q", raw)
	}
}
