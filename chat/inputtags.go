package chat

import (
	"context"

	"ollmui/tools"
)

// InputTag is an optional mode attached to a single user message, like
// "create an image from this". Its Prompt is prepended to the native user
// message; the display transcript keeps the literal input.
type InputTag struct {
	ID          string
	Name        string
	Short       string
	Placeholder string
	Prompt      string

	IsSupported func(ctx context.Context, tc TagContext) (bool, error)
}

// TagContext carries what tag predicates inspect.
type TagContext struct {
	Capabilities ModelCapabilities
}

const (
	TagCreateImage = "create-image"
	TagSearchWeb   = "search-web"
	TagThink       = "think"
)

// BuiltinInputTags builds the standard tag set. Backends may be nil, which
// disables the corresponding tag.
func BuiltinInputTags(imageBackend tools.ImageBackend, searchBackend tools.SearchBackend) []InputTag {
	return []InputTag{
		{
			ID:          TagCreateImage,
			Name:        "Create Image",
			Short:       "Image",
			Placeholder: "Describe an image",

			Prompt: "You should create an image using the `image_gen` tool by the user's description. " +
				"If you aren't certain the user's prompt is describing an image, ask the user for further details.",

			IsSupported: func(ctx context.Context, tc TagContext) (bool, error) {
				if imageBackend == nil {
					return false, nil
				}
				return imageBackend.IsAvailable(ctx), nil
			},
		},
		{
			ID:    TagSearchWeb,
			Name:  "Web Search",
			Short: "Search",

			Prompt: "You should prefer executing a web search based on the user's query.",

			IsSupported: func(ctx context.Context, tc TagContext) (bool, error) {
				return searchBackend != nil, nil
			},
		},
		{
			ID:    TagThink,
			Name:  "Thinking",
			Short: "Think",

			IsSupported: func(ctx context.Context, tc TagContext) (bool, error) {
				return tc.Capabilities.Thinking, nil
			},
		},
	}
}

// FindInputTag looks a tag up by id.
func FindInputTag(tags []InputTag, id string) (InputTag, bool) {
	for _, tag := range tags {
		if tag.ID == id {
			return tag, true
		}
	}
	return InputTag{}, false
}
