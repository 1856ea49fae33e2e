package tools

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ImageBackend is the external image-generation collaborator.
type ImageBackend interface {
	// IsAvailable reports whether the backend is reachable right now.
	IsAvailable(ctx context.Context) bool
	Generate(ctx context.Context, prompt string, opts ImageOptions) ([]byte, error)
}

// ImageOptions tune one generation request.
type ImageOptions struct {
	Width   int
	Height  int
	Quality string // "low", "medium" or "high"
}

const imageGenPromptDescription = `Always use English for prompts, translate and refine non-English inputs.
Refinement Process:
1. Clarify intent: Identify the main subject, style (e.g., photo, 3D, anime), mood (e.g., cozy, mysterious), composition (e.g., close-up, wide shot), and constraints (e.g., no text, transparent background).
2. Add missing details: Infers reasonable visual elements (lighting, background, atmosphere) based on context—e.g., "night scene" implies dim, cool lighting.
3. Replace vague terms: Use specific, visual language (e.g., "soft golden light from a lamp" instead of "cool lighting").
4. Eliminate ambiguity: Clarify pronouns and unclear references. Ensure every element directly contributes to the image.
5. Respect constraints: Strictly follow user rules (e.g., no text, specific colors).
6. Rewrite clearly: Combine all elements into 1-2 natural, cinematic sentences focusing on subject, style, environment, lighting, and key details.`

// NewImageGenTool generates images through backend. The model currently
// resident in accelerator memory is freed first so the image backend has
// room to work.
func NewImageGenTool(backend ImageBackend) Tool {
	return Tool{
		Name:    "image_gen",
		Summary: "Generating an image.",
		Description: "Generate an image based on a text prompt. After calling this tool and the image is successfully generated, " +
			"try asking the user follow-up questions, whether they would like to make any adjustments or refinements to the image. " +
			"Do not provide image links, or any other third-party URLs, do not summarize the content of the image, or provide any " +
			"other commentary, other than the follow-up question.",
		Parameters: mcptypes.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": imageGenPromptDescription,
				},
				"width": map[string]any{
					"type":        "number",
					"description": "The width of the generated image. Defaults to 512.",
				},
				"height": map[string]any{
					"type":        "number",
					"description": "The height of the generated image. Defaults to 512.",
				},
				"quality": map[string]any{
					"type": "string",
					"enum": []any{"low", "medium", "high"},
					"description": `The quality of the generated image. There are noticable changes between "low", "medium", ` +
						`and "high". Defaults to "medium".`,
				},
			},
			Required: []string{"prompt"},
		},

		MockOutput: []ImageMock{
			{
				Width:  MockDim{Param: "width", Default: floatPtr(512)},
				Height: MockDim{Param: "height", Default: floatPtr(512)},
			},
		},

		IsSupported: func(ctx context.Context, sc SupportContext) (bool, error) {
			return backend != nil && backend.IsAvailable(ctx), nil
		},

		Execute: func(ctx context.Context, params map[string]any, tc Context) (Output, error) {
			prompt, ok := toString(params["prompt"])
			if !ok {
				return Output{}, &ToolCallError{Reason: "parameter 'prompt' must be a string"}
			}

			opts := ImageOptions{Width: 512, Height: 512, Quality: "medium"}
			if width, ok := toNumber(params["width"]); ok {
				opts.Width = int(width)
			}
			if height, ok := toNumber(params["height"]); ok {
				opts.Height = int(height)
			}
			if quality, ok := toString(params["quality"]); ok {
				opts.Quality = quality
			}

			// Free accelerator memory for the image backend.
			if tc.FreeModel != nil {
				if err := tc.FreeModel(ctx, tc.Model); err != nil {
					return Output{}, err
				}
			}

			image, err := backend.Generate(ctx, prompt, opts)
			if err != nil {
				return Output{}, err
			}

			return Output{
				Data: map[string]any{
					"success": true,
					"message": "image generated successfully",
				},
				Images: [][]byte{image},
			}, nil
		},
	}
}
