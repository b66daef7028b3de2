package domain

import "context"

// Tool names exposed to the model. They are part of the wire contract with
// the vendors' function-calling formats and must not be renamed.
const (
	ToolSearchWebsite = "search_website"
	ToolGetPage       = "get_page"
)

// ToolSchema is the vendor-neutral function description translated by each
// adapter into its vendor's function-calling format.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolHandler executes a model-requested tool call and returns the textual
// tool result. Implementations must degrade to a "no results" string
// instead of failing the turn.
type ToolHandler func(ctx context.Context, name string, args map[string]any) string

// SearchWebsiteTool returns the schema for the site search tool.
func SearchWebsiteTool() ToolSchema {
	return ToolSchema{
		Name:        ToolSearchWebsite,
		Description: "Search the website for relevant pages. Returns a list of pages with title, URL, and preview snippet.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search keywords",
				},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
	}
}

// GetPageTool returns the schema for the page loading tool.
func GetPageTool() ToolSchema {
	return ToolSchema{
		Name:        ToolGetPage,
		Description: "Load a page by URL. If the target body is thin, the tool may include supporting excerpts from related same-site pages.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "URL of the page to load",
				},
			},
			"required":             []string{"url"},
			"additionalProperties": false,
		},
	}
}
