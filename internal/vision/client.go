package vision

import "context"

// Client is the model-service contract the pipeline depends on.
// Implementations must return the raw JSON text of the response.
type Client interface {
	GenerateJSON(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// Models the service accepts. Pro counts small dots better; flash is
// faster on plain text boards.
var SupportedModels = []string{
	"gemini-1.5-pro",
	"gemini-2.0-flash-exp",
	"gemini-1.5-flash",
}

// DefaultModel is used when the request does not pick one.
const DefaultModel = "gemini-1.5-pro"

// ValidModel reports whether name belongs to the fixed model set.
func ValidModel(name string) bool {
	for _, m := range SupportedModels {
		if m == name {
			return true
		}
	}
	return false
}
