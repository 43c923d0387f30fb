package classroom

import "github.com/trezcool/darasa/core"

// ValidateAction checks an action's required fields before it is applied.
// Malformed actions used to slip through as partial records; they are now
// rejected at this boundary with a core.ValidationError.
func ValidateAction(a Action) error {
	return core.TranslateValidationError(core.Validate.Struct(a))
}
