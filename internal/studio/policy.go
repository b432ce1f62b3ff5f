package studio

// Action is the gateway operation an image submission resolves to.
type Action string

const (
	ActionGenerate Action = "generate"
	ActionEdit     Action = "edit"
	ActionNoOp     Action = "noop"
)

// ResolveAction maps the active mode and image presence onto a gateway
// operation. Edit without an image, and Assistant mode, resolve to NoOp.
func ResolveAction(mode Mode, hasImage bool) Action {
	switch mode {
	case ModeCreate:
		return ActionGenerate
	case ModeEdit:
		if hasImage {
			return ActionEdit
		}
	}
	return ActionNoOp
}
