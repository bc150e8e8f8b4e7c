package transform

// DefaultStyle is the preset used when no prompt is given.
const DefaultStyle = "van gogh style"

var styles = []string{
	"gothic style",
	"art deco style",
	"minimalistic style",
	"van gogh style",
	"rembrandt style",
	"cartoon style",
	"pop art style",
	"cosy & comfortable style",
}

// Styles returns the preset prompts in display order.
func Styles() []string {
	out := make([]string, len(styles))
	copy(out, styles)
	return out
}
