package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BuildEffectivePrompt joins the main prompt and non-empty fragments with blank lines
func BuildEffectivePrompt(main string, frags []string) string {
	parts := make([]string, 0, 1+len(frags))
	if strings.TrimSpace(main) != "" {
		parts = append(parts, strings.TrimSpace(main))
	}
	for _, f := range frags {
		f = strings.TrimSpace(f)
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, "\n\n")
}

// LoadFragments reads reusable prompt fragments from text files. Image files
// are refused so a misplaced --fragment flag fails loudly.
func LoadFragments(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".png", ".jpg", ".jpeg", ".webp", ".gif":
			return nil, fmt.Errorf("--fragment expects text files; got image file: %s", p)
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("fragment not found: %s", p)
		}
		out = append(out, string(b))
	}
	return out, nil
}
