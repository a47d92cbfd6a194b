package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/form"
)

// checkLimits enforces the form's shape constraints: total field count,
// per-field length, attachment count, per-attachment size, and allowed
// extensions. The first violation in stable field order rejects the whole
// submission; there is no partial acceptance.
func checkLimits(cfg config.FormConfig, sub *form.Submission) error {
	if cfg.MaxFields > 0 && len(sub.Fields) > cfg.MaxFields {
		return form.ErrValidationRejected("fields",
			fmt.Sprintf("too many fields: %d exceeds limit of %d", len(sub.Fields), cfg.MaxFields))
	}

	if cfg.MaxFieldLength > 0 {
		for _, f := range sub.Fields {
			if len(f.Value) > cfg.MaxFieldLength {
				return form.ErrValidationRejected(f.Name,
					fmt.Sprintf("field %q exceeds maximum length of %d", f.Name, cfg.MaxFieldLength))
			}
		}
	}

	if cfg.MaxFiles > 0 && len(sub.Attachments) > cfg.MaxFiles {
		return form.ErrValidationRejected("attachments",
			fmt.Sprintf("too many attachments: %d exceeds limit of %d", len(sub.Attachments), cfg.MaxFiles))
	}

	for _, att := range sub.Attachments {
		if cfg.MaxFileSize > 0 && int64(len(att.Content)) > cfg.MaxFileSize {
			return form.ErrValidationRejected(att.Filename,
				fmt.Sprintf("attachment %q exceeds maximum size of %d bytes", att.Filename, cfg.MaxFileSize))
		}
		if len(cfg.AllowedExtensions) > 0 && !extensionAllowed(att.Filename, cfg.AllowedExtensions) {
			return form.ErrValidationRejected(att.Filename,
				fmt.Sprintf("attachment %q has a disallowed file type", att.Filename))
		}
	}

	return nil
}

func extensionAllowed(filename string, allowed []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(strings.TrimSpace(a), ".")) == ext {
			return true
		}
	}
	return false
}
