package pipeline

import (
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/formrelay/formrelay/internal/form"
)

// processAttachments converts validated raw uploads into deliverable
// attachments: filenames are stripped of path components, empty names are
// rejected, and missing content types are guessed from the extension.
// Ownership of the payload bytes transfers to the returned set; the raw
// buffers on the submission are released and must not be reused.
func processAttachments(sub *form.Submission) ([]form.Attachment, error) {
	if len(sub.Attachments) == 0 {
		return nil, nil
	}

	out := make([]form.Attachment, 0, len(sub.Attachments))
	for _, raw := range sub.Attachments {
		name := normalizeFilename(raw.Filename)
		if name == "" {
			return nil, form.ErrValidationRejected(raw.FieldName, "attachment has an empty or invalid filename")
		}

		contentType := raw.ContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(name))
			if contentType == "" {
				contentType = "application/octet-stream"
			}
		}

		out = append(out, form.Attachment{
			Filename:    name,
			ContentType: contentType,
			Size:        int64(len(raw.Content)),
			Content:     raw.Content,
		})
	}

	// Payload ownership has moved to the processed set.
	sub.Attachments = nil

	return out, nil
}

// normalizeFilename strips directory components from both Unix and Windows
// style paths. Returns "" for names that reduce to nothing.
func normalizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
