package server

import (
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/formrelay/formrelay/internal/form"
)

// parseSubmission extracts the ordered field mapping and raw attachments
// from a multipart/form-data or application/x-www-form-urlencoded request
// body. Both parsers preserve the original field order, duplicates
// included, which the standard library's map-based form parsing would lose.
func parseSubmission(r *http.Request, formID string) (*form.Submission, error) {
	sub := &form.Submission{
		FormID:   formID,
		Origin:   submissionOrigin(r),
		RemoteIP: clientIP(r),
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("invalid content type: %w", err)
	}

	switch mediaType {
	case "multipart/form-data":
		if err := parseMultipart(r, sub); err != nil {
			return nil, err
		}
	case "application/x-www-form-urlencoded":
		if err := parseURLEncoded(r, sub); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}

	return sub, nil
}

func parseMultipart(r *http.Request, sub *form.Submission) error {
	mr, err := r.MultipartReader()
	if err != nil {
		return fmt.Errorf("failed to read multipart body: %w", err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read multipart part: %w", err)
		}

		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return fmt.Errorf("failed to read part %q: %w", part.FormName(), err)
		}

		if part.FileName() != "" {
			// Empty file inputs arrive as parts with a name but no bytes;
			// skip them rather than attaching zero-length files.
			if len(content) == 0 {
				continue
			}
			sub.Attachments = append(sub.Attachments, form.RawAttachment{
				FieldName:   part.FormName(),
				Filename:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Content:     content,
			})
			continue
		}

		sub.Fields = append(sub.Fields, form.Field{
			Name:  part.FormName(),
			Value: string(content),
		})
	}
}

func parseURLEncoded(r *http.Request, sub *form.Submission) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}

	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(key)
		if err != nil {
			return fmt.Errorf("malformed field name %q: %w", key, err)
		}
		val, err := url.QueryUnescape(value)
		if err != nil {
			return fmt.Errorf("malformed value for field %q: %w", name, err)
		}
		sub.Fields = append(sub.Fields, form.Field{Name: name, Value: val})
	}

	return nil
}

// submissionOrigin returns the submitting origin, preferring the Origin
// header and falling back to Referer.
func submissionOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" && origin != "null" {
		return origin
	}
	return r.Header.Get("Referer")
}

// clientIP extracts the client network address, honoring the usual proxy
// headers: first X-Forwarded-For hop, then X-Real-IP, then the connection's
// remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return strings.TrimSpace(rip)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
