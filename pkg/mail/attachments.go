package mail

import (
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
)

// mimeExt names a fallback extension for parts that carry no filename.
var mimeExt = map[string]string{
	"application/pdf":              ".pdf",
	"application/zip":              ".zip",
	"application/x-rar-compressed": ".rar",
	"application/vnd.rar":          ".rar",
	"application/octet-stream":     ".bin",
	"application/xml":              ".xml",
	"text/xml":                     ".xml",
	"application/vnd.ms-excel":     ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/tiff": ".tiff",
}

// findAttachments walks the MIME tree and records every part that looks
// like a file, together with the section path needed to fetch it.
func findAttachments(bs *imap.BodyStructure, path []string) []Attachment {
	if bs == nil {
		return nil
	}

	var attachments []Attachment

	section := strings.Join(path, ".")
	if section == "" {
		section = "1"
	}

	if filename := attachmentName(bs); filename != "" {
		attachments = append(attachments, Attachment{Filename: filename, Section: section})
	}

	for i, part := range bs.Parts {
		childPath := append(append([]string{}, path...), strconv.Itoa(i+1))
		attachments = append(attachments, findAttachments(part, childPath)...)
	}
	return attachments
}

// attachmentName decides whether a part is an attachment and under what
// name. Parts that declare a filename always count, known document MIME
// types count even without one.
func attachmentName(bs *imap.BodyStructure) string {
	if bs.DispositionParams != nil && bs.DispositionParams["filename"] != "" {
		return bs.DispositionParams["filename"]
	}
	if bs.Params != nil && bs.Params["name"] != "" {
		return bs.Params["name"]
	}

	disposition := strings.ToLower(bs.Disposition)
	mimeType := strings.ToLower(bs.MIMEType + "/" + bs.MIMESubType)
	ext, known := mimeExt[mimeType]
	if !known {
		return ""
	}
	if disposition == "attachment" || disposition == "inline" || strings.HasPrefix(mimeType, "application/") {
		return "attachment" + ext
	}
	return ""
}

// Download fetches one attachment body and decodes its transfer encoding.
func (c *Client) Download(uid uint32, att Attachment) ([]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{}
	if att.Section != "" {
		parts := strings.Split(att.Section, ".")
		section.Path = make([]int, len(parts))
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil {
				return nil, fmt.Errorf("bad section path %q: %w", att.Section, err)
			}
			section.Path[i] = n
		}
	}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.imap.UidFetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var data []byte
	for msg := range messages {
		for name, reader := range msg.Body {
			if len(name.Path) == 0 {
				continue
			}
			d, err := io.ReadAll(reader)
			if err != nil {
				return nil, fmt.Errorf("failed to read attachment %s: %w", att.Filename, err)
			}
			data = d
			break
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("attachment fetch failed: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("attachment %s came back empty", att.Filename)
	}

	// Attachment bodies are usually base64, the decoder skips the line
	// breaks servers insert. Anything that does not decode is raw.
	if decoded, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
		return decoded, nil
	}
	return data, nil
}
