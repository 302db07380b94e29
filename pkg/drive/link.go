package drive

import (
	"fmt"
	"regexp"
	"strings"
)

// Shared folder links come in several shapes. All of them carry the folder
// ID as a run of URL safe characters.
var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/folders/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`/folder/d/([A-Za-z0-9_-]+)`),
	regexp.MustCompile(`[?&]id=([A-Za-z0-9_-]+)`),
}

var bareID = regexp.MustCompile(`^[A-Za-z0-9_-]{25,60}$`)

// ParseFolderID extracts the folder ID from a Drive link. A bare ID is
// accepted as is.
func ParseFolderID(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", fmt.Errorf("drive link is empty")
	}
	for _, pattern := range linkPatterns {
		if match := pattern.FindStringSubmatch(link); match != nil {
			return match[1], nil
		}
	}
	if bareID.MatchString(link) {
		return link, nil
	}
	return "", fmt.Errorf("no folder ID found in drive link %q", link)
}
