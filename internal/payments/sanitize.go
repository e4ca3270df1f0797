package payments

import (
	"regexp"
	"strings"
)

const (
	maxItemNameLen  = 255
	defaultItemName = "Course Purchase"
)

var itemNameDisallowed = regexp.MustCompile(`[^A-Za-z0-9 .,\-/+=_:'@%]`)

// SanitizeItemName makes a line item name acceptable to the gateway: "&"
// becomes "and", every other character outside its charset is dropped, and
// the result is cut to 255 bytes. Applying it twice changes nothing.
func SanitizeItemName(name string) string {
	name = strings.ReplaceAll(name, "&", "and")
	name = itemNameDisallowed.ReplaceAllString(name, "")
	if len(name) > maxItemNameLen {
		name = name[:maxItemNameLen]
	}
	if name == "" {
		return defaultItemName
	}
	return name
}
