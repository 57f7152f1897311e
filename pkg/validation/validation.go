package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// RoomIDRegex validates room ID format
	RoomIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// ElementIDRegex validates element ID format
	ElementIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidateRoomID validates a room identifier
func ValidateRoomID(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}
	if len(roomID) > 100 {
		return fmt.Errorf("room id is too long (max 100 characters)")
	}
	if !RoomIDRegex.MatchString(roomID) {
		return fmt.Errorf("room id contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateElementID validates an element identifier
func ValidateElementID(id string) error {
	if id == "" {
		return fmt.Errorf("element id is required")
	}
	if len(id) > 128 {
		return fmt.Errorf("element id is too long (max 128 characters)")
	}
	if !ElementIDRegex.MatchString(id) {
		return fmt.Errorf("element id contains invalid characters")
	}
	return nil
}

// ValidateDisplayName validates a user display name
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("display name is required")
	}
	if utf8.RuneCountInString(name) > 50 {
		return fmt.Errorf("display name is too long (max 50 characters)")
	}
	return nil
}

// ValidateChatMessage validates a chat message body
func ValidateChatMessage(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("message is required")
	}
	if utf8.RuneCountInString(message) > 2000 {
		return fmt.Errorf("message is too long (max 2000 characters)")
	}
	return nil
}

// ValidateOpacity checks an element opacity percentage
func ValidateOpacity(opacity float64) error {
	if opacity < 0 || opacity > 100 {
		return fmt.Errorf("opacity must be between 0 and 100")
	}
	return nil
}
