// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when callers do not have a configured region.
const DefaultRegion = "PK"

const whatsAppUserSuffix = "@c.us"

// NormalizeE164 formats a phone number to E.164 using region for numbers
// without a country code. If parsing fails, it returns the trimmed input.
func NormalizeE164(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	if region == "" {
		region = DefaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// FromWhatsAppID converts a WhatsApp sender id ("923001234567@c.us") to E.164.
// WhatsApp ids always carry the country code, so the digits are parsed as
// international regardless of the default region.
func FromWhatsAppID(id string) string {
	digits := strings.TrimSuffix(strings.TrimSpace(id), whatsAppUserSuffix)
	if digits == "" {
		return ""
	}
	return NormalizeE164("+"+strings.TrimPrefix(digits, "+"), DefaultRegion)
}

// ToWhatsAppChatID converts a phone number to the chat id WAAPI expects, or ""
// for an empty number.
func ToWhatsAppChatID(number, region string) string {
	normalized := NormalizeE164(number, region)
	if normalized == "" {
		return ""
	}
	return strings.TrimPrefix(normalized, "+") + whatsAppUserSuffix
}

// IsValid reports whether input parses to a valid number for region.
func IsValid(input, region string) bool {
	if region == "" {
		region = DefaultRegion
	}
	number, err := phonenumbers.Parse(strings.TrimSpace(input), region)
	return err == nil && phonenumbers.IsValidNumber(number)
}
