package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		region string
		want   string
	}{
		{name: "national number uses region", input: "0300 1234567", region: "PK", want: "+923001234567"},
		{name: "international stays", input: "+31 6 12345678", region: "PK", want: "+31612345678"},
		{name: "garbage is returned trimmed", input: "  not-a-phone ", region: "PK", want: "not-a-phone"},
		{name: "empty stays empty", input: "   ", region: "PK", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeE164(tc.input, tc.region); got != tc.want {
				t.Fatalf("NormalizeE164(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestWhatsAppIDRoundTrip(t *testing.T) {
	e164 := FromWhatsAppID("923001234567@c.us")
	if e164 != "+923001234567" {
		t.Fatalf("unexpected E.164 %q", e164)
	}
	if chatID := ToWhatsAppChatID(e164, "PK"); chatID != "923001234567@c.us" {
		t.Fatalf("unexpected chat id %q", chatID)
	}
	if FromWhatsAppID("@c.us") != "" {
		t.Fatalf("expected empty id to normalize to empty string")
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("0300 1234567", "PK") {
		t.Fatalf("expected national PK mobile to be valid")
	}
	if IsValid("+12", "PK") || IsValid("call me", "PK") {
		t.Fatalf("expected junk to be invalid")
	}
}
