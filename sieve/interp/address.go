package interp

import "github.com/emersion/go-message/mail"

// ParseAddressList extracts bare "local@domain" addresses from a raw
// header value such as `To: "Alice" <alice@example.com>, bob@x.com`,
// using the same RFC 5322 address-list parser the rest of the message
// pipeline already depends on.
func ParseAddressList(raw string) []string {
	addrs, err := mail.ParseAddressList(raw)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address)
	}
	return out
}
