package match

import "strings"

// AddressPart selects which slice of a parsed address a test compares
// against (RFC 5228 §2.7.4).
type AddressPart string

const (
	AddrAll       AddressPart = "all"
	AddrLocalPart AddressPart = "localpart"
	AddrDomain    AddressPart = "domain"
)

// SplitAddress divides addr (already extracted down to a bare
// "local@domain" by the caller's header/envelope address parsing)
// into the part the test actually compares. An address with no '@'
// has an empty domain and the whole string as its local part.
func SplitAddress(part AddressPart, addr string) string {
	switch part {
	case AddrLocalPart:
		if i := strings.LastIndexByte(addr, '@'); i >= 0 {
			return addr[:i]
		}
		return addr
	case AddrDomain:
		if i := strings.LastIndexByte(addr, '@'); i >= 0 {
			return addr[i+1:]
		}
		return ""
	default:
		return addr
	}
}
