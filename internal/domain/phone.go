package domain

import "strings"

// Provider identifies a payment provider. The aggregator can route to either
// mobile network, so a number matching any network prefix is acceptable for it.
type Provider string

const (
	ProviderMTN     Provider = "mtn"
	ProviderAirtel  Provider = "airtel"
	ProviderRelworx Provider = "relworx"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderMTN, ProviderAirtel, ProviderRelworx:
		return true
	}
	return false
}

// Numbering-plan prefixes per network, on the normalized 2567XXXXXXXX form.
var (
	mtnPrefixes    = []string{"25676", "25677", "25678", "25639"}
	airtelPrefixes = []string{"25670", "25674", "25675", "25620"}
)

// NormalizePhone converts the accepted input forms (+256..., 256..., 07...,
// 7...) into the canonical 12-digit 256XXXXXXXXX form. Returns
// ErrInvalidPhoneNumber for anything that does not normalize cleanly.
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "+")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")

	switch {
	case strings.HasPrefix(s, "256") && len(s) == 12:
	case strings.HasPrefix(s, "0") && len(s) == 10:
		s = "256" + s[1:]
	case len(s) == 9:
		s = "256" + s
	default:
		return "", ErrInvalidPhoneNumber
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhoneNumber
		}
	}
	return s, nil
}

// NetworkFor infers the direct provider owning a normalized number from its
// prefix. The aggregator is never inferred; it is only chosen explicitly or
// by the force flag.
func NetworkFor(msisdn string) (Provider, bool) {
	for _, p := range mtnPrefixes {
		if strings.HasPrefix(msisdn, p) {
			return ProviderMTN, true
		}
	}
	for _, p := range airtelPrefixes {
		if strings.HasPrefix(msisdn, p) {
			return ProviderAirtel, true
		}
	}
	return "", false
}

// MatchesProvider reports whether a normalized number can be served by the
// given provider. The aggregator accepts any number on a supported network.
func MatchesProvider(msisdn string, p Provider) bool {
	network, ok := NetworkFor(msisdn)
	if !ok {
		return false
	}
	if p == ProviderRelworx {
		return true
	}
	return network == p
}
