package alexa

import (
	"fmt"
	"strings"

	"kvsdoorbell/internal/types"
)

// DirectiveKind is the closed set of directives the skill handles.
type DirectiveKind int

const (
	KindUnknown DirectiveKind = iota
	KindAcceptGrant
	KindDiscover
	KindInitiateSessionWithOffer
	KindSessionConnected
	KindSessionDisconnected
)

func (k DirectiveKind) String() string {
	switch k {
	case KindAcceptGrant:
		return NameAcceptGrant
	case KindDiscover:
		return NameDiscover
	case KindInitiateSessionWithOffer:
		return NameInitiateSessionWithOffer
	case KindSessionConnected:
		return NameSessionConnected
	case KindSessionDisconnected:
		return NameSessionDisconnected
	default:
		return "Unknown"
	}
}

// anyName matches every directive name in a namespace.
const anyName = "*"

type route struct {
	namespace string // lower case
	name      string // exact, or anyName
}

// routes is the directive routing table. Authorization and discovery accept
// any name within their namespace; RTC directives match on exact name.
var routes = map[route]DirectiveKind{
	{strings.ToLower(NamespaceAuthorization), anyName}:                             KindAcceptGrant,
	{strings.ToLower(NamespaceDiscovery), anyName}:                                 KindDiscover,
	{strings.ToLower(NamespaceRTCSessionController), NameInitiateSessionWithOffer}: KindInitiateSessionWithOffer,
	{strings.ToLower(NamespaceRTCSessionController), NameSessionConnected}:         KindSessionConnected,
	{strings.ToLower(NamespaceRTCSessionController), NameSessionDisconnected}:      KindSessionDisconnected,
}

// Classify maps a validated directive to its kind. An unrecognized namespace
// or an unrecognized name within a known namespace yields an
// types.ErrCodeInvalidDirective error naming the offending value.
func Classify(d *Directive) (DirectiveKind, error) {
	ns := d.NormalizedNamespace()

	if kind, ok := routes[route{ns, anyName}]; ok {
		return kind, nil
	}
	if kind, ok := routes[route{ns, d.Header.Name}]; ok {
		return kind, nil
	}

	for r := range routes {
		if r.namespace == ns {
			return KindUnknown, types.NewAppErrorWithDetails(types.ErrCodeInvalidDirective,
				fmt.Sprintf("%s is NOT a directive handled by the Skill", d.Header.Name), nil,
				map[string]any{"namespace": d.Header.Namespace, "name": d.Header.Name})
		}
	}

	return KindUnknown, types.NewAppErrorWithDetails(types.ErrCodeInvalidDirective,
		fmt.Sprintf("%s is NOT a capability handled by the Skill", d.Header.Namespace), nil,
		map[string]any{"namespace": d.Header.Namespace})
}
