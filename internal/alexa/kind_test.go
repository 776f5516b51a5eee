package alexa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvsdoorbell/internal/types"
)

func directive(namespace, name string) *Directive {
	return &Directive{Header: DirectiveHeader{Namespace: namespace, Name: name, PayloadVersion: PayloadVersion}}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		namespace string
		name      string
		want      DirectiveKind
	}{
		{"Alexa.Authorization", "AcceptGrant", KindAcceptGrant},
		{"alexa.authorization", "Anything", KindAcceptGrant},
		{"Alexa.Discovery", "Discover", KindDiscover},
		{"ALEXA.DISCOVERY", "", KindDiscover},
		{"alexa.discovery", "Discover", KindDiscover},
		{"Alexa.RTCSessionController", "InitiateSessionWithOffer", KindInitiateSessionWithOffer},
		{"alexa.rtcsessioncontroller", "SessionConnected", KindSessionConnected},
		{"Alexa.RTCSessionController", "SessionDisconnected", KindSessionDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.namespace+"/"+tt.name, func(t *testing.T) {
			kind, err := Classify(directive(tt.namespace, tt.name))
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestClassify_UnknownNamespace(t *testing.T) {
	kind, err := Classify(directive("Alexa.Foo", "Bar"))

	assert.Equal(t, KindUnknown, kind)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInvalidDirective, appErr.Code)
	assert.Contains(t, appErr.Message, "Alexa.Foo")
}

func TestClassify_UnknownRTCName(t *testing.T) {
	// Inner names match exactly.
	for _, name := range []string{"UpdateSessionWithOffer", "sessionconnected"} {
		kind, err := Classify(directive(NamespaceRTCSessionController, name))

		assert.Equal(t, KindUnknown, kind)
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Contains(t, appErr.Message, name)
		assert.Contains(t, appErr.Message, "directive")
	}
}

func TestDirectiveKind_String(t *testing.T) {
	assert.Equal(t, "Discover", KindDiscover.String())
	assert.Equal(t, "Unknown", KindUnknown.String())
	assert.Equal(t, "Unknown", DirectiveKind(99).String())
}
