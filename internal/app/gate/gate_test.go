package gate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	subject string
	err     error
	seen    []string
}

func (s *stubVerifier) VerifyCredential(raw string) (string, error) {
	s.seen = append(s.seen, raw)
	return s.subject, s.err
}

func TestAuthenticateAcceptsValidCredential(t *testing.T) {
	v := &stubVerifier{subject: "user-1"}
	g := NewGate(nil, v, nil)

	uid, err := g.Authenticate("  tok  ")

	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)
	assert.Equal(t, []string{"tok"}, v.seen)
}

func TestAuthenticateRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		v    *stubVerifier
	}{
		{"empty", "", &stubVerifier{subject: "u"}},
		{"blank", "   ", &stubVerifier{subject: "u"}},
		{"bad signature", "tok", &stubVerifier{err: errors.New("signature is invalid")}},
		{"no subject", "tok", &stubVerifier{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(nil, tt.v, nil)
			uid, err := g.Authenticate(tt.raw)
			assert.ErrorIs(t, err, ErrRejected)
			assert.Empty(t, uid)
		})
	}
}

func TestEmptyCredentialNeverReachesVerifier(t *testing.T) {
	v := &stubVerifier{subject: "u"}
	_, _ = NewGate(nil, v, nil).Authenticate("")
	assert.Empty(t, v.seen)
}

func TestCloseCode(t *testing.T) {
	assert.Equal(t, 4001, CloseCodeRejected)
}
