package media

import (
	"fmt"

	"github.com/samber/mo"
)

// HandshakeState tracks one token-chain resolution. It lives for a single
// call and every hop is set exactly once, in order.
type HandshakeState struct {
	Family    Family
	SourceURL string
	Token     mo.Option[string]
	Hop1URL   mo.Option[string]
	Hop2URL   mo.Option[string]
}

// NewHandshakeState starts a chain for sourceURL.
func NewHandshakeState(family Family, sourceURL string) *HandshakeState {
	return &HandshakeState{
		Family:    family,
		SourceURL: sourceURL,
		Token:     mo.None[string](),
		Hop1URL:   mo.None[string](),
		Hop2URL:   mo.None[string](),
	}
}

func (s *HandshakeState) WithToken(token string) error {
	if s.Token.IsPresent() {
		return fmt.Errorf("token already set")
	}
	s.Token = mo.Some(token)
	return nil
}

func (s *HandshakeState) WithHop1(u string) error {
	if s.Hop1URL.IsPresent() {
		return fmt.Errorf("first hop already set")
	}
	s.Hop1URL = mo.Some(u)
	return nil
}

func (s *HandshakeState) WithHop2(u string) error {
	if s.Hop1URL.IsAbsent() {
		return fmt.Errorf("second hop before first hop")
	}
	if s.Hop2URL.IsPresent() {
		return fmt.Errorf("second hop already set")
	}
	s.Hop2URL = mo.Some(u)
	return nil
}
