package sieveengine

import (
	"github.com/emersion/go-message"

	"github.com/sievegate/sievegate/helpers"
)

// NewContextFromEntity builds an evaluation Context from a parsed MIME
// message the way the teacher's LMTP Data() handler does before
// invoking the sieve engine: headers come straight off the entity,
// and Body is the plaintext extracted via helpers.ExtractPlaintextBody
// (falling back to an HTML part's text when no plaintext part exists).
// CHECKSCRIPT only compiles a script and builds no Context.
func NewContextFromEntity(msg *message.Entity, envelopeFrom, envelopeTo string) (Context, error) {
	plaintextBody, err := helpers.ExtractPlaintextBody(msg)
	if err != nil {
		return Context{}, err
	}
	body := ""
	if plaintextBody != nil {
		body = *plaintextBody
	}
	return Context{
		EnvelopeFrom: envelopeFrom,
		EnvelopeTo:   envelopeTo,
		Header:       msg.Header.Map(),
		Body:         body,
	}, nil
}
