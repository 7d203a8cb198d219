// Package helpers collects small message-format and parsing utilities:
// MIME plain-text body extraction (used by
// sieveengine.NewContextFromEntity), transfer-encoding decoding, UTF-8
// sanitization, and the size/duration string parsing the server's
// config values need.
package helpers

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"
)

// ExtractPlaintextBody walks msg's MIME parts for a text/plain inline
// part, falling back to converting the first text/html part through
// html2text when no plaintext alternative exists, so
// sieveengine.NewContextFromEntity gets a plain-text Body regardless
// of which part the message actually carried.
func ExtractPlaintextBody(msg *message.Entity) (*string, error) {
	if msg == nil {
		return nil, fmt.Errorf("nil message entity")
	}

	mr := mail.NewReader(msg)
	defer mr.Close()

	var plaintextBody, htmlBody *string
	for plaintextBody == nil {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to get next mail part: %v", err)
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		mediaType, _, err := header.ContentType()
		if err != nil {
			return nil, fmt.Errorf("failed to get mail part Content-Type: %v", err)
		} else if mediaType != "text/plain" && mediaType != "text/html" {
			continue
		}

		b, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read inline part: %v", err)
		}
		s := string(b)

		switch mediaType {
		case "text/plain":
			if plaintextBody == nil {
				plaintextBody = &s
			}
		case "text/html":
			if htmlBody == nil {
				htmlBody = &s
			}
		}
	}

	if plaintextBody == nil && htmlBody != nil {
		plaintext := html2text.HTML2Text(*htmlBody)
		plaintextBody = &plaintext
	}

	return plaintextBody, nil
}

// DecodeToBinary undoes a MIME part's Content-Transfer-Encoding so
// callers see raw bytes regardless of whether the original message
// used base64 or quoted-printable.
func DecodeToBinary(part *message.Entity) (io.Reader, error) {
	encodingType := strings.ToLower(part.Header.Get("Content-Transfer-Encoding"))

	switch encodingType {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, part.Body), nil
	case "quoted-printable":
		return quotedprintable.NewReader(part.Body), nil
	case "7bit", "8bit", "binary":
		return part.Body, nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", encodingType)
	}
}
