package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	chaterr "minechat/internal/errors"
)

// Credentials identify an account on the chat server.
type Credentials struct {
	Nickname    string `json:"nickname"`
	AccountHash string `json:"account_hash"`
}

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Sanitize replaces embedded line breaks with spaces so text fits on
// one protocol line.
func Sanitize(text string) string {
	return newlineReplacer.Replace(text)
}

// EncodeLine frames a control line: text plus one newline.
func EncodeLine(text string) []byte {
	return []byte(Sanitize(text) + "\n")
}

// EncodeMessage frames a chat message.  The trailing blank line marks
// the end of the message, which distinguishes it from single-newline
// control lines.
func EncodeMessage(text string) []byte {
	return []byte(Sanitize(text) + "\n\n")
}

// DecodeLine strips the line terminator from a raw line.
func DecodeLine(raw string) string {
	return strings.TrimRight(raw, "\r\n")
}

// DecodeCredentials parses the server's answer to a sign-in or sign-up.
// The JSON literal null yields (nil, nil).  Anything that is not a JSON
// object with a non-empty nickname and account_hash is a
// *errors.ProtocolError.
func DecodeCredentials(op, line string) (*Credentials, error) {
	raw := bytes.TrimSpace([]byte(line))
	if bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, chaterr.Protocol(op, line, err)
	}
	if creds.Nickname == "" || creds.AccountHash == "" {
		return nil, chaterr.Protocol(op, line, fmt.Errorf("credentials need nickname and account_hash"))
	}
	return &creds, nil
}
