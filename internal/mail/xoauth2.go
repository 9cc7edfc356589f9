package mail

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/smtp"

	"github.com/emersion/go-sasl"
)

// XOAuth2 is the SASL mechanism name used by Gmail for bearer tokens.
const XOAuth2 = "XOAUTH2"

// XOAuth2Error is the JSON status a server sends as a challenge when a
// bearer token is rejected.
type XOAuth2Error struct {
	Status  string `json:"status"`
	Schemes string `json:"schemes"`
	Scope   string `json:"scope"`
}

func (e *XOAuth2Error) Error() string {
	return fmt.Sprintf("XOAUTH2 rejected: status %s", e.Status)
}

type xoauth2Client struct {
	username string
	token    string
}

// NewXOAuth2Client returns a SASL client for the XOAUTH2 mechanism.
func NewXOAuth2Client(username, token string) sasl.Client {
	return &xoauth2Client{username: username, token: token}
}

// Start returns the initial response
// "user=<username>\x01auth=Bearer <token>\x01\x01".
func (c *xoauth2Client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return XOAuth2, ir, nil
}

// Next is only called when the server rejects the token.
func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	xerr := &XOAuth2Error{}
	if err := json.Unmarshal(challenge, xerr); err != nil {
		return nil, fmt.Errorf("XOAUTH2 rejected: %s", challenge)
	}
	return nil, xerr
}

// saslClient builds the SASL client for l.
func saslClient(l Login) sasl.Client {
	if l.Method == MethodPassword {
		return sasl.NewPlainClient("", l.Username, l.Secret)
	}
	return NewXOAuth2Client(l.Username, l.Secret)
}

var errInsecureAuth = errors.New("refusing to authenticate over an unencrypted connection")

// smtpAuth adapts a SASL client to net/smtp.
type smtpAuth struct {
	client sasl.Client
}

func (a smtpAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS {
		return "", nil, errInsecureAuth
	}
	return a.client.Start()
}

func (a smtpAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	return a.client.Next(fromServer)
}
