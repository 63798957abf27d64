package email

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailConfig holds the configuration for the Gmail email sender.
// Either CredentialsJSON (service account with domain-wide delegation)
// or the ClientID/ClientSecret/RefreshToken triple (personal mailbox)
// must be provided.
type GmailConfig struct {
	// CredentialsJSON is the OAuth2 service account credentials JSON.
	CredentialsJSON string
	// ClientID for OAuth2 token-based auth.
	ClientID string
	// ClientSecret for OAuth2 token-based auth.
	ClientSecret string
	// RefreshToken for OAuth2 token-based auth.
	RefreshToken string
	// SenderAddress is the mailbox mail goes out as, SenderName the
	// display name shown next to it.
	SenderAddress string
	SenderName    string
}

// GmailSender implements Sender using the Gmail API.
type GmailSender struct {
	api      *gmail.Service
	fromAddr string
	fromName string
}

// NewGmailSender creates a new GmailSender. Service account credentials
// take precedence; the sender address is impersonated through domain-wide
// delegation. Without credentials JSON the client credentials plus refresh
// token are used, which suits personal Gmail accounts.
func NewGmailSender(ctx context.Context, cfg GmailConfig) (*GmailSender, error) {
	if cfg.SenderAddress == "" {
		return nil, errors.New("gmail: sender address must be configured")
	}

	httpClient, err := oauthClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("gmail: building API client: %w", err)
	}

	return &GmailSender{api: svc, fromAddr: cfg.SenderAddress, fromName: cfg.SenderName}, nil
}

func oauthClient(ctx context.Context, cfg GmailConfig) (*http.Client, error) {
	if cfg.CredentialsJSON != "" {
		jwtCfg, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), gmail.GmailSendScope)
		if err != nil {
			return nil, fmt.Errorf("gmail: reading service account credentials: %w", err)
		}
		jwtCfg.Subject = cfg.SenderAddress
		return jwtCfg.Client(ctx), nil
	}

	if cfg.ClientID == "" || cfg.RefreshToken == "" {
		return nil, errors.New("gmail: credentials JSON or a client id with refresh token must be configured")
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	return conf.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}), nil
}

// Send sends an email via the Gmail API.
func (g *GmailSender) Send(ctx context.Context, msg Message) error {
	raw, err := g.encode(msg)
	if err != nil {
		return err
	}

	_, err = g.api.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail: sending to %s: %w", msg.To, err)
	}
	return nil
}

// encode renders msg as an RFC 2822 message. When both bodies are set
// the message is multipart/alternative with the HTML part last, which
// capable clients prefer.
func (g *GmailSender) encode(msg Message) ([]byte, error) {
	var buf bytes.Buffer

	from := g.fromAddr
	if g.fromName != "" {
		from = g.fromName + " <" + g.fromAddr + ">"
	}
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case msg.HTMLBody != "" && msg.TextBody != "":
		mw := multipart.NewWriter(&buf)
		fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())

		for _, part := range []struct{ contentType, body string }{
			{"text/plain", msg.TextBody},
			{"text/html", msg.HTMLBody},
		} {
			pw, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type": {part.contentType + "; charset=UTF-8"},
			})
			if err != nil {
				return nil, fmt.Errorf("gmail: encoding message: %w", err)
			}
			io.WriteString(pw, part.body)
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("gmail: encoding message: %w", err)
		}
	case msg.HTMLBody != "":
		buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		buf.WriteString(msg.HTMLBody)
	default:
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		buf.WriteString(msg.TextBody)
	}

	return buf.Bytes(), nil
}
