// Package gmail reads job related messages from a Gmail mailbox.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/spigell/bewerbungs-agent/internal/signals"
	"github.com/spigell/bewerbungs-agent/internal/utils"
)

const (
	sourceName        = "gmail"
	defaultUser       = "me"
	defaultMaxResults = 50
	defaultQuery      = "newer_than:30d"
	// maxAttachmentBytes skips large attachments that are rarely plain text.
	maxAttachmentBytes = 512 * 1024
	// maxDocumentBytes bounds PDF and DOCX attachments.
	maxDocumentBytes = 10 * 1024 * 1024
)

type Config struct {
	// TokenFile holds an OAuth token in the JSON form written by oauth2.
	TokenFile string `mapstructure:"token-file"`
	// CredentialsFile is the optional OAuth client file. With it expired
	// tokens are refreshed; without it the token is used as is.
	CredentialsFile string `mapstructure:"credentials-file"`
	User            string `mapstructure:"user"`
	Query           string `mapstructure:"query"`
	MaxResults      int64  `mapstructure:"max-results"`
}

// mailbox is the part of the Gmail API the source needs.
type mailbox interface {
	List(ctx context.Context, user, query string, max int64) ([]string, error)
	Get(ctx context.Context, user, id string) (*gm.Message, error)
	Attachment(ctx context.Context, user, messageID, attachmentID string) ([]byte, error)
}

// Source fetches messages matching a query.
type Source struct {
	box    mailbox
	docs   *extractor
	cfg    Config
	logger *zap.Logger
}

var _ signals.Source = (*Source)(nil)

// New builds a Source authenticated with the token file from cfg.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Source, error) {
	ts, err := tokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gm.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	return newSource(&apiMailbox{svc: svc}, cfg, log), nil
}

func newSource(box mailbox, cfg Config, log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.User = utils.FirstNonEmpty(cfg.User, defaultUser)
	cfg.Query = utils.FirstNonEmpty(cfg.Query, defaultQuery)
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	return &Source{box: box, docs: &extractor{}, cfg: cfg, logger: log.With(zap.String("source", sourceName))}
}

func (s *Source) Name() string { return sourceName }

// Fetch lists matching messages and loads each one. A message that cannot
// be loaded is skipped and logged.
func (s *Source) Fetch(ctx context.Context) ([]signals.Raw, error) {
	ids, err := s.box.List(ctx, s.cfg.User, s.cfg.Query, s.cfg.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("list gmail messages: %w", err)
	}

	s.logger.Debug("listed gmail messages", zap.String("query", s.cfg.Query), zap.Int("count", len(ids)))

	raws := make([]signals.Raw, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg, err := s.box.Get(ctx, s.cfg.User, id)
		if err != nil {
			s.logger.Warn("failed to load gmail message", zap.String("message_id", id), zap.Error(err))
			continue
		}

		raw := toRaw(msg)
		for _, att := range readableAttachments(msg.Payload) {
			data := att.inline
			if data == nil && att.id != "" {
				data, err = s.box.Attachment(ctx, s.cfg.User, msg.Id, att.id)
				if err != nil {
					s.logger.Warn("failed to load gmail attachment",
						zap.String("message_id", msg.Id),
						zap.String("filename", att.filename),
						zap.Error(err),
					)
					continue
				}
			}
			text, err := s.docs.text(ctx, att, data)
			if err != nil {
				s.logger.Warn("failed to read gmail attachment",
					zap.String("message_id", msg.Id),
					zap.String("filename", att.filename),
					zap.Error(err),
				)
				continue
			}
			if text = strings.TrimSpace(text); text != "" {
				raw.Attachments = append(raw.Attachments, text)
			}
		}
		raws = append(raws, raw)
	}

	return raws, nil
}

func tokenSource(ctx context.Context, cfg Config) (oauth2.TokenSource, error) {
	path := strings.TrimSpace(cfg.TokenFile)
	if path == "" {
		return nil, errors.New("gmail token file is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gmail token file %q: %w", path, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse gmail token file %q: %w", path, err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, fmt.Errorf("gmail token file %q has no token", path)
	}

	creds := strings.TrimSpace(cfg.CredentialsFile)
	if creds == "" {
		return oauth2.StaticTokenSource(&token), nil
	}

	clientJSON, err := os.ReadFile(creds)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials file %q: %w", creds, err)
	}
	oauthCfg, err := google.ConfigFromJSON(clientJSON, gm.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse gmail credentials file %q: %w", creds, err)
	}
	return oauthCfg.TokenSource(ctx, &token), nil
}

func toRaw(msg *gm.Message) signals.Raw {
	raw := signals.Raw{
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
	}
	if msg.InternalDate > 0 {
		raw.ReceivedAt = time.UnixMilli(msg.InternalDate).UTC()
	}
	if msg.Payload == nil {
		raw.Body = strings.TrimSpace(msg.Snippet)
		return raw
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			raw.Subject = strings.TrimSpace(h.Value)
		case "from":
			raw.Sender = strings.TrimSpace(h.Value)
		}
	}

	raw.Body = utils.FirstNonEmpty(
		findBody(msg.Payload, "text/plain"),
		stripHTML(findBody(msg.Payload, "text/html")),
		msg.Snippet,
	)
	return raw
}

// findBody returns the first body part of the given type, skipping
// attachments.
func findBody(part *gm.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if part.Filename == "" && strings.EqualFold(part.MimeType, mimeType) && part.Body != nil {
		if text, err := decode(part.Body.Data); err == nil && strings.TrimSpace(text) != "" {
			return text
		}
	}
	for _, child := range part.Parts {
		if text := findBody(child, mimeType); text != "" {
			return text
		}
	}
	return ""
}

type attachment struct {
	filename string
	kind     attachmentKind
	id       string
	inline   []byte
}

// readableAttachments lists attachments text can be read from.
func readableAttachments(part *gm.MessagePart) []attachment {
	if part == nil {
		return nil
	}
	var out []attachment
	if part.Filename != "" && part.Body != nil {
		kind := kindOf(part.MimeType, part.Filename)
		if kind != kindUnknown && part.Body.Size <= kind.maxBytes() {
			att := attachment{filename: part.Filename, kind: kind, id: part.Body.AttachmentId}
			if part.Body.Data != "" {
				if data, err := decodeBytes(part.Body.Data); err == nil {
					att.inline = data
				}
			}
			out = append(out, att)
		}
	}
	for _, child := range part.Parts {
		out = append(out, readableAttachments(child)...)
	}
	return out
}

func decode(data string) (string, error) {
	b, err := decodeBytes(data)
	return string(b), err
}

func decodeBytes(data string) ([]byte, error) {
	if data == "" {
		return nil, nil
	}
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

var (
	tagPattern   = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]+>`)
	blankPattern = regexp.MustCompile(`\n\s*\n+`)
)

func stripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n", "</li>", "\n", "<li>", "- ").Replace(html)
	text = tagPattern.ReplaceAllString(text, "")
	text = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'").Replace(text)
	text = blankPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

type apiMailbox struct {
	svc *gm.Service
}

func (m *apiMailbox) List(ctx context.Context, user, query string, max int64) ([]string, error) {
	var ids []string
	call := m.svc.Users.Messages.List(user).Q(query).MaxResults(max)
	err := call.Pages(ctx, func(resp *gm.ListMessagesResponse) error {
		for _, msg := range resp.Messages {
			if int64(len(ids)) >= max {
				return errStopPaging
			}
			ids = append(ids, msg.Id)
		}
		if int64(len(ids)) >= max {
			return errStopPaging
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopPaging) {
		return nil, err
	}
	return ids, nil
}

var errStopPaging = errors.New("enough messages")

func (m *apiMailbox) Get(ctx context.Context, user, id string) (*gm.Message, error) {
	return m.svc.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
}

func (m *apiMailbox) Attachment(ctx context.Context, user, messageID, attachmentID string) ([]byte, error) {
	body, err := m.svc.Users.Messages.Attachments.Get(user, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return decodeBytes(body.Data)
}
