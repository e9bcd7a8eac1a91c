package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"MorningBrief/internal/domain/models"
	xhttp "MorningBrief/pkg/http"
	applogger "MorningBrief/pkg/logger"
)

const (
	TelegramName = "telegram"

	// MaxMessageLength is Telegram's per-message limit, counted in characters.
	MaxMessageLength = 4096
)

var ErrNotConfigured = errors.New("notifier is not configured or disabled")

var (
	reHeader   = regexp.MustCompile(`(?m)^#{1,3} (.+)$`)
	reBold     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic   = regexp.MustCompile(`\*(.+?)\*`)
	reCode     = regexp.MustCompile("`(.+?)`")
	reLink     = regexp.MustCompile(`\[(.+?)\]\((.+?)\)`)
	reTableSep = regexp.MustCompile(`^\|[\s:|-]*-[\s:|-]*$`)
)

type TelegramConfig struct {
	Enabled   bool
	BotToken  string
	ChatID    string
	ParseMode string
	WrapPre   bool
	BaseURL   string
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// TelegramNotifier posts briefs to a chat through the Bot API sendMessage method.
type TelegramNotifier struct {
	cfg    TelegramConfig
	client *xhttp.Client
	log    *applogger.Logger
}

func NewTelegramNotifier(client *xhttp.Client, cfg TelegramConfig, log *applogger.Logger) *TelegramNotifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.ParseMode = strings.ToUpper(cfg.ParseMode)
	if cfg.ParseMode == "" {
		cfg.ParseMode = "HTML"
	}
	if cfg.ParseMode == "MARKDOWNV2" {
		cfg.ParseMode = "MarkdownV2"
	}
	if log == nil {
		log = applogger.Nop()
	}
	return &TelegramNotifier{cfg: cfg, client: client, log: log.With(applogger.String("component", "notify.telegram"))}
}

func (t *TelegramNotifier) Name() string { return TelegramName }

func (t *TelegramNotifier) Enabled() bool {
	return t.cfg.Enabled && t.cfg.BotToken != "" && t.cfg.ChatID != ""
}

// Send delivers the brief's markdown, split into as many messages as needed. Every
// chunk is attempted; the returned error joins the failures.
func (t *TelegramNotifier) Send(ctx context.Context, brief *models.Brief) error {
	if !t.Enabled() {
		t.log.Error("telegram notifier unavailable",
			applogger.Bool("token_set", t.cfg.BotToken != ""),
			applogger.Bool("chat_id_set", t.cfg.ChatID != ""),
			applogger.Bool("enabled", t.cfg.Enabled))
		return ErrNotConfigured
	}

	msgs := t.Messages(brief.Markdown)
	t.log.Info("sending brief", applogger.String("date", brief.Date), applogger.Int("messages", len(msgs)))

	var errs []error
	for i, m := range msgs {
		if err := t.sendMessage(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("message %d/%d: %w", i+1, len(msgs), err))
		}
	}
	return errors.Join(errs...)
}

// Messages formats text for the configured parse mode and splits it to fit the
// message limit, preferring paragraph boundaries.
func (t *TelegramNotifier) Messages(text string) []string {
	formatted := t.format(text)
	if utf8.RuneCountInString(formatted) <= MaxMessageLength {
		return []string{formatted}
	}

	var out, current []string
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, "\n\n"))
			current = nil
		}
	}
	for _, para := range strings.Split(text, "\n\n") {
		p := t.format(para)
		candidate := strings.Join(append(append([]string(nil), current...), p), "\n\n")
		if utf8.RuneCountInString(candidate) <= MaxMessageLength {
			current = append(current, p)
			continue
		}
		flush()
		if utf8.RuneCountInString(p) > MaxMessageLength {
			out = append(out, forceSplit(p, MaxMessageLength)...)
		} else {
			current = append(current, p)
		}
	}
	flush()
	return out
}

func (t *TelegramNotifier) format(text string) string {
	if t.cfg.ParseMode != "HTML" {
		return text
	}
	if t.cfg.WrapPre {
		return "<pre>" + html.EscapeString(text) + "</pre>"
	}
	return MarkdownToHTML(text)
}

func (t *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	var resp sendMessageResponse
	err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.BotToken),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body: sendMessageRequest{
			ChatID:                t.cfg.ChatID,
			Text:                  text,
			ParseMode:             t.cfg.ParseMode,
			DisableWebPagePreview: true,
		},
	}, &resp)
	if err != nil {
		// the token is part of the URL
		return errors.New(strings.ReplaceAll(err.Error(), t.cfg.BotToken, "***"))
	}
	if !resp.OK {
		return fmt.Errorf("telegram api error [%d]: %s", resp.ErrorCode, resp.Description)
	}
	return nil
}

// MarkdownToHTML converts the subset of markdown used by the brief into Telegram HTML.
// Table rows become "a | b" lines and separator rows are dropped.
func MarkdownToHTML(text string) string {
	text = html.EscapeString(text)
	text = reHeader.ReplaceAllString(text, "<b>$1</b>")
	text = reBold.ReplaceAllString(text, "<b>$1</b>")
	text = reItalic.ReplaceAllString(text, "<i>$1</i>")
	text = reCode.ReplaceAllString(text, "<code>$1</code>")
	text = reLink.ReplaceAllString(text, `<a href="$2">$1</a>`)

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			out = append(out, line)
			continue
		}
		if reTableSep.MatchString(trimmed) {
			continue
		}
		var cells []string
		for _, c := range strings.Split(trimmed, "|") {
			if c = strings.TrimSpace(c); c != "" {
				cells = append(cells, c)
			}
		}
		if len(cells) > 0 {
			out = append(out, strings.Join(cells, " | "))
		}
	}
	return strings.Join(out, "\n")
}

// forceSplit breaks text into chunks of at most max characters, by line, then by
// word, then by character.
func forceSplit(text string, max int) []string {
	var chunks []string
	current := ""
	runes := utf8.RuneCountInString

	for _, line := range strings.Split(text, "\n") {
		candidate := line
		if current != "" {
			candidate = current + "\n" + line
		}
		if runes(candidate) <= max {
			current = candidate
			continue
		}
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
		if runes(line) <= max {
			current = line
			continue
		}

		cur := ""
		for _, word := range strings.Fields(line) {
			cand := word
			if cur != "" {
				cand = cur + " " + word
			}
			if runes(cand) <= max {
				cur = cand
				continue
			}
			if cur != "" {
				chunks = append(chunks, cur)
			}
			cur = word
			if runes(word) > max {
				r := []rune(word)
				for len(r) > max {
					chunks = append(chunks, string(r[:max]))
					r = r[max:]
				}
				cur = string(r)
			}
		}
		current = cur
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}
