package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/drukpa1455/crewai-job/internal/pipeline"
	"github.com/drukpa1455/crewai-job/pkg/logger"
)

var urlRe = regexp.MustCompile(`https?://[^\s<>]+`)

// Runner runs the render pipeline for one posting.
type Runner interface {
	Run(ctx context.Context, url string) (*pipeline.Result, error)
}

// session is the part of *discordgo.Session the bot talks to.
type session interface {
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionsRemoveAll(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelFileSend(channelID, name string, r io.Reader, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Bot struct {
	session *discordgo.Session
	runner  Runner
	timeout time.Duration
}

func New(token string, runner Runner, timeout time.Duration) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	bot := &Bot{
		session: session,
		runner:  runner,
		timeout: timeout,
	}
	session.AddHandler(bot.onMessageCreate)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("error opening Discord session: %w", err)
	}
	slog.Info("Bot is running...")
	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	slog.Info("Received message", "content", m.Content, "author", m.Author.Username)
	url := JobURL(m.Message)
	if url == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		b.processJobPosting(ctx, s, m.ChannelID, m.ID, url)
	}()
}

// JobURL picks the posting to process: the first link in the message text,
// otherwise the first HTML attachment.
func JobURL(m *discordgo.Message) string {
	if u := urlRe.FindString(m.Content); u != "" {
		return strings.TrimRight(u, ".,)>")
	}
	for _, att := range m.Attachments {
		if strings.EqualFold(filepath.Ext(att.Filename), ".html") {
			return att.URL
		}
	}
	return ""
}

func (b *Bot) processJobPosting(ctx context.Context, s session, channelID, messageID, url string) {
	ctx = logger.WithRequestID(ctx, messageID)
	slog.InfoContext(ctx, "Processing job posting", "url", url)
	s.MessageReactionAdd(channelID, messageID, "⏳")

	res, err := b.runner.Run(ctx, url)
	if err != nil {
		handleError(ctx, s, channelID, messageID, err)
		return
	}

	var files []string
	if res.Rendered != nil {
		files = []string{res.Rendered.CVPDF, res.Rendered.CoverLetterPDF}
	}
	sent := 0
	for _, path := range files {
		if path == "" {
			continue
		}
		if err := sendFile(s, channelID, path); err != nil {
			handleError(ctx, s, channelID, messageID, err)
			return
		}
		sent++
	}
	if sent == 0 {
		handleError(ctx, s, channelID, messageID, fmt.Errorf("run %s produced no PDF files", res.Run.ID))
		return
	}

	s.MessageReactionsRemoveAll(channelID, messageID)
	s.MessageReactionAdd(channelID, messageID, "✅")
	slog.InfoContext(ctx, "Done processing!", "files", sent)
}

func sendFile(s session, channelID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer f.Close()
	if _, err := s.ChannelFileSend(channelID, filepath.Base(path), f); err != nil {
		return fmt.Errorf("failed to send PDF file: %w", err)
	}
	return nil
}

func handleError(ctx context.Context, s session, channelID, messageID string, err error) {
	slog.ErrorContext(ctx, "Processing error", "error", err)
	s.MessageReactionsRemoveAll(channelID, messageID)
	s.MessageReactionAdd(channelID, messageID, "❌")
	s.ChannelMessageSend(channelID, fmt.Sprintf("Error: %v", err))
}
