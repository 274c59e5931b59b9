// Package slackbot is the Slack transport: it turns Socket Mode events into
// chat engine calls and renders the replies.
package slackbot

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"accidentbot/internal/chat"
	"accidentbot/internal/domain"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const (
	actionAnswerPrefix = "answer_"
	actionAnswerSelect = "answer_select"

	maxButtons       = 10
	maxSelectOptions = 100
	maxSectionText   = 3000
)

type Engine interface {
	HandleMessage(ctx context.Context, userID, text string) chat.Reply
	StartReport(ctx context.Context, userID string) chat.Reply
	Cancel(userID string) chat.Reply
	ResetChat(userID string) chat.Reply
}

type StatsSource interface {
	Stats(since time.Time) (domain.AuditStats, error)
	DraftSubmissions(draftID string) ([]domain.SubmissionRecord, error)
}

// slackAPI is the subset of *slack.Client the bot uses.
type slackAPI interface {
	userInfoGetter
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	PostEphemeral(channelID, userID string, options ...slack.MsgOption) (string, error)
	UpdateMessage(channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	OpenConversation(params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
}

type Bot struct {
	api    slackAPI
	engine Engine
	stats  StatsSource
	users  *userDirectory
	loc    *time.Location
	now    func() time.Time
}

func NewBot(api slackAPI, engine Engine, stats StatsSource, loc *time.Location) *Bot {
	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		api:    api,
		engine: engine,
		stats:  stats,
		users:  newUserDirectory(api, nil),
		loc:    loc,
		now:    time.Now,
	}
}

// StartSlackBot runs the Socket Mode loop until ctx is cancelled.
func StartSlackBot(ctx context.Context, api *slack.Client, bot *Bot) error {
	client := socketmode.New(api)

	go func() {
		for {
			var evt socketmode.Event
			select {
			case <-ctx.Done():
				return
			case e, ok := <-client.Events:
				if !ok {
					return
				}
				evt = e
			}
			switch evt.Type {
			case socketmode.EventTypeSlashCommand:
				client.Ack(*evt.Request)
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				log.Printf("Slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
				go bot.handleSlashCommand(ctx, cmd)
			case socketmode.EventTypeEventsAPI:
				client.Ack(*evt.Request)
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				go bot.handleEventsAPI(ctx, eventsAPIEvent)
			case socketmode.EventTypeInteractive:
				client.Ack(*evt.Request)
				callback, ok := evt.Data.(slack.InteractionCallback)
				if !ok {
					continue
				}
				go bot.handleInteraction(ctx, callback)
			}
		}
	}()

	log.Println("Slack bot connected via Socket Mode")
	return client.RunContext(ctx)
}

func (b *Bot) handleSlashCommand(ctx context.Context, cmd slack.SlashCommand) {
	switch cmd.Command {
	case "/report":
		b.replyDM(cmd.UserID, b.engine.StartReport(ctx, cmd.UserID))
	case "/cancel":
		b.replyDM(cmd.UserID, b.engine.Cancel(cmd.UserID))
	case "/reset_chat":
		b.replyDM(cmd.UserID, b.engine.ResetChat(cmd.UserID))
	case "/help":
		b.postEphemeral(cmd.ChannelID, cmd.UserID, helpText())
	case "/bot-stats":
		b.handleBotStats(cmd)
	default:
		log.Printf("slash command ignored: %s", cmd.Command)
	}
}

func (b *Bot) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		b.handleMessage(ctx, ev)
	case *slackevents.MemberJoinedChannelEvent:
		b.handleMemberJoined(ev)
	}
}

func (b *Bot) handleMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	if ev.ChannelType != "im" || ev.BotID != "" || ev.SubType != "" || ev.User == "" {
		return
	}
	log.Printf("dm received user=%s channel=%s", ev.User, ev.Channel)
	b.send(ev.Channel, b.engine.HandleMessage(ctx, ev.User, ev.Text))
}

func (b *Bot) handleMemberJoined(ev *slackevents.MemberJoinedChannelEvent) {
	log.Printf("member-joined user=%s channel=%s", ev.User, ev.Channel)
	b.postEphemeral(ev.Channel, ev.User, welcomeText(b.users.FirstName(ev.User)))
}

func (b *Bot) handleInteraction(ctx context.Context, cb slack.InteractionCallback) {
	if cb.Type != slack.InteractionTypeBlockActions || len(cb.ActionCallback.BlockActions) == 0 {
		return
	}
	act := cb.ActionCallback.BlockActions[0]
	answer := answerFromAction(act)
	if answer == "" {
		log.Printf("block action ignored action=%s user=%s", act.ActionID, cb.User.ID)
		return
	}
	channelID := cb.Channel.ID
	if channelID == "" {
		channelID = cb.Container.ChannelID
	}
	userID := cb.User.ID

	if ts := cb.Container.MessageTs; ts != "" {
		text := answeredText(cb.Message.Text, answer)
		if _, _, _, err := b.api.UpdateMessage(channelID, ts,
			slack.MsgOptionText(text, false),
			slack.MsgOptionBlocks(sectionBlock(text)),
		); err != nil {
			log.Printf("block action update error user=%s: %v", userID, err)
		}
	}
	log.Printf("block action user=%s action=%s", userID, act.ActionID)
	b.send(channelID, b.engine.HandleMessage(ctx, userID, answer))
}

func (b *Bot) handleBotStats(cmd slack.SlashCommand) {
	if b.stats == nil {
		b.postEphemeral(cmd.ChannelID, cmd.UserID, "Statistics are not available.")
		return
	}
	if draftID := strings.TrimSpace(cmd.Text); draftID != "" {
		b.handleDraftAudit(cmd, draftID)
		return
	}
	all, err := b.stats.Stats(time.Time{})
	if err != nil {
		log.Printf("bot-stats all-time error: %v", err)
		b.postEphemeral(cmd.ChannelID, cmd.UserID, fmt.Sprintf("Error loading stats: %v", err))
		return
	}
	recent, err := b.stats.Stats(b.now().In(b.loc).AddDate(0, 0, -7))
	if err != nil {
		log.Printf("bot-stats recent error (non-fatal): %v", err)
		recent = domain.AuditStats{}
	}
	b.postEphemeral(cmd.ChannelID, cmd.UserID, FormatStats(all, recent))
	log.Printf("bot-stats sent user=%s", cmd.UserID)
}

// handleDraftAudit answers /bot-stats <draft-id> with the submission
// attempts recorded for that draft.
func (b *Bot) handleDraftAudit(cmd slack.SlashCommand, draftID string) {
	records, err := b.stats.DraftSubmissions(draftID)
	if err != nil {
		log.Printf("bot-stats draft=%s error: %v", draftID, err)
		b.postEphemeral(cmd.ChannelID, cmd.UserID, fmt.Sprintf("Error loading submissions: %v", err))
		return
	}
	b.postEphemeral(cmd.ChannelID, cmd.UserID, FormatDraftSubmissions(draftID, records, b.loc))
	log.Printf("bot-stats draft sent user=%s draft=%s attempts=%d", cmd.UserID, draftID, len(records))
}

func (b *Bot) replyDM(userID string, reply chat.Reply) {
	channel, _, _, err := b.api.OpenConversation(&slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		log.Printf("Error opening DM with %s: %v", userID, err)
		return
	}
	b.send(channel.ID, reply)
}

func (b *Bot) send(channelID string, reply chat.Reply) {
	if strings.TrimSpace(reply.Text) == "" {
		return
	}
	opts := []slack.MsgOption{slack.MsgOptionText(reply.Text, false)}
	if blocks := BuildBlocks(reply); len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	if _, _, err := b.api.PostMessage(channelID, opts...); err != nil {
		log.Printf("Error posting reply channel=%s: %v", channelID, err)
	}
}

func (b *Bot) postEphemeral(channelID, userID, text string) {
	if _, err := b.api.PostEphemeral(channelID, userID, slack.MsgOptionText(text, false)); err != nil {
		log.Printf("Error posting ephemeral: %v", err)
	}
}

// BuildBlocks renders the answer keyboard. Short option lists become
// buttons, longer ones a static select; lists past the select limit are
// left to typed input. A reply without options needs no blocks.
func BuildBlocks(reply chat.Reply) []slack.Block {
	if len(reply.Options) == 0 || len(reply.Options) > maxSelectOptions {
		return nil
	}
	blocks := []slack.Block{sectionBlock(reply.Text)}
	if len(reply.Options) <= maxButtons {
		elements := make([]slack.BlockElement, 0, len(reply.Options))
		for i, opt := range reply.Options {
			elements = append(elements, slack.NewButtonBlockElement(
				fmt.Sprintf("%s%d", actionAnswerPrefix, i),
				opt,
				slack.NewTextBlockObject(slack.PlainTextType, opt, false, false),
			))
		}
		return append(blocks, slack.NewActionBlock("answer_buttons", elements...))
	}

	options := make([]*slack.OptionBlockObject, 0, len(reply.Options))
	for _, opt := range reply.Options {
		options = append(options, slack.NewOptionBlockObject(
			opt,
			slack.NewTextBlockObject(slack.PlainTextType, opt, false, false),
			nil,
		))
	}
	sel := slack.NewOptionsSelectBlockElement(
		slack.OptTypeStatic,
		slack.NewTextBlockObject(slack.PlainTextType, "Choose an option", false, false),
		actionAnswerSelect,
		options...,
	)
	return append(blocks, slack.NewActionBlock("answer_select_block", sel))
}

func answerFromAction(act *slack.BlockAction) string {
	switch {
	case act.ActionID == actionAnswerSelect:
		return strings.TrimSpace(act.SelectedOption.Value)
	case strings.HasPrefix(act.ActionID, actionAnswerPrefix):
		return strings.TrimSpace(act.Value)
	}
	return ""
}

func answeredText(original, answer string) string {
	if strings.TrimSpace(original) == "" {
		return "> " + answer
	}
	return original + "\n\n> " + answer
}

func sectionBlock(text string) *slack.SectionBlock {
	if r := []rune(text); len(r) > maxSectionText {
		text = string(r[:maxSectionText-3]) + "..."
	}
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}

func welcomeText(name string) string {
	greeting := "Welcome!"
	if name != "" {
		greeting = fmt.Sprintf("Welcome, %s!", name)
	}
	return greeting + " I'm the Barranquilla road-safety assistant. Send me a direct message to report a traffic accident, " +
		"ask about recent accidents or get road-safety advice.\n\n" + commandList()
}

func helpText() string {
	return "*Accident Bot Commands*\n\n" + commandList() +
		"\n\nYou can also just write to me, e.g. \"were there accidents today in Boston?\". In an emergency call 123."
}

func commandList() string {
	return strings.Join([]string{
		"`/report`: Start a guided accident report.",
		"`/cancel`: Cancel the report in progress.",
		"`/reset_chat`: Forget our conversation and any report in progress.",
		"`/help`: Show this help.",
	}, "\n")
}

// FormatStats renders the audit counters for /bot-stats.
func FormatStats(all, recent domain.AuditStats) string {
	var sb strings.Builder
	sb.WriteString("*Accident Bot Stats*\n")
	writeStats(&sb, "All time", all)
	writeStats(&sb, "Last 7 days", recent)
	return sb.String()
}

// FormatDraftSubmissions renders the submission attempts of one draft.
func FormatDraftSubmissions(draftID string, records []domain.SubmissionRecord, loc *time.Location) string {
	if len(records) == 0 {
		return fmt.Sprintf("No submissions recorded for draft `%s`.", draftID)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Submissions for draft* `%s`\n", draftID)
	for _, r := range records {
		at := r.SubmittedAt.In(loc).Format("2006-01-02 15:04")
		if r.Success {
			fmt.Fprintf(&sb, "- Attempt %d (%s): ok, accident %s\n", r.Attempt, at, r.AccidentID)
			continue
		}
		fmt.Fprintf(&sb, "- Attempt %d (%s): failed, %s\n", r.Attempt, at, r.Error)
	}
	return sb.String()
}

func writeStats(sb *strings.Builder, title string, s domain.AuditStats) {
	fmt.Fprintf(sb, "\n*%s*\n", title)
	fmt.Fprintf(sb, "- Messages classified: %d (%d failed)\n", s.TotalClassifications, s.FailedClassifications)
	ok := s.TotalSubmissions - s.FailedSubmissions
	fmt.Fprintf(sb, "- Report submissions: %d ok, %d failed", ok, s.FailedSubmissions)
	if s.TotalSubmissions > 0 {
		fmt.Fprintf(sb, " (%.1f%% success)", 100*float64(ok)/float64(s.TotalSubmissions))
	}
	sb.WriteString("\n")

	if len(s.ByIntent) == 0 {
		return
	}
	intents := make([]string, 0, len(s.ByIntent))
	for name := range s.ByIntent {
		intents = append(intents, name)
	}
	sort.Slice(intents, func(i, j int) bool {
		if s.ByIntent[intents[i]] != s.ByIntent[intents[j]] {
			return s.ByIntent[intents[i]] > s.ByIntent[intents[j]]
		}
		return intents[i] < intents[j]
	})
	for _, name := range intents {
		fmt.Fprintf(sb, "  • %s: %d\n", name, s.ByIntent[name])
	}
}
