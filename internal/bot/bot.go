package bot

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"muster/internal/audit"
	"muster/internal/clock"
	"muster/internal/event"
	"muster/internal/gateway"
	"muster/internal/lifecycle"
	"muster/internal/signup"
)

// Bot is the Discord front end: it parses operator commands, runs the
// interactive creation flow and routes button clicks into the signup
// coordinator. All lifecycle decisions live in the orchestrator
type Bot struct {
	prefix        string
	session       *discordgo.Session
	registry      *event.Registry
	orchestrator  *lifecycle.Orchestrator
	coordinator   *signup.Coordinator
	clk           clock.Provider
	accel         *clock.Accelerated
	history       *audit.Tracker
	promptTimeout time.Duration
	flows         *flows
}

func CreateBot(session *discordgo.Session, prefix string, registry *event.Registry, orchestrator *lifecycle.Orchestrator, coordinator *signup.Coordinator, clk clock.Provider, accel *clock.Accelerated, history *audit.Tracker, promptTimeout time.Duration) *Bot {

	bot := &Bot{
		prefix:        prefix,
		session:       session,
		registry:      registry,
		orchestrator:  orchestrator,
		coordinator:   coordinator,
		clk:           clk,
		accel:         accel,
		history:       history,
		promptTimeout: promptTimeout,
		flows:         newFlows(),
	}
	return bot
}

func (bot *Bot) Run() error {

	// Event handlers
	bot.session.AddHandler(bot.Receive)
	bot.session.AddHandler(bot.ReceiveInteraction)
	bot.session.Identify.Intents |= discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	// Open session
	if err := bot.session.Open(); err != nil {
		return fmt.Errorf("could not open discord session: %w", err)
	}
	defer bot.session.Close()

	// Adopt every loaded event so its timers exist again
	for eventID := range bot.registry.All() {
		bot.orchestrator.Adopt(eventID)
	}

	// keep the bot running until there is an os interruption (ctrl + C)
	log.Debug().Msg("Bot is running")
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	return nil
}

func (bot *Bot) Receive(discord *discordgo.Session, message *discordgo.MessageCreate) {

	// Reject my own messages
	if message.Author.ID == discord.State.User.ID {
		return
	}

	// Ignore messages from private channels
	if message.GuildID == "" {
		log.Debug().Msg("Ignoring private message")
		return
	}

	// A creation flow in this channel consumes its author's messages
	if bot.flows.deliver(message.ChannelID, message.Author.ID, message) {
		return
	}

	// Parse the input provided and call the appropriate function
	parseResult := Parse(message.Content, bot.prefix)
	switch parseResult.parseid {
	case PARSEID_NO_BOT_PREFIX:
		return
	case PARSEID_OK:
		log.Debug().Msg(fmt.Sprintf("Command understood: %s", message.Content))
		bot.sendResponses(discord, message.ChannelID, bot.dispatch(discord, message, parseResult))
	default:

		// The command is invalid input, so it contains an error message
		errorMessage := parseResult.errorMessage
		log.Debug().Msg(fmt.Sprintf("Wrong input: '%s'. Reason: %s", message.Content, errorMessage))
		bot.sendResponses(discord, message.ChannelID, InputNotValid(errorMessage))
	}
}

func (bot *Bot) dispatch(discord *discordgo.Session, message *discordgo.MessageCreate, parseResult ParseResult) []Response {

	switch parseResult.command {
	case COMMAND_HELP:
		return HelpMessage(bot.prefix)
	case COMMAND_TIME:
		return CurrentTime(bot.clk.Now(), bot.accel != nil && bot.accel.Enabled())
	case COMMAND_LIST:
		guildID, err := strconv.ParseInt(message.GuildID, 10, 64)
		if err != nil {
			return InputNotValid("unexpected guild id")
		}
		return EventList(bot.registry.GuildEvents(guildID))
	}

	// Everything below mutates state, so it is reserved to administrators
	if !bot.isAdministrator(discord, message) {
		return []Response{ResponseString{"You need administrator permissions for this command"}}
	}

	switch parseResult.command {
	case COMMAND_CREATE:
		bot.startCreationFlow(discord, message)
		return nil
	case COMMAND_EDIT:
		args := parseResult.arguments.(EditArgs)
		rec, ok := bot.registry.Get(args.EventID)
		if !ok {
			return EventNotFound(args.EventID)
		}
		switch args.Field {
		case "description":
			rec.Description = args.Value
		case "location":
			rec.Location = args.Value
		case "time":
			newStart, err := time.Parse(event.TimeLayout, args.Value)
			if err != nil {
				return InputNotValid(fmt.Sprintf("time has to follow `%s` (UTC)", event.TimeLayout))
			}
			if !newStart.After(bot.clk.Now()) {
				return InputNotValid("the new time is already in the past")
			}
			rec.Time = newStart.UTC().Format(event.TimeLayout)
		}
		if err := bot.registry.Upsert(rec); err != nil {
			log.Error().Msg(fmt.Sprintf("Could not persist edit of event %s: %s", args.EventID, err))
		}
		bot.orchestrator.Readopt(args.EventID)
		return EventEdited(args.EventID, args.Field)
	case COMMAND_CLEANUP:
		eventID := parseResult.arguments.(string)
		if _, ok := bot.registry.Get(eventID); !ok {
			return EventNotFound(eventID)
		}
		bot.orchestrator.Cleanup(eventID)
		return EventCleaned(eventID)
	case COMMAND_DELETE:
		eventID := parseResult.arguments.(string)
		if !bot.orchestrator.Delete(eventID) {
			return EventNotFound(eventID)
		}
		return EventDeleted(eventID)
	case COMMAND_DELETE_ALL:
		guildID, err := strconv.ParseInt(message.GuildID, 10, 64)
		if err != nil {
			return InputNotValid("unexpected guild id")
		}
		count := 0
		for eventID := range bot.registry.GuildEvents(guildID) {
			if bot.orchestrator.Delete(eventID) {
				count++
			}
		}
		return AllEventsDeleted(count)
	case COMMAND_HISTORY:
		if bot.history == nil {
			return []Response{ResponseString{"Attendance history is not enabled"}}
		}
		eventID := parseResult.arguments.(string)
		entries, err := bot.history.EventHistory(eventID, 20)
		if err != nil {
			log.Error().Msg(fmt.Sprintf("Could not read history for event %s: %s", eventID, err))
			return []Response{ResponseString{"Could not read the attendance history"}}
		}
		return EventHistory(eventID, entries)
	case COMMAND_SWEEP:
		bot.orchestrator.Sweep()
		return SweepDone()
	case COMMAND_FORCE:
		args := parseResult.arguments.(ForceArgs)
		if _, ok := bot.registry.Get(args.EventID); !ok {
			return EventNotFound(args.EventID)
		}
		switch args.Transition {
		case "post":
			bot.orchestrator.Post(args.EventID)
		case "remind":
			bot.orchestrator.Remind(args.EventID)
		case "elapse":
			bot.orchestrator.HandleElapsed(args.EventID)
		}
		return TransitionForced(args.Transition, args.EventID)
	case COMMAND_ACCELERATE:
		if bot.accel == nil {
			return AccelerationNotEnabled()
		}
		minutesPerDay := parseResult.arguments.(int)
		if minutesPerDay == 0 {
			bot.accel.Disable()
			return AccelerationDisabled()
		}
		// N real minutes simulate one full day
		factor := float64(24*60) / float64(minutesPerDay)
		bot.accel.Enable(factor)
		return AccelerationEnabled(minutesPerDay)
	case COMMAND_SIMULATE:
		if bot.accel == nil || !bot.accel.Enabled() {
			return AccelerationNotEnabled()
		}
		days := parseResult.arguments.(float64)
		bot.accel.SimulateDays(days)
		// Let the sweep catch everything the jump skipped over
		bot.orchestrator.Sweep()
		return DaysSimulated(days, bot.accel.Now())
	default:
		panic(fmt.Sprintf("Command %d is not one of the possible ones", parseResult.command))
	}
}

// ReceiveInteraction handles the signup buttons under announcements
func (bot *Bot) ReceiveInteraction(discord *discordgo.Session, interaction *discordgo.InteractionCreate) {

	if interaction.Type != discordgo.InteractionMessageComponent {
		return
	}
	customID := interaction.MessageComponentData().CustomID
	eventID, slotID, ok := gateway.ParseSignupCustomID(customID)
	if !ok {
		return
	}
	if interaction.Member == nil || interaction.Member.User == nil {
		return
	}
	userID := interaction.Member.User.ID
	username := interaction.Member.User.Username
	if interaction.Member.Nick != "" {
		username = interaction.Member.Nick
	}

	// Acknowledge right away; the toggle can take a few network calls
	err := discord.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Error().Msg(fmt.Sprintf("Could not defer interaction for event %s: %s", eventID, err))
		return
	}

	outcome := bot.coordinator.Toggle(userID, username, eventID, slotID)

	if _, err := discord.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Content: outcome.Message(),
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		log.Error().Msg(fmt.Sprintf("Could not respond to toggle for event %s: %s", eventID, err))
	}
}

func (bot *Bot) isAdministrator(discord *discordgo.Session, message *discordgo.MessageCreate) bool {
	permissions, err := discord.UserChannelPermissions(message.Author.ID, message.ChannelID)
	if err != nil {
		log.Error().Msg(fmt.Sprintf("Could not check permissions for user %s: %s", message.Author.ID, err))
		return false
	}
	return permissions&discordgo.PermissionAdministrator != 0
}

func (bot *Bot) sendResponses(discord *discordgo.Session, channelId string, responses []Response) {
	for _, response := range responses {
		response.Send(channelId, discord)
	}
}
