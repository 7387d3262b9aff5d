package bot

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"muster/internal/event"
)

const abortWord = "cancel"

// flows tracks the channels where a creation conversation is in
// progress, keyed by channel and author, so Receive can hand the
// author's messages to the flow goroutine instead of the parser
type flows struct {
	mutex  sync.Mutex
	active map[flowKey]chan *discordgo.MessageCreate
}

type flowKey struct {
	channelID string
	userID    string
}

func newFlows() *flows {
	return &flows{active: make(map[flowKey]chan *discordgo.MessageCreate)}
}

func (f *flows) begin(channelID, userID string) (chan *discordgo.MessageCreate, bool) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	key := flowKey{channelID, userID}
	if _, inProgress := f.active[key]; inProgress {
		return nil, false
	}
	channel := make(chan *discordgo.MessageCreate, 1)
	f.active[key] = channel
	return channel, true
}

func (f *flows) end(channelID, userID string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.active, flowKey{channelID, userID})
}

func (f *flows) deliver(channelID, userID string, message *discordgo.MessageCreate) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	channel, inProgress := f.active[flowKey{channelID, userID}]
	if !inProgress {
		return false
	}
	select {
	case channel <- message:
	default:
		// The flow is not reading, drop the message
	}
	return true
}

func (bot *Bot) startCreationFlow(discord *discordgo.Session, message *discordgo.MessageCreate) {

	channel, started := bot.flows.begin(message.ChannelID, message.Author.ID)
	if !started {
		bot.sendResponses(discord, message.ChannelID,
			[]Response{ResponseString{"You already have an event creation in progress in this channel"}})
		return
	}
	go bot.runCreationFlow(discord, message, channel)
}

// runCreationFlow walks the author through the questions needed to
// build an event. Nothing is persisted until every answer is in, so a
// timeout or a cancel leaves no trace
func (bot *Bot) runCreationFlow(discord *discordgo.Session, message *discordgo.MessageCreate, channel chan *discordgo.MessageCreate) {

	defer bot.flows.end(message.ChannelID, message.Author.ID)

	guildID, err := strconv.ParseInt(message.GuildID, 10, 64)
	if err != nil {
		log.Error().Msg(fmt.Sprintf("Could not parse guild id %s: %s", message.GuildID, err))
		return
	}
	channelID, err := strconv.ParseInt(message.ChannelID, 10, 64)
	if err != nil {
		log.Error().Msg(fmt.Sprintf("Could not parse channel id %s: %s", message.ChannelID, err))
		return
	}

	say := func(content string) {
		if _, err := discord.ChannelMessageSend(message.ChannelID, content); err != nil {
			log.Error().Msg(fmt.Sprintf("Could not send creation prompt: %s", err))
		}
	}

	// Title
	title, ok := bot.ask(discord, message.ChannelID, channel,
		fmt.Sprintf("What is the title of the event? (type `%s` at any point to abort)", abortWord))
	if !ok {
		return
	}

	// Description
	description, ok := bot.ask(discord, message.ChannelID, channel,
		"Give a short description, or `skip` for none")
	if !ok {
		return
	}
	if strings.EqualFold(description, "skip") {
		description = ""
	}

	// Start time
	var startTime time.Time
	for {
		answer, ok := bot.ask(discord, message.ChannelID, channel,
			fmt.Sprintf("When does it start? Use `%s` (UTC)", event.TimeLayout))
		if !ok {
			return
		}
		startTime, err = time.Parse(event.TimeLayout, answer)
		if err != nil {
			say("I could not understand that time, try again")
			continue
		}
		if !startTime.After(bot.clk.Now()) {
			say("That time is already in the past, try again")
			continue
		}
		break
	}

	// Location
	location, ok := bot.ask(discord, message.ChannelID, channel,
		"Where does it take place? `skip` for nowhere in particular")
	if !ok {
		return
	}
	if strings.EqualFold(location, "skip") {
		location = ""
	}

	// Role slots
	slots := []*event.RoleSlot{}
	for {
		answer, ok := bot.ask(discord, message.ChannelID, channel,
			"Add a role slot as `name | limit | restricted`, where limit 0 means unlimited "+
				"and restricted is yes or no. Type `done` when you have added them all")
		if !ok {
			return
		}
		if strings.EqualFold(answer, "done") {
			if len(slots) == 0 {
				say("The event needs at least one role slot")
				continue
			}
			break
		}
		slot, err := parseSlotLine(answer)
		if err != nil {
			say(fmt.Sprintf("%s, try again", err))
			continue
		}
		slots = append(slots, slot)
	}

	// Recurrence
	var recurrenceRule string
	for {
		answer, ok := bot.ask(discord, message.ChannelID, channel,
			"Does it repeat? Give a recurrence rule like `FREQ=WEEKLY`, or `none`")
		if !ok {
			return
		}
		if strings.EqualFold(answer, "none") {
			break
		}
		if _, err := event.ParseRule(answer, startTime); err != nil {
			say("I could not understand that recurrence rule, try again")
			continue
		}
		recurrenceRule = answer
		break
	}

	authorID, err := strconv.ParseInt(message.Author.ID, 10, 64)
	if err != nil {
		log.Error().Msg(fmt.Sprintf("Could not parse author id %s: %s", message.Author.ID, err))
		return
	}
	record := event.NewRecord(title, startTime, guildID, channelID, authorID)
	record.Description = description
	record.Location = location
	record.Recurring = recurrenceRule != ""
	record.RecurrenceRule = recurrenceRule
	for index, slot := range slots {
		record.Roles[fmt.Sprintf("role_%d", index+1)] = slot
	}

	if _, exists := bot.registry.Get(record.ID); exists {
		say(fmt.Sprintf("An event with id `%s` already exists", record.ID))
		return
	}

	if err := bot.registry.Upsert(record); err != nil {
		log.Error().Msg(fmt.Sprintf("Could not persist new event %s: %s", record.ID, err))
	}
	bot.orchestrator.Adopt(record.ID)
	say(fmt.Sprintf("Event `%s` created. The announcement goes out three days before it starts", record.ID))
}

// ask sends a prompt and waits for the author's next message in the
// channel. It reports false when the author cancels or stops replying
func (bot *Bot) ask(discord *discordgo.Session, channelID string, channel chan *discordgo.MessageCreate, prompt string) (string, bool) {

	if _, err := discord.ChannelMessageSend(channelID, prompt); err != nil {
		log.Error().Msg(fmt.Sprintf("Could not send creation prompt: %s", err))
		return "", false
	}

	timer := time.NewTimer(bot.promptTimeout)
	defer timer.Stop()
	select {
	case message := <-channel:
		answer := strings.TrimSpace(message.Content)
		if strings.EqualFold(answer, abortWord) {
			if _, err := discord.ChannelMessageSend(channelID, "Event creation aborted"); err != nil {
				log.Error().Msg(fmt.Sprintf("Could not send abort notice: %s", err))
			}
			return "", false
		}
		return answer, true
	case <-timer.C:
		if _, err := discord.ChannelMessageSend(channelID, "Timed out waiting for a reply, aborting event creation"); err != nil {
			log.Error().Msg(fmt.Sprintf("Could not send timeout notice: %s", err))
		}
		return "", false
	}
}

func parseSlotLine(line string) (*event.RoleSlot, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 3 {
		return nil, fmt.Errorf("a role slot needs three parts separated by |")
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return nil, fmt.Errorf("the role slot needs a name")
	}
	limit, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || limit < 0 {
		return nil, fmt.Errorf("the limit has to be a number, 0 or more")
	}
	var restricted bool
	switch strings.ToLower(strings.TrimSpace(parts[2])) {
	case "yes", "y":
		restricted = true
	case "no", "n":
		restricted = false
	default:
		return nil, fmt.Errorf("restricted has to be yes or no")
	}
	return &event.RoleSlot{Name: name, Limit: limit, Restricted: restricted, Users: []string{}}, nil
}
