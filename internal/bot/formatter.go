package bot

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"muster/internal/audit"
	"muster/internal/event"
)

// Use the announcement blue for bot replies as well
const color int = 0x9DB2FF

func InputNotValid(errorMessage string) []Response {

	return []Response{ResponseString{fmt.Sprintf("Input not valid: \n> %s", errorMessage)}}
}

func HelpMessage(prefix string) []Response {

	embed := discordgo.MessageEmbed{Title: "Commands available", Color: color}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s create`", prefix),
		Value:  "Create a new event through a sequence of prompts",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s list`", prefix),
		Value:  "List the events of this server",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s edit <event_id> <description|location|time> <value>`", prefix),
		Value:  "Change one field of an event and refresh its announcement",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s delete <event_id>`", prefix),
		Value:  "Delete one event, removing its announcement, thread and roles",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s cleanup <event_id>`", prefix),
		Value:  "Tear an event down now, without waiting for its deadline",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s deleteall`", prefix),
		Value:  "Delete every event of this server",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s history <event_id>`", prefix),
		Value:  "Show the recent join/leave history of an event",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s sweep`", prefix),
		Value:  "Run the lifecycle sweep now instead of waiting for the timer",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s force <post|remind|elapse> <event_id>`", prefix),
		Value:  "Force one lifecycle transition for an event",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s accelerate <minutes_per_day|off>`", prefix),
		Value:  "Speed the clock up for testing, so N real minutes simulate one day",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s simulate <days>`", prefix),
		Value:  "Jump the accelerated clock forward by whole days",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   fmt.Sprintf("`%s time`", prefix),
		Value:  "Show the current (possibly accelerated) time",
		Inline: false,
	})
	return []Response{ResponseEmbed{embed}}
}

func EventNotFound(eventID string) []Response {
	return []Response{ResponseString{fmt.Sprintf("No event with id `%s`", eventID)}}
}

func EventEdited(eventID string, field string) []Response {
	return []Response{ResponseString{fmt.Sprintf("Updated the %s of event `%s`", field, eventID)}}
}

func EventCleaned(eventID string) []Response {
	return []Response{ResponseString{fmt.Sprintf("Event `%s` has been cleaned up", eventID)}}
}

func EventDeleted(eventID string) []Response {
	return []Response{ResponseString{fmt.Sprintf("Event `%s` has been deleted", eventID)}}
}

func AllEventsDeleted(count int) []Response {
	return []Response{ResponseString{fmt.Sprintf("Deleted %d events", count)}}
}

func SweepDone() []Response {
	return []Response{ResponseString{"Sweep complete"}}
}

func TransitionForced(transition string, eventID string) []Response {
	return []Response{ResponseString{fmt.Sprintf("Forced `%s` on event `%s`", transition, eventID)}}
}

func AccelerationEnabled(minutesPerDay int) []Response {
	content := fmt.Sprintf("Time acceleration enabled! %d minutes now equal 1 day.", minutesPerDay)
	content += "\nUse `accelerate off` to go back to the real clock."
	return []Response{ResponseString{content}}
}

func AccelerationDisabled() []Response {
	return []Response{ResponseString{"Time acceleration disabled."}}
}

func AccelerationNotEnabled() []Response {
	return []Response{ResponseString{"Time acceleration is not enabled. Enable it first with `accelerate <minutes_per_day>`."}}
}

func DaysSimulated(days float64, now time.Time) []Response {
	return []Response{ResponseString{fmt.Sprintf("Simulated %.2f days passing. New time: <t:%d:F>", days, now.Unix())}}
}

func CurrentTime(now time.Time, accelerated bool) []Response {
	if accelerated {
		return []Response{ResponseString{fmt.Sprintf("⏰ Simulated time: <t:%d:F>", now.Unix())}}
	}
	return []Response{ResponseString{fmt.Sprintf("🕒 Current time: <t:%d:F>", now.Unix())}}
}

func EventHistory(eventID string, entries []audit.Entry) []Response {

	if len(entries) == 0 {
		return []Response{ResponseString{fmt.Sprintf("No attendance history for event `%s`", eventID)}}
	}

	embed := discordgo.MessageEmbed{Title: fmt.Sprintf("Attendance history: %s", eventID), Color: color}
	var lines string
	for _, entry := range entries {
		lines += fmt.Sprintf("<t:%d:f> %s %s the %s role\n", entry.Stamp.Unix(), entry.Username, entry.Action, entry.SlotName)
	}
	embed.Description = lines
	return []Response{ResponseEmbed{embed}}
}

func EventList(events map[string]*event.Record) []Response {

	if len(events) == 0 {
		return []Response{ResponseString{"No events in this server"}}
	}

	embed := discordgo.MessageEmbed{Title: "Events", Color: color}
	for _, rec := range events {
		cadence := "one-time"
		if rec.Recurring {
			cadence = "recurring"
		}
		status := "pending"
		if rec.Posted() {
			status = "announced"
		}
		value := fmt.Sprintf("%s UTC. %s, %s, %d signed up", rec.Time, cadence, status, rec.SignupCount())
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("%s (`%s`)", rec.Title, rec.ID),
			Value:  value,
			Inline: false,
		})
	}
	return []Response{ResponseEmbed{embed}}
}
