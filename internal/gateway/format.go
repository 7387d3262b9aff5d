package gateway

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"muster/internal/event"
)

// Pastel palette for announcements and replies
const (
	pastelBlue  int = 0x9DB2FF
	pastelRed   int = 0xFF9D9D
	pastelGreen int = 0x9DFFB2
)

// SignupCustomIDPrefix prefixes the custom id of every signup button.
// The full form is signup:<event_id>:<slot_id>
const SignupCustomIDPrefix = "signup"

// SignupCustomID builds the interactive-control id for one slot button
func SignupCustomID(eventID, slotID string) string {
	return fmt.Sprintf("%s:%s:%s", SignupCustomIDPrefix, eventID, slotID)
}

// ParseSignupCustomID splits a button custom id back into event and slot.
// The event id may itself contain colons, so the slot is the last part
func ParseSignupCustomID(customID string) (eventID string, slotID string, ok bool) {
	if !strings.HasPrefix(customID, SignupCustomIDPrefix+":") {
		return "", "", false
	}
	rest := customID[len(SignupCustomIDPrefix)+1:]
	idx := strings.LastIndex(rest, ":")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// AnnouncementEmbed renders the event with one field per role slot
func AnnouncementEmbed(rec *event.Record) *discordgo.MessageEmbed {

	embed := &discordgo.MessageEmbed{Title: rec.Title, Color: pastelBlue}
	if rec.Description != "" {
		embed.Description = rec.Description
	}

	if start, err := rec.StartTime(); err == nil {
		// Discord renders <t:unix:F> in each reader's local timezone
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "When",
			Value:  fmt.Sprintf("<t:%d:F>", start.Unix()),
			Inline: true,
		})
	} else {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "When",
			Value:  rec.Time,
			Inline: true,
		})
	}
	if rec.Location != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Where",
			Value:  rec.Location,
			Inline: true,
		})
	}

	for _, slotID := range rec.SlotIDs() {
		slot := rec.Roles[slotID]
		name := slot.Name
		if name == "" {
			name = slotID
		}
		if slot.Limit > 0 {
			name = fmt.Sprintf("%s (%d/%d)", name, len(slot.Users), slot.Limit)
		} else {
			name = fmt.Sprintf("%s (%d)", name, len(slot.Users))
		}
		if slot.Restricted {
			name += " 🔒"
		}
		value := "-"
		if len(slot.Users) > 0 {
			mentions := make([]string, 0, len(slot.Users))
			for _, userID := range slot.Users {
				mentions = append(mentions, fmt.Sprintf("<@%s>", userID))
			}
			value = strings.Join(mentions, "\n")
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   name,
			Value:  value,
			Inline: false,
		})
	}

	if rec.Recurring {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Recurring event. Click a role to sign up"}
	} else {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Click a role to sign up"}
	}
	return embed
}

// SignupComponents builds one button per role slot, five per action row
func SignupComponents(rec *event.Record) []discordgo.MessageComponent {

	var rows []discordgo.MessageComponent
	var current []discordgo.MessageComponent

	for _, slotID := range rec.SlotIDs() {
		slot := rec.Roles[slotID]
		label := slot.Name
		if label == "" {
			label = slotID
		}
		style := discordgo.PrimaryButton
		if slot.Restricted {
			style = discordgo.SecondaryButton
		}
		full := slot.Limit > 0 && len(slot.Users) >= slot.Limit
		if full {
			style = discordgo.DangerButton
		}
		current = append(current, discordgo.Button{
			Label:    label,
			Style:    style,
			CustomID: SignupCustomID(rec.ID, slotID),
		})
		if len(current) == 5 {
			rows = append(rows, discordgo.ActionsRow{Components: current})
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: current})
	}
	return rows
}
