package gateway

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"muster/internal/event"
)

// Discord implements Gateway on top of a discordgo session
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func snowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

// translate maps discord REST errors onto the gateway taxonomy
func translate(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == 404 {
		return ErrNotFound
	}
	return err
}

func (d *Discord) PostAnnouncement(rec *event.Record) (int64, error) {
	embed := AnnouncementEmbed(rec)
	components := SignupComponents(rec)
	msg, err := d.session.ChannelMessageSendComplex(snowflake(rec.ChannelID), &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		return 0, fmt.Errorf("could not post announcement for event %s: %w", rec.ID, translate(err))
	}
	id, err := strconv.ParseInt(msg.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected message id %q for event %s", msg.ID, rec.ID)
	}
	return id, nil
}

func (d *Discord) RefreshAnnouncement(rec *event.Record) error {
	if rec.MessageID == nil {
		return nil
	}
	embed := AnnouncementEmbed(rec)
	components := SignupComponents(rec)
	messageID := snowflake(*rec.MessageID)
	channelID := snowflake(rec.ChannelID)
	embeds := []*discordgo.MessageEmbed{embed}
	_, err := d.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         messageID,
		Channel:    channelID,
		Embeds:     &embeds,
		Components: &components,
	})
	return translate(err)
}

func (d *Discord) DeleteAnnouncement(rec *event.Record) error {
	if rec.MessageID == nil {
		return nil
	}
	err := d.session.ChannelMessageDelete(snowflake(rec.ChannelID), snowflake(*rec.MessageID))
	return translate(err)
}

func (d *Discord) CreateThread(rec *event.Record, name string) (int64, int64, error) {
	if rec.MessageID == nil {
		return 0, 0, fmt.Errorf("event %s has no announcement to thread from", rec.ID)
	}
	thread, err := d.session.MessageThreadStartComplex(snowflake(rec.ChannelID), snowflake(*rec.MessageID),
		&discordgo.ThreadStart{
			Name:                name,
			AutoArchiveDuration: 1440,
		})
	if err != nil {
		return 0, 0, translate(err)
	}
	threadID, err := strconv.ParseInt(thread.ID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected thread id %q for event %s", thread.ID, rec.ID)
	}
	// For message threads the starter message shares the parent message id
	return threadID, *rec.MessageID, nil
}

func (d *Discord) SendThreadMessage(threadID int64, content string) error {
	_, err := d.session.ChannelMessageSend(snowflake(threadID), content)
	return translate(err)
}

func (d *Discord) DeleteThread(rec *event.Record) error {
	if rec.ThreadID == 0 {
		return nil
	}
	// Deleting the thread channel removes the discussion; the starter
	// message in the parent channel goes with the announcement
	if _, err := d.session.ChannelDelete(snowflake(rec.ThreadID)); err != nil {
		if translated := translate(err); !IsNotFound(translated) {
			return translated
		}
		log.Debug().Msg(fmt.Sprintf("Thread for event %s already deleted", rec.ID))
	}
	return nil
}

func (d *Discord) GrantRole(guildID int64, userID string, roleID int64, reason string) error {
	err := d.session.GuildMemberRoleAdd(snowflake(guildID), userID, snowflake(roleID))
	return translate(err)
}

func (d *Discord) RevokeRole(guildID int64, userID string, roleID int64, reason string) error {
	err := d.session.GuildMemberRoleRemove(snowflake(guildID), userID, snowflake(roleID))
	return translate(err)
}

func (d *Discord) MemberHasRole(guildID int64, userID string, roleID int64) (bool, error) {
	member, err := d.session.GuildMember(snowflake(guildID), userID)
	if err != nil {
		return false, translate(err)
	}
	want := snowflake(roleID)
	for _, role := range member.Roles {
		if role == want {
			return true, nil
		}
	}
	return false, nil
}
