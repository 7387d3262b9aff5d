package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	COMMAND_CREATE     = iota
	COMMAND_LIST       = iota
	COMMAND_EDIT       = iota
	COMMAND_DELETE     = iota
	COMMAND_DELETE_ALL = iota
	COMMAND_CLEANUP    = iota
	COMMAND_SWEEP      = iota
	COMMAND_FORCE      = iota
	COMMAND_ACCELERATE = iota
	COMMAND_SIMULATE   = iota
	COMMAND_TIME       = iota
	COMMAND_HISTORY    = iota
	COMMAND_HELP       = iota
)

const (
	PARSEID_OK                     = iota
	PARSEID_NO_BOT_PREFIX          = iota
	PARSEID_NO_COMMAND             = iota
	PARSEID_COMMAND_NOT_RECOGNISED = iota
	PARSEID_NO_INPUT               = iota
	PARSEID_BAD_ARGUMENT           = iota
)

var errorMessages map[int]string = map[int]string{
	PARSEID_NO_COMMAND:             "No command provided",
	PARSEID_COMMAND_NOT_RECOGNISED: "Command `%s` not recognised",
	PARSEID_NO_INPUT:               "Command `%s` requires an argument",
	PARSEID_BAD_ARGUMENT:           "Argument `%s` is not valid here",
}

// ForceArgs names a lifecycle transition to run for one event
type ForceArgs struct {
	Transition string // post, remind or elapse
	EventID    string
}

// EditArgs names one event field to overwrite
type EditArgs struct {
	EventID string
	Field   string // description, location or time
	Value   string
}

type ParseResult struct {
	command      int
	parseid      int
	errorMessage string
	arguments    interface{}
}

// Parse matches an incoming message against the operator command set
func Parse(message string, prefix string) ParseResult {

	noInput := func(command int, commandString string) ParseResult {
		parseid := PARSEID_NO_INPUT
		return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], commandString)}
	}
	badArgument := func(command int, argument string) ParseResult {
		parseid := PARSEID_BAD_ARGUMENT
		return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], argument)}
	}

	// The message has to start with the bot prefix
	if !strings.HasPrefix(message, prefix) {
		log.Debug().Msg("Reject message not intended for the bot")
		return ParseResult{parseid: PARSEID_NO_BOT_PREFIX}
	}

	// Get the command if valid
	words := strings.Fields(strings.TrimSpace(message[len(prefix):]))
	if len(words) == 0 {
		parseid := PARSEID_NO_COMMAND
		return ParseResult{parseid: parseid, errorMessage: errorMessages[parseid]}
	}
	commandString := words[0]
	words = words[1:]

	// Match the command

	switch commandString {
	case "create":
		// muster create
		return ParseResult{command: COMMAND_CREATE, parseid: PARSEID_OK}
	case "list":
		// muster list
		return ParseResult{command: COMMAND_LIST, parseid: PARSEID_OK}
	case "delete":
		// muster delete <event_id>
		command := COMMAND_DELETE
		if len(words) == 0 {
			return noInput(command, commandString)
		}
		return ParseResult{command: command, parseid: PARSEID_OK, arguments: strings.Join(words, " ")}
	case "edit":
		// muster edit <event_id> <description|location|time> <value>
		command := COMMAND_EDIT
		if len(words) < 3 {
			return noInput(command, commandString)
		}
		field := words[1]
		switch field {
		case "description", "location", "time":
		default:
			return badArgument(command, field)
		}
		return ParseResult{command: command, parseid: PARSEID_OK, arguments: EditArgs{EventID: words[0], Field: field, Value: strings.Join(words[2:], " ")}}
	case "cleanup":
		// muster cleanup <event_id>
		command := COMMAND_CLEANUP
		if len(words) == 0 {
			return noInput(command, commandString)
		}
		return ParseResult{command: command, parseid: PARSEID_OK, arguments: strings.Join(words, " ")}
	case "deleteall":
		// muster deleteall
		return ParseResult{command: COMMAND_DELETE_ALL, parseid: PARSEID_OK}
	case "sweep":
		// muster sweep
		return ParseResult{command: COMMAND_SWEEP, parseid: PARSEID_OK}
	case "force":
		// muster force <post|remind|elapse> <event_id>
		command := COMMAND_FORCE
		if len(words) < 2 {
			return noInput(command, commandString)
		}
		transition := words[0]
		switch transition {
		case "post", "remind", "elapse":
		default:
			return badArgument(command, transition)
		}
		return ParseResult{command: command, parseid: PARSEID_OK, arguments: ForceArgs{Transition: transition, EventID: strings.Join(words[1:], " ")}}
	case "accelerate":
		// muster accelerate <minutes_per_day|off>
		command := COMMAND_ACCELERATE
		if len(words) == 0 {
			return noInput(command, commandString)
		}
		if words[0] == "off" {
			return ParseResult{command: command, parseid: PARSEID_OK, arguments: 0}
		}
		minutesPerDay, err := strconv.Atoi(words[0])
		if err != nil || minutesPerDay <= 0 {
			return badArgument(command, words[0])
		}
		return ParseResult{command: command, parseid: PARSEID_OK, arguments: minutesPerDay}
	case "simulate":
		// muster simulate <days>
		command := COMMAND_SIMULATE
		if len(words) == 0 {
			return noInput(command, commandString)
		}
		days, err := strconv.ParseFloat(words[0], 64)
		if err != nil || days <= 0 {
			return badArgument(command, words[0])
		}
		return ParseResult{command: command, parseid: PARSEID_OK, arguments: days}
	case "history":
		// muster history <event_id>
		command := COMMAND_HISTORY
		if len(words) == 0 {
			return noInput(command, commandString)
		}
		return ParseResult{command: command, parseid: PARSEID_OK, arguments: strings.Join(words, " ")}
	case "time":
		// muster time
		return ParseResult{command: COMMAND_TIME, parseid: PARSEID_OK}
	case "help":
		// muster help
		return ParseResult{command: COMMAND_HELP, parseid: PARSEID_OK}
	default:
		parseid := PARSEID_COMMAND_NOT_RECOGNISED
		return ParseResult{parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], commandString)}
	}
}
