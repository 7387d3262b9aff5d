package bot

import (
	"testing"
)

func TestParseRejectsForeignMessages(t *testing.T) {
	result := Parse("hello there", "muster")
	if result.parseid != PARSEID_NO_BOT_PREFIX {
		t.Fatalf("parseid = %d, want PARSEID_NO_BOT_PREFIX", result.parseid)
	}
}

func TestParseNoCommand(t *testing.T) {
	result := Parse("muster   ", "muster")
	if result.parseid != PARSEID_NO_COMMAND {
		t.Fatalf("parseid = %d, want PARSEID_NO_COMMAND", result.parseid)
	}
}

func TestParseUnknownCommand(t *testing.T) {
	result := Parse("muster frobnicate", "muster")
	if result.parseid != PARSEID_COMMAND_NOT_RECOGNISED {
		t.Fatalf("parseid = %d, want PARSEID_COMMAND_NOT_RECOGNISED", result.parseid)
	}
	if result.errorMessage == "" {
		t.Fatal("unrecognised command carries no error message")
	}
}

func TestParseBareCommands(t *testing.T) {
	cases := []struct {
		input   string
		command int
	}{
		{"muster create", COMMAND_CREATE},
		{"muster list", COMMAND_LIST},
		{"muster deleteall", COMMAND_DELETE_ALL},
		{"muster sweep", COMMAND_SWEEP},
		{"muster time", COMMAND_TIME},
		{"muster help", COMMAND_HELP},
	}
	for _, c := range cases {
		result := Parse(c.input, "muster")
		if result.parseid != PARSEID_OK {
			t.Fatalf("Parse(%q) parseid = %d, want OK", c.input, result.parseid)
		}
		if result.command != c.command {
			t.Fatalf("Parse(%q) command = %d, want %d", c.input, result.command, c.command)
		}
	}
}

func TestParseDelete(t *testing.T) {
	result := Parse("muster delete Raid_2026-09-12_18-30", "muster")
	if result.parseid != PARSEID_OK || result.command != COMMAND_DELETE {
		t.Fatalf("result = %+v", result)
	}
	if result.arguments.(string) != "Raid_2026-09-12_18-30" {
		t.Fatalf("arguments = %v", result.arguments)
	}

	result = Parse("muster delete", "muster")
	if result.parseid != PARSEID_NO_INPUT {
		t.Fatalf("parseid = %d, want PARSEID_NO_INPUT", result.parseid)
	}
}

func TestParseEdit(t *testing.T) {
	result := Parse("muster edit Raid_2026-09-12_18-30 time 2026-09-13 19:00", "muster")
	if result.parseid != PARSEID_OK || result.command != COMMAND_EDIT {
		t.Fatalf("result = %+v", result)
	}
	args := result.arguments.(EditArgs)
	if args.EventID != "Raid_2026-09-12_18-30" || args.Field != "time" || args.Value != "2026-09-13 19:00" {
		t.Fatalf("args = %+v", args)
	}

	result = Parse("muster edit Raid_2026-09-12_18-30 title Renamed", "muster")
	if result.parseid != PARSEID_BAD_ARGUMENT {
		t.Fatalf("parseid = %d, want PARSEID_BAD_ARGUMENT for an unknown field", result.parseid)
	}

	result = Parse("muster edit Raid_2026-09-12_18-30 location", "muster")
	if result.parseid != PARSEID_NO_INPUT {
		t.Fatalf("parseid = %d, want PARSEID_NO_INPUT without a value", result.parseid)
	}
}

func TestParseCleanup(t *testing.T) {
	result := Parse("muster cleanup Raid_2026-09-12_18-30", "muster")
	if result.parseid != PARSEID_OK || result.command != COMMAND_CLEANUP {
		t.Fatalf("result = %+v", result)
	}
	if result.arguments.(string) != "Raid_2026-09-12_18-30" {
		t.Fatalf("arguments = %v", result.arguments)
	}

	result = Parse("muster cleanup", "muster")
	if result.parseid != PARSEID_NO_INPUT {
		t.Fatalf("parseid = %d, want PARSEID_NO_INPUT", result.parseid)
	}
}

func TestParseHistory(t *testing.T) {
	result := Parse("muster history Raid_2026-09-12_18-30", "muster")
	if result.parseid != PARSEID_OK || result.command != COMMAND_HISTORY {
		t.Fatalf("result = %+v", result)
	}
	if result.arguments.(string) != "Raid_2026-09-12_18-30" {
		t.Fatalf("arguments = %v", result.arguments)
	}

	result = Parse("muster history", "muster")
	if result.parseid != PARSEID_NO_INPUT {
		t.Fatalf("parseid = %d, want PARSEID_NO_INPUT", result.parseid)
	}
}

func TestParseForce(t *testing.T) {
	result := Parse("muster force remind Raid_2026-09-12_18-30", "muster")
	if result.parseid != PARSEID_OK || result.command != COMMAND_FORCE {
		t.Fatalf("result = %+v", result)
	}
	args := result.arguments.(ForceArgs)
	if args.Transition != "remind" || args.EventID != "Raid_2026-09-12_18-30" {
		t.Fatalf("args = %+v", args)
	}

	result = Parse("muster force explode Raid", "muster")
	if result.parseid != PARSEID_BAD_ARGUMENT {
		t.Fatalf("parseid = %d, want PARSEID_BAD_ARGUMENT", result.parseid)
	}

	result = Parse("muster force post", "muster")
	if result.parseid != PARSEID_NO_INPUT {
		t.Fatalf("parseid = %d, want PARSEID_NO_INPUT", result.parseid)
	}
}

func TestParseAccelerate(t *testing.T) {
	result := Parse("muster accelerate 2", "muster")
	if result.parseid != PARSEID_OK || result.arguments.(int) != 2 {
		t.Fatalf("result = %+v", result)
	}

	result = Parse("muster accelerate off", "muster")
	if result.parseid != PARSEID_OK || result.arguments.(int) != 0 {
		t.Fatalf("result = %+v", result)
	}

	for _, bad := range []string{"muster accelerate -3", "muster accelerate fast", "muster accelerate 0"} {
		result = Parse(bad, "muster")
		if result.parseid != PARSEID_BAD_ARGUMENT {
			t.Fatalf("Parse(%q) parseid = %d, want PARSEID_BAD_ARGUMENT", bad, result.parseid)
		}
	}
}

func TestParseSimulate(t *testing.T) {
	result := Parse("muster simulate 2.5", "muster")
	if result.parseid != PARSEID_OK || result.arguments.(float64) != 2.5 {
		t.Fatalf("result = %+v", result)
	}

	result = Parse("muster simulate yesterday", "muster")
	if result.parseid != PARSEID_BAD_ARGUMENT {
		t.Fatalf("parseid = %d, want PARSEID_BAD_ARGUMENT", result.parseid)
	}
}
