package render

import (
	"testing"
)

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel("2,FF0000,0.1,0.9")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if ch.Index != 2 {
		t.Errorf("index = %d, want 2", ch.Index)
	}
	if !almostEqual(ch.Color[0], 1) || !almostEqual(ch.Color[1], 0) || !almostEqual(ch.Color[2], 0) {
		t.Errorf("color = %v, want [1 0 0]", ch.Color)
	}
	if !almostEqual(ch.Min, 0.1) || !almostEqual(ch.Max, 0.9) {
		t.Errorf("window = [%v, %v], want [0.1, 0.9]", ch.Min, ch.Max)
	}
	if ch.Gamma != 1 {
		t.Errorf("gamma = %v, want neutral 1", ch.Gamma)
	}
}

func TestParseChannelErrors(t *testing.T) {
	bad := []string{
		"",
		"0,FF0000,0.1",           // 3 fields
		"0,FF0000,0.1,0.9,extra", // 5 fields
		"x,FF0000,0.1,0.9",       // non-integer index
		"0,F00,0.1,0.9",          // 3-digit color
		"0,GG0000,0.1,0.9",       // non-hex color
		"0,FF0000,lo,0.9",        // non-numeric min
		"0,FF0000,0.1,hi",        // non-numeric max
	}
	for _, s := range bad {
		if _, err := ParseChannel(s); err == nil {
			t.Errorf("expected parse error for %q", s)
		}
	}
}

func TestParseChannels(t *testing.T) {
	channels, err := ParseChannels("0,FF0000,0,1/1,00FF00,0.2,0.8")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(channels))
	}
	if channels[0].Index != 0 || channels[1].Index != 1 {
		t.Errorf("indices = %d, %d; want 0, 1", channels[0].Index, channels[1].Index)
	}
	if _, err := ParseChannels(""); err == nil {
		t.Errorf("expected error for empty channel path")
	}
	if _, err := ParseChannels("0,FF0000,0,1/bogus"); err == nil {
		t.Errorf("expected error for bad descriptor in list")
	}
}

func TestParseOmeroChannels(t *testing.T) {
	channels, err := ParseOmeroChannels("1|100:60000$FF0000,-2|0:65535$00FF00,3|0:32768$0000FF")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	// Negative id means the channel is off and is dropped.
	if len(channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(channels))
	}
	// External ids are 1-based.
	if channels[0].Index != 0 {
		t.Errorf("first index = %d, want 0", channels[0].Index)
	}
	if channels[1].Index != 2 {
		t.Errorf("second index = %d, want 2", channels[1].Index)
	}
	if !almostEqual(channels[0].Min, 100.0/65535) || !almostEqual(channels[0].Max, 60000.0/65535) {
		t.Errorf("window = [%v, %v], want 16-bit normalized", channels[0].Min, channels[0].Max)
	}
	if !almostEqual(channels[1].Color[2], 1) {
		t.Errorf("third channel color = %v, want blue", channels[1].Color)
	}
}

func TestParseOmeroChannelsErrors(t *testing.T) {
	bad := []string{
		"1",                 // no settings
		"1|100:60000",       // no color
		"1|100$FF0000",      // no range separator
		"x|100:60000$FF0000",
		"1|lo:60000$FF0000",
		"1|100:hi$FF0000",
		"1|100:60000$XYZ123",
	}
	for _, s := range bad {
		if _, err := ParseOmeroChannels(s); err == nil {
			t.Errorf("expected parse error for %q", s)
		}
	}
}

func TestChannelStringRoundTrip(t *testing.T) {
	ch, err := ParseChannel("3,00FF7F,0.25,0.75")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	got := ch.String()
	if got != "3,00ff7f,0.25,0.75" {
		t.Errorf("String() = %q, want %q", got, "3,00ff7f,0.25,0.75")
	}
	if _, err := ParseChannel(got); err != nil {
		t.Errorf("round trip failed: %v", err)
	}
}
