package packet

import (
	"bytes"
	"testing"
)

func collect(s *StreamParser, data []byte) []Packet {
	var out []Packet
	s.Feed(data, func(p Packet) { out = append(out, p) })
	return out
}

func TestStreamParser(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []Packet
	}{
		{
			name: "note on and off",
			in:   []byte{0x90, 0x45, 0x7F, 0x80, 0x45, 0x00},
			want: []Packet{{0x29, 0x90, 0x45, 0x7F}, {0x28, 0x80, 0x45, 0x00}},
		},
		{
			name: "running status",
			in:   []byte{0x90, 0x40, 0x7F, 0x41, 0x7F, 0x42, 0x00},
			want: []Packet{
				{0x29, 0x90, 0x40, 0x7F},
				{0x29, 0x90, 0x41, 0x7F},
				{0x29, 0x90, 0x42, 0x00},
			},
		},
		{
			name: "program change running status",
			in:   []byte{0xC3, 0x01, 0x02},
			want: []Packet{{0x2C, 0xC3, 0x01, 0x00}, {0x2C, 0xC3, 0x02, 0x00}},
		},
		{
			name: "realtime inside note",
			in:   []byte{0x90, 0x40, 0xF8, 0x7F},
			want: []Packet{{0x2F, 0xF8, 0x00, 0x00}, {0x29, 0x90, 0x40, 0x7F}},
		},
		{
			name: "system common clears running status",
			in:   []byte{0x90, 0x40, 0x7F, 0xF3, 0x05, 0x41, 0x7F},
			want: []Packet{{0x29, 0x90, 0x40, 0x7F}, {0x22, 0xF3, 0x05, 0x00}},
		},
		{
			name: "sysex split into groups",
			in:   []byte{0xF0, 0x7E, 0x7F, 0x06, 0x01, 0xF7},
			want: []Packet{{0x24, 0xF0, 0x7E, 0x7F}, {0x26, 0x06, 0x01, 0xF7}},
		},
		{
			name: "sysex ends on group boundary",
			in:   []byte{0xF0, 0x01, 0x02, 0xF7},
			want: []Packet{{0x24, 0xF0, 0x01, 0x02}, {0x25, 0xF7, 0x00, 0x00}},
		},
		{
			name: "empty sysex",
			in:   []byte{0xF0, 0xF7},
			want: []Packet{{0x26, 0xF0, 0xF7, 0x00}},
		},
		{
			name: "realtime inside sysex",
			in:   []byte{0xF0, 0x01, 0xFE, 0x02, 0xF7},
			want: []Packet{{0x2F, 0xFE, 0x00, 0x00}, {0x24, 0xF0, 0x01, 0x02}, {0x25, 0xF7, 0x00, 0x00}},
		},
		{
			name: "status terminates sysex",
			in:   []byte{0xF0, 0x01, 0x90, 0x40, 0x7F},
			want: []Packet{{0x27, 0xF0, 0x01, 0xF7}, {0x29, 0x90, 0x40, 0x7F}},
		},
		{
			name: "stray data and end marker",
			in:   []byte{0x01, 0xF7, 0x02, 0xF6},
			want: []Packet{{0x25, 0xF6, 0x00, 0x00}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(NewStreamParser(2), tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d packets %v, want %d %v", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("packet %d = % x, want % x", i, got[i][:], tt.want[i][:])
				}
			}
		})
	}
}

func TestStreamParserSplitFeed(t *testing.T) {
	s := NewStreamParser(0)
	var got []Packet
	emit := func(p Packet) { got = append(got, p) }
	s.Feed([]byte{0xF0, 0x01}, emit)
	if !s.InSysex() {
		t.Error("InSysex() = false after 0xF0")
	}
	s.Feed([]byte{0x02, 0x03}, emit)
	s.Feed([]byte{0xF7}, emit)
	if s.InSysex() {
		t.Error("InSysex() = true after 0xF7")
	}

	want := []Packet{{0x04, 0xF0, 0x01, 0x02}, {0x06, 0x03, 0xF7, 0x00}}
	if len(got) != len(want) {
		t.Fatalf("got %d packets, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("packet %d = % x, want % x", i, got[i][:], want[i][:])
		}
	}

	s.Feed([]byte{0x90, 0x40}, emit)
	s.Reset()
	if n := len(collect(s, []byte{0x7F})); n != 0 {
		t.Errorf("data byte after Reset emitted %d packets, want 0", n)
	}
}

func TestFlatten(t *testing.T) {
	var buf []byte
	for _, p := range []Packet{
		{0x04, 0xF0, 0x01, 0x02},
		{0x04, 0x03, 0x04, 0x05},
		{0x0F, 0xF8, 0x00, 0x00},
		{0x06, 0x06, 0xF7, 0x00},
		{0x00, 0x11, 0x22, 0x33},
		{0x19, 0x90, 0x40, 0x7F},
		{0x05, 0xF6, 0x00, 0x00},
		{0x14, 0xF0, 0x01, 0x02},
	} {
		buf = append(buf, p[:]...)
	}

	type run struct {
		cable uint8
		raw   []byte
	}
	var got []run
	err := Flatten(buf, func(cable uint8, raw []byte) {
		got = append(got, run{cable, append([]byte(nil), raw...)})
	})
	if err != nil {
		t.Fatalf("Flatten() error = %v", err)
	}

	want := []run{
		{0, []byte{0xF0, 0x01, 0x02, 0x03, 0x04, 0x05}},
		{0, []byte{0xF8}},
		{0, []byte{0x06, 0xF7}},
		{1, []byte{0x90, 0x40, 0x7F}},
		{0, []byte{0xF6}},
		{1, []byte{0xF0, 0x01, 0x02}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d runs %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i].cable != want[i].cable || !bytes.Equal(got[i].raw, want[i].raw) {
			t.Errorf("run %d = %d:% x, want %d:% x", i, got[i].cable, got[i].raw, want[i].cable, want[i].raw)
		}
	}
}

func TestMessageLength(t *testing.T) {
	tests := []struct {
		status byte
		want   int
	}{
		{0x80, 3}, {0x9F, 3}, {0xA0, 3}, {0xB0, 3}, {0xC0, 2}, {0xD0, 2}, {0xE0, 3},
		{0xF0, 0}, {0xF1, 2}, {0xF2, 3}, {0xF3, 2}, {0xF4, 0}, {0xF6, 1}, {0xF7, 0},
		{0xF8, 1}, {0xFE, 1},
	}
	for _, tt := range tests {
		if got := MessageLength(tt.status); got != tt.want {
			t.Errorf("MessageLength(%#02x) = %d, want %d", tt.status, got, tt.want)
		}
	}
}
