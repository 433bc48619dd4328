package packet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/leandrodaf/usbmidi/sdk/contracts"
)

func TestCINLength(t *testing.T) {
	want := [16]int{0, 0, 2, 3, 3, 1, 2, 3, 3, 3, 3, 3, 2, 2, 3, 1}
	payloads := [][3]byte{
		{0x00, 0x00, 0x00},
		{0xF0, 0xF7, 0xFF},
		{0x7F, 0x7F, 0x7F},
		{0x90, 0x45, 0x7F},
	}

	for cin := 0; cin < 16; cin++ {
		for cable := 0; cable < contracts.NumCables; cable++ {
			for _, payload := range payloads {
				frame := []byte{byte(cable<<4 | cin), payload[0], payload[1], payload[2]}
				p, err := Decode(frame)
				if err != nil {
					t.Fatalf("Decode(% x) error = %v", frame, err)
				}
				if p.Len() != want[cin] {
					t.Errorf("Decode(% x).Len() = %d, want %d", frame, p.Len(), want[cin])
				}
				if int(p.CIN()) != cin {
					t.Errorf("Decode(% x).CIN() = %d, want %d", frame, p.CIN(), cin)
				}
				if int(p.Cable()) != cable {
					t.Errorf("Decode(% x).Cable() = %d, want %d", frame, p.Cable(), cable)
				}
			}
		}
	}
}

func TestReservedCIN(t *testing.T) {
	for _, cin := range []CIN{CINMisc, CINCableEvent} {
		p, err := Decode([]byte{0x30 | byte(cin), 0x90, 0x40, 0x40})
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !p.CIN().Reserved() {
			t.Errorf("%s should be reserved", cin)
		}
		if len(p.Bytes()) != 0 {
			t.Errorf("%s Bytes() = % x, want empty", cin, p.Bytes())
		}
	}
}

func TestDecodeShortFrame(t *testing.T) {
	for _, frame := range [][]byte{nil, {0x09}, {0x09, 0x90, 0x40}} {
		if _, err := Decode(frame); !errors.Is(err, contracts.ErrShortFrame) {
			t.Errorf("Decode(% x) error = %v, want ErrShortFrame", frame, err)
		}
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		cable uint8
		msg   []byte
		want  Packet
	}{
		{"note on", 0, []byte{0x90, 0x45, 0x7F}, Packet{0x09, 0x90, 0x45, 0x7F}},
		{"note off cable 5", 5, []byte{0x83, 0x3C, 0x00}, Packet{0x58, 0x83, 0x3C, 0x00}},
		{"poly pressure", 1, []byte{0xA0, 0x3C, 0x10}, Packet{0x1A, 0xA0, 0x3C, 0x10}},
		{"control change", 15, []byte{0xB2, 0x07, 0x64}, Packet{0xFB, 0xB2, 0x07, 0x64}},
		{"program change", 2, []byte{0xC1, 0x05}, Packet{0x2C, 0xC1, 0x05, 0x00}},
		{"channel pressure", 0, []byte{0xD0, 0x40}, Packet{0x0D, 0xD0, 0x40, 0x00}},
		{"pitch bend", 0, []byte{0xE0, 0x00, 0x40}, Packet{0x0E, 0xE0, 0x00, 0x40}},
		{"time code", 0, []byte{0xF1, 0x12}, Packet{0x02, 0xF1, 0x12, 0x00}},
		{"song position", 0, []byte{0xF2, 0x01, 0x02}, Packet{0x03, 0xF2, 0x01, 0x02}},
		{"song select", 0, []byte{0xF3, 0x04}, Packet{0x02, 0xF3, 0x04, 0x00}},
		{"tune request", 0, []byte{0xF6}, Packet{0x05, 0xF6, 0x00, 0x00}},
		{"timing clock", 3, []byte{0xF8}, Packet{0x3F, 0xF8, 0x00, 0x00}},
		{"active sensing", 0, []byte{0xFE}, Packet{0x0F, 0xFE, 0x00, 0x00}},
		{"sysex start", 0, []byte{0xF0, 0x7E, 0x7F}, Packet{0x04, 0xF0, 0x7E, 0x7F}},
		{"sysex continue", 0, []byte{0x01, 0x02, 0x03}, Packet{0x04, 0x01, 0x02, 0x03}},
		{"sysex end 1", 0, []byte{0xF7}, Packet{0x05, 0xF7, 0x00, 0x00}},
		{"sysex end 2", 0, []byte{0x01, 0xF7}, Packet{0x06, 0x01, 0xF7, 0x00}},
		{"sysex end 3", 0, []byte{0x01, 0x02, 0xF7}, Packet{0x07, 0x01, 0x02, 0xF7}},
		{"empty sysex", 0, []byte{0xF0, 0xF7}, Packet{0x06, 0xF0, 0xF7, 0x00}},
		{"one byte sysex", 4, []byte{0xF0, 0x42, 0xF7}, Packet{0x47, 0xF0, 0x42, 0xF7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.cable, tt.msg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Encode() = % x, want % x", got[:], tt.want[:])
			}
		})
	}
}

func TestEncodeInvalid(t *testing.T) {
	tests := []struct {
		name  string
		cable uint8
		msg   []byte
		want  error
	}{
		{"empty", 0, nil, contracts.ErrInvalidMessage},
		{"too long", 0, []byte{0x90, 0x40, 0x40, 0x40}, contracts.ErrInvalidMessage},
		{"undefined F4", 0, []byte{0xF4}, contracts.ErrInvalidMessage},
		{"undefined F5", 0, []byte{0xF5}, contracts.ErrInvalidMessage},
		{"short note on", 0, []byte{0x90, 0x40}, contracts.ErrInvalidMessage},
		{"long program change", 0, []byte{0xC0, 0x01, 0x02}, contracts.ErrInvalidMessage},
		{"short sysex start", 0, []byte{0xF0, 0x01}, contracts.ErrInvalidMessage},
		{"lone data byte", 0, []byte{0x40}, contracts.ErrInvalidMessage},
		{"status in data", 0, []byte{0x90, 0x80, 0x40}, contracts.ErrInvalidMessage},
		{"status before end", 0, []byte{0x90, 0x40, 0xF7}, contracts.ErrInvalidMessage},
		{"bad cable", 16, []byte{0xF8}, contracts.ErrInvalidCable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Encode(tt.cable, tt.msg); !errors.Is(err, tt.want) {
				t.Errorf("Encode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	var messages [][]byte
	for status := 0x80; status < 0xF0; status += 0x10 {
		for ch := 0; ch < 16; ch += 5 {
			s := byte(status | ch)
			if s>>4 == 0xC || s>>4 == 0xD {
				messages = append(messages, []byte{s, 0x7F})
			} else {
				messages = append(messages, []byte{s, 0x00, 0x7F})
			}
		}
	}
	messages = append(messages,
		[]byte{0xF1, 0x33}, []byte{0xF2, 0x10, 0x20}, []byte{0xF3, 0x01}, []byte{0xF6},
		[]byte{0xF8}, []byte{0xFA}, []byte{0xFB}, []byte{0xFC}, []byte{0xFF},
		[]byte{0xF0, 0x01, 0x02}, []byte{0x03, 0x04, 0x05},
		[]byte{0xF7}, []byte{0x01, 0xF7}, []byte{0x01, 0x02, 0xF7}, []byte{0xF0, 0xF7},
	)

	for cable := uint8(0); cable < contracts.NumCables; cable++ {
		for _, msg := range messages {
			p, err := Encode(cable, msg)
			if err != nil {
				t.Fatalf("Encode(%d, % x) error = %v", cable, msg, err)
			}
			got, err := Decode(p[:])
			if err != nil {
				t.Fatalf("Decode(% x) error = %v", p[:], err)
			}
			if got.Cable() != cable {
				t.Errorf("cable = %d, want %d", got.Cable(), cable)
			}
			if got.Len() != len(msg) {
				t.Errorf("% x: Len() = %d, want %d", msg, got.Len(), len(msg))
			}
			if !bytes.Equal(got.Bytes(), msg) {
				t.Errorf("Bytes() = % x, want % x", got.Bytes(), msg)
			}
			for i := 1 + len(msg); i < Size; i++ {
				if p[i] != 0 {
					t.Errorf("% x: padding byte %d = %#x, want 0", msg, i, p[i])
				}
			}
		}
	}
}

func TestIsSysex(t *testing.T) {
	tests := []struct {
		p    Packet
		want bool
	}{
		{Packet{0x04, 0xF0, 0x01, 0x02}, true},
		{Packet{0x05, 0xF7, 0x00, 0x00}, true},
		{Packet{0x05, 0xF6, 0x00, 0x00}, false},
		{Packet{0x06, 0x01, 0xF7, 0x00}, true},
		{Packet{0x07, 0x01, 0x02, 0xF7}, true},
		{Packet{0x09, 0x90, 0x40, 0x40}, false},
		{Packet{0x0F, 0xF8, 0x00, 0x00}, false},
	}
	for _, tt := range tests {
		if got := tt.p.IsSysex(); got != tt.want {
			t.Errorf("IsSysex(% x) = %v, want %v", tt.p[:], got, tt.want)
		}
	}
}

func TestForEach(t *testing.T) {
	buf := []byte{
		0x09, 0x90, 0x40, 0x40,
		0x00, 0x00, 0x00, 0x00,
		0x1F, 0xF8, 0x00, 0x00,
		0x09,
	}
	var got []Packet
	err := ForEach(buf, func(p Packet) { got = append(got, p) })
	if !errors.Is(err, contracts.ErrShortFrame) {
		t.Errorf("ForEach() error = %v, want ErrShortFrame", err)
	}
	if len(got) != 3 {
		t.Fatalf("visited %d packets, want 3", len(got))
	}
	if got[2].Cable() != 1 || got[2].CIN() != CINSingleByte {
		t.Errorf("third packet = %s", got[2])
	}
}

func TestPacketString(t *testing.T) {
	p := Packet{0x19, 0x90, 0x45, 0x7F}
	want := "19 90 45 7f | cable 1 | CIN 9 | 3 MIDI bytes"
	if got := p.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
