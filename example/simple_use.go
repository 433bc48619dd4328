package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/leandrodaf/usbmidi/internal/logger"
	"github.com/leandrodaf/usbmidi/internal/midi/loopback"
	"github.com/leandrodaf/usbmidi/sdk/contracts"
	"github.com/leandrodaf/usbmidi/sdk/usbmidi"
)

const (
	sysexLength = 170000
	// echoMaxLength caps how much of a received sysex is sent back.
	echoMaxLength = 1024
)

func main() {
	echo := flag.Bool("echo", false, "send the first bytes of the received sysex back to the sender")
	flag.Parse()

	log := logger.NewZapLogger()
	defer log.Sync()

	host, gadget := loopback.Pair(loopback.WithAsync())

	received := make(chan struct{}, 1)
	var captured []byte
	receiver, err := usbmidi.NewUSBMIDI(host,
		contracts.WithLogger(log),
		contracts.WithListener(contracts.ListenerFuncs{
			Message: func(cable uint8, msg []byte) {
				fmt.Printf("cable %d: % x\n", cable, msg)
			},
			SysexStart: func(cable uint8) {
				fmt.Printf("cable %d: sysex start\n", cable)
				captured = captured[:0]
			},
			SysexData: func(cable uint8, data []byte) {
				captured = capture(captured, data, echoMaxLength)
			},
			SysexEnd: func(cable uint8, total int, elapsed time.Duration) {
				ms := elapsed.Milliseconds()
				rate := 0.0
				if elapsed > 0 {
					rate = float64(total) / elapsed.Seconds()
				}
				fmt.Printf("Received %d bytes in %d ms (%.0f bytes/s)\n", total, ms, rate)
				received <- struct{}{}
			},
		}),
	)
	if err != nil {
		log.Error("Failed to create receiving device", log.Field().Error("error", err))
		return
	}
	defer receiver.Close()

	sent := make(chan contracts.SysexReport, 1)
	echoed := make(chan int, 1)
	sender, err := usbmidi.NewUSBMIDI(gadget,
		contracts.WithLogger(log),
		contracts.WithListener(contracts.ListenerFuncs{
			SysexSent: func(r contracts.SysexReport) { sent <- r },
			SysexEnd:  func(cable uint8, total int, elapsed time.Duration) { echoed <- total },
		}),
	)
	if err != nil {
		log.Error("Failed to create sending device", log.Field().Error("error", err))
		return
	}
	defer sender.Close()

	host.Connect()

	payload := make([]byte, sysexLength)
	for i := range payload {
		payload[i] = byte(i % 128)
	}
	if err := sender.TransmitSysexBytes(0, payload); err != nil {
		log.Error("Failed to start sysex transmit", log.Field().Error("error", err))
		return
	}

	report := <-sent
	if report.Err != nil {
		log.Error("Sysex transmit failed", log.Field().Error("error", report.Err))
		return
	}
	fmt.Printf("Sent %d bytes in %d ms (%.0f bytes/s)\n",
		report.Bytes, report.Elapsed.Milliseconds(), report.BytesPerSecond())
	<-received

	if *echo {
		if err := receiver.TransmitSysexBytes(0, captured); err != nil {
			log.Error("Failed to echo sysex", log.Field().Error("error", err))
			return
		}
		fmt.Printf("Echo received %d bytes\n", <-echoed)
	}

	// Note A4 on and off, as a periodic note generator would.
	for _, msg := range [][]byte{{0x90, 0x45, 0x7F}, {0x80, 0x45, 0x00}} {
		if err := sender.TransmitFixed(0, msg); err != nil {
			log.Error("Failed to send note", log.Field().Error("error", err))
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	stats := sender.Stats()
	fmt.Printf("Packets sent: %d, sysex sessions: %d\n", stats.PacketsSent, stats.SysexSent)
}

// capture appends data to dst, keeping at most limit bytes in total.
func capture(dst, data []byte, limit int) []byte {
	if room := limit - len(dst); room > 0 {
		dst = append(dst, data[:min(room, len(data))]...)
	}
	return dst
}
