// Command httpctl drives a USB-MIDI device over the OS MIDI bridge from an
// HTTP control API. Received traffic is streamed to websocket clients.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
	"github.com/leandrodaf/usbmidi/internal/logger"
	"github.com/leandrodaf/usbmidi/sdk/contracts"
	"github.com/leandrodaf/usbmidi/sdk/usbmidi"
	"golang.org/x/net/websocket"
)

// maxSysexLength bounds the generated test dumps.
const maxSysexLength = 1 << 20

type noteRequest struct {
	Cable      uint8 `json:"cable"`
	Channel    uint8 `json:"channel"`
	Note       uint8 `json:"note"`
	Velocity   uint8 `json:"velocity"`
	DurationMs int   `json:"durationMs"`
}

type sysexRequest struct {
	Cable  uint8 `json:"cable"`
	Length int   `json:"length"`
}

type statusResponse struct {
	Available bool            `json:"available"`
	SysexBusy bool            `json:"sysexBusy"`
	Stats     contracts.Stats `json:"stats"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	flag.Parse()

	log := logger.NewZapLogger()
	defer log.Sync()

	config, err := usbmidi.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration", log.Field().Error("error", err))
	}
	opts, err := config.Options()
	if err != nil {
		log.Fatal("Invalid configuration", log.Field().Error("error", err))
	}

	events := NewBroadcaster(log)
	opts = append(opts, contracts.WithLogger(log), contracts.WithListener(events))
	dev, bridge, err := usbmidi.NewBridgedUSBMIDI(opts...)
	if err != nil {
		log.Fatal("Failed to open MIDI bridge", log.Field().Error("error", err))
	}
	defer dev.Close()

	if outputs, err := bridge.ListOutputs(); err == nil {
		for _, port := range outputs {
			log.Info("Output port", log.Field().Int("index", port.Index), log.Field().String("name", port.Name))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting control server", log.Field().String("addr", config.HTTP.Addr))
	if err := run(ctx, config.HTTP.Addr, dev, events, log); err != nil {
		log.Error("Control server stopped", log.Field().Error("error", err))
	}
}

func run(ctx context.Context, addr string, dev contracts.USBMIDI, events *Broadcaster, log contracts.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard
	router, err := graceful.Default(graceful.WithAddr(addr))
	if err != nil {
		return err
	}

	router.POST("/note", func(c *gin.Context) {
		var req noteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Channel > 15 || req.Note > 127 || req.Velocity > 127 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "channel, note or velocity out of range"})
			return
		}
		if req.DurationMs <= 0 {
			req.DurationMs = 500
		}

		if err := dev.TransmitFixed(req.Cable, []byte{0x90 | req.Channel, req.Note, req.Velocity}); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		off := []byte{0x80 | req.Channel, req.Note, 0}
		time.AfterFunc(time.Duration(req.DurationMs)*time.Millisecond, func() {
			sendNoteOff(dev, log, req.Cable, off)
		})
		c.Status(http.StatusAccepted)
	})

	router.POST("/sysex", func(c *gin.Context) {
		var req sysexRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Length < 0 || req.Length > maxSysexLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "length out of range"})
			return
		}

		payload := make([]byte, req.Length)
		for i := range payload {
			payload[i] = byte(i % 128)
		}
		if err := dev.TransmitSysexBytes(req.Cable, payload); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusAccepted)
	})

	router.DELETE("/sysex", func(c *gin.Context) {
		dev.AbortSysex()
		c.Status(http.StatusNoContent)
	})

	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, statusResponse{
			Available: dev.Available(),
			SysexBusy: dev.SysexBusy(),
			Stats:     dev.Stats(),
		})
	})

	router.GET("/events", func(c *gin.Context) {
		websocket.Handler(events.Serve).ServeHTTP(c.Writer, c.Request)
	})

	return router.RunWithContext(ctx)
}

// sendNoteOff sends a delayed note off. Nobody waits on it, so a failure
// is logged.
func sendNoteOff(dev contracts.USBMIDI, log contracts.Logger, cable uint8, msg []byte) {
	if err := dev.TransmitFixed(cable, msg); err != nil {
		log.Error("Failed to send note off",
			log.Field().Uint8("cable", cable),
			log.Field().Binary("message", msg),
			log.Field().Error("error", err))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, contracts.ErrNotAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, contracts.ErrInvalidCable), errors.Is(err, contracts.ErrInvalidMessage):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
