package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thesyncim/droidmedia"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record for a fixed duration and print statistics",
	RunE:  runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringP("config", "c", "", "YAML configuration file")
	recordCmd.Flags().String("backend", "", "Backend override (native, pattern)")
	recordCmd.Flags().String("camera", "0", "Camera handle (decimal or 0x hex)")
	recordCmd.Flags().DurationP("duration", "d", 5*time.Second, "Recording duration")
	recordCmd.Flags().String("rtp", "", "Send RTP to host:port over UDP")
	recordCmd.Flags().String("rtmp", "", "Publish H.264 to rtmp://host[:port]/app/stream")
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg := droidmedia.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = droidmedia.LoadConfig(path); err != nil {
			return err
		}
	}
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		cfg.Backend = backend
	}
	if addr, _ := cmd.Flags().GetString("rtp"); addr != "" {
		cfg.RTP.Address = addr
	}
	if u, _ := cmd.Flags().GetString("rtmp"); u != "" {
		cfg.RTMP.URL = u
	}

	log, err := droidmedia.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cameraStr, _ := cmd.Flags().GetString("camera")
	camera, err := strconv.ParseUint(cameraStr, 0, 64)
	if err != nil {
		return fmt.Errorf("camera handle %q: %w", cameraStr, err)
	}

	enc, err := cfg.EncoderConfig()
	if err != nil {
		return err
	}

	opts := append(cfg.RecorderOptions(), droidmedia.WithLogger(log))
	rec, err := droidmedia.NewRecorder(droidmedia.CameraHandle(camera), &enc, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			log.WithError(err).Warn("close recorder")
		}
	}()

	var outputs []droidmedia.DataCallbacks

	var sink *droidmedia.RTPSink
	if cfg.RTP.Address != "" {
		conn, err := net.Dial("udp", cfg.RTP.Address)
		if err != nil {
			return fmt.Errorf("rtp output: %w", err)
		}
		defer conn.Close()

		sink, err = droidmedia.NewRTPSink(droidmedia.RTPSinkConfig{
			Codec:       enc.Codec,
			Writer:      droidmedia.NewStreamRTPWriter(conn),
			PayloadType: cfg.RTP.PayloadType,
			MTU:         cfg.RTP.MTU,
			Logger:      log,
		})
		if err != nil {
			return err
		}
		outputs = append(outputs, sink.Callbacks())
	}

	var rtmpSink *droidmedia.RTMPSink
	if cfg.RTMP.URL != "" {
		if enc.Codec != droidmedia.VideoCodecH264 {
			return fmt.Errorf("rtmp output needs h264, not %s", enc.Codec)
		}
		pub, err := droidmedia.DialRTMP(cfg.RTMP.URL, log)
		if err != nil {
			return fmt.Errorf("rtmp output: %w", err)
		}
		defer pub.Close()

		rtmpSink = droidmedia.NewRTMPSink(pub, log)
		outputs = append(outputs, rtmpSink.Callbacks())
	}

	if len(outputs) > 0 {
		rec.SetDataCallbacks(droidmedia.FanOut(outputs...), nil)
	}

	duration, _ := cmd.Flags().GetDuration("duration")
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, duration)
	defer cancelTimeout()

	log.WithFields(logrus.Fields{
		"backend":      cfg.Backend,
		"codec":        enc.Codec,
		"size":         fmt.Sprintf("%dx%d", enc.Width, enc.Height),
		"fps":          enc.FPS,
		"color_format": enc.ColorFormat,
	}).Info("recording")

	if err := rec.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	rec.Stop()

	out := cmd.OutOrStdout()
	st := rec.Stats()
	fmt.Fprintf(out, "buffers:        %d\n", st.BuffersDelivered)
	fmt.Fprintf(out, "bytes:          %d\n", st.BytesDelivered)
	fmt.Fprintf(out, "sync frames:    %d\n", st.SyncFrames)
	fmt.Fprintf(out, "codec config:   %d\n", st.CodecConfigBuffers)
	fmt.Fprintf(out, "no timestamp:   %d\n", st.MissingTimestamps)
	if sink != nil {
		rs := sink.Stats()
		fmt.Fprintf(out, "rtp packets:    %d (%d bytes, %d errors)\n", rs.PacketsSent, rs.BytesSent, rs.WriteErrors)
	}
	if rtmpSink != nil {
		ms := rtmpSink.Stats()
		fmt.Fprintf(out, "rtmp tags:      %d (%d bytes, %d dropped, %d errors)\n",
			ms.TagsSent, ms.BytesSent, ms.DroppedNoHeader+ms.DroppedMalformed, ms.WriteErrors)
	}
	if err := rec.Err(); err != nil {
		return fmt.Errorf("recording ended early: %w", err)
	}
	return nil
}
