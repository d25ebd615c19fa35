package droidmedia

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the file form of a recording setup.
//
//	backend: native
//	platform: "7.1"
//	log_level: debug
//	encoder:
//	  codec: h264
//	  width: 1280
//	  height: 720
//	  fps: 30
//	  bitrate: 4000000
//	rtp:
//	  address: 127.0.0.1:5004
//	rtmp:
//	  url: rtmp://127.0.0.1/live/cam0
type Config struct {
	Backend   string          `yaml:"backend"`
	Platform  PlatformVersion `yaml:"platform"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat LogFormat       `yaml:"log_format"`
	Encoder   EncoderSection  `yaml:"encoder"`
	RTP       RTPSection      `yaml:"rtp"`
	RTMP      RTMPSection     `yaml:"rtmp"`
}

// EncoderSection mirrors EncoderConfig in file form.
type EncoderSection struct {
	Codec            string `yaml:"codec"`
	Width            int    `yaml:"width"`
	Height           int    `yaml:"height"`
	FPS              int    `yaml:"fps"`
	Bitrate          int    `yaml:"bitrate"`
	KeyframeInterval int    `yaml:"keyframe_interval"`
	Stride           int    `yaml:"stride"`
	SliceHeight      int    `yaml:"slice_height"`
	ColorFormat      int32  `yaml:"color_format"`
	MetaDataInBuffer bool   `yaml:"meta_data_in_buffers"`
}

// RTPSection configures optional RTP output.
type RTPSection struct {
	Address     string `yaml:"address"`
	PayloadType uint8  `yaml:"payload_type"`
	MTU         int    `yaml:"mtu"`
}

// RTMPSection configures optional RTMP publishing. Only H.264 is sent.
type RTMPSection struct {
	URL string `yaml:"url"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	enc := DefaultEncoderConfig(VideoCodecH264, 1280, 720)
	return Config{
		Backend:   BackendNative,
		Platform:  DefaultPlatformVersion,
		LogLevel:  "info",
		LogFormat: LogFormatText,
		Encoder: EncoderSection{
			Codec:            "h264",
			Width:            enc.Width,
			Height:           enc.Height,
			FPS:              enc.FPS,
			Bitrate:          enc.BitrateBps,
			KeyframeInterval: enc.KeyframeInterval,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	enc, err := cfg.EncoderConfig()
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.RTMP.URL != "" {
		if enc.Codec != VideoCodecH264 {
			return cfg, fmt.Errorf("config %s: rtmp output needs h264, not %s", path, enc.Codec)
		}
		if _, _, _, err := ParseRTMPURL(cfg.RTMP.URL); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// EncoderConfig converts the encoder section.
func (c Config) EncoderConfig() (EncoderConfig, error) {
	codec, err := ParseVideoCodec(c.Encoder.Codec)
	if err != nil {
		return EncoderConfig{}, err
	}
	enc := EncoderConfig{
		Codec:                       codec,
		Width:                       c.Encoder.Width,
		Height:                      c.Encoder.Height,
		FPS:                         c.Encoder.FPS,
		BitrateBps:                  c.Encoder.Bitrate,
		KeyframeInterval:            c.Encoder.KeyframeInterval,
		Stride:                      c.Encoder.Stride,
		SliceHeight:                 c.Encoder.SliceHeight,
		ColorFormat:                 ColorFormat(c.Encoder.ColorFormat),
		StoreMetaDataInVideoBuffers: c.Encoder.MetaDataInBuffer,
	}
	return enc, enc.Validate()
}

// RecorderOptions returns the options implied by the file.
func (c Config) RecorderOptions() []RecorderOption {
	opts := []RecorderOption{WithPlatformVersion(c.Platform)}
	if c.Backend != "" {
		opts = append(opts, WithBackend(c.Backend))
	}
	return opts
}
