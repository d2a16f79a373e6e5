// Package config centralizes the environment-sourced configuration
// described in spec.md §6. Every key is read once at startup with a
// sane default, the same way the teacher reached for os.Getenv directly
// in webrtc/videoconference.go.
package config

import (
	"os"
	"strconv"
	"time"
)

// SpeakerMode selects how the speaker-playback subprocess is managed.
type SpeakerMode string

const (
	SpeakerPersistent SpeakerMode = "persistent"
	SpeakerPerSession SpeakerMode = "per_session"

	ServerMicAlways = "always"
	ServerMicPTT    = "ptt"
)

// Config is the full set of environment-derived server settings.
type Config struct {
	HTTPPort string

	STUNServer string

	PTTTimeout time.Duration // 0 disables the floor timeout sweeper

	MicDevice       string
	SpeakerDeviceID string
	UsePythonAudio  bool

	EnableLocalAudio bool
	EnableServerMic  bool
	ServerMicMode    string // "always" | "ptt"

	EnableRelay   bool
	RelayPort     string
	RelayBaudRate int

	DashPassword string

	VapidPublicKey  string
	VapidPrivateKey string
	VapidSubject    string

	EnableFileLog     bool
	LogRetentionDays  int
	RecordingsDir     string
	RecordingsTempDir string
	ClientNamesPath   string
	SubscriptionsDB   string
}

// Load reads every recognized key from the environment, falling back to
// defaults that keep a fresh checkout runnable without any env file.
func Load() *Config {
	c := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		STUNServer:        getEnv("STUN_SERVER", "stun:stun.l.google.com:19302"),
		PTTTimeout:        getDurationMillis("PTT_TIMEOUT", 0),
		MicDevice:         getEnv("MIC_DEVICE", ""),
		SpeakerDeviceID:   getEnv("SPEAKER_DEVICE_ID", ""),
		UsePythonAudio:    getBool("USE_PYTHON_AUDIO", false),
		EnableLocalAudio:  getBool("ENABLE_LOCAL_AUDIO", false),
		EnableServerMic:   getBool("ENABLE_SERVER_MIC", false),
		ServerMicMode:     getEnv("SERVER_MIC_MODE", ServerMicPTT),
		EnableRelay:       getBool("ENABLE_RELAY", false),
		RelayPort:         getEnv("RELAY_PORT", "/dev/ttyUSB0"),
		RelayBaudRate:     getInt("RELAY_BAUD_RATE", 9600),
		DashPassword:      getEnv("DASH_PASSWORD", ""),
		VapidPublicKey:    getEnv("VAPID_PUBLIC_KEY", ""),
		VapidPrivateKey:   getEnv("VAPID_PRIVATE_KEY", ""),
		VapidSubject:      getEnv("VAPID_SUBJECT", ""),
		EnableFileLog:     getBool("ENABLE_FILE_LOG", true),
		LogRetentionDays:  getInt("LOG_RETENTION_DAYS", 14),
		RecordingsDir:     getEnv("RECORDINGS_DIR", "recordings"),
		RecordingsTempDir: getEnv("RECORDINGS_TEMP_DIR", "recordings_temp"),
		ClientNamesPath:   getEnv("CLIENT_NAMES_PATH", "client_names.json"),
		SubscriptionsDB:   getEnv("SUBSCRIPTIONS_DB", "subscriptions.db"),
	}
	return c
}

// SpeakerMode resolves USE_PYTHON_AUDIO to the speaker lifecycle strategy
// discussed in spec.md §4.9 and the Open Questions in §9.
func (c *Config) SpeakerMode() SpeakerMode {
	if c.UsePythonAudio {
		return SpeakerPersistent
	}
	return SpeakerPerSession
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDurationMillis(key string, defMillis int) time.Duration {
	return time.Duration(getInt(key, defMillis)) * time.Millisecond
}
