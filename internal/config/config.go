package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress   string
	PublicBaseURL string

	TwilioAccountSID string
	TwilioAuthToken  string
	OutboundTo       string
	OutboundFrom     string
	Greeting         string

	ElevenLabsKey     string
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	STTModelID        string
	STTLanguageCode   string
	STTAudioFormat    string
	STTCommitStrategy string

	DeepgramAPIKey string
	DeepgramModel  string

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	AudioCacheTTL   time.Duration
	AudioCacheSweep time.Duration
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: %s=%q is not a valid duration, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		log.Println("Warning: PUBLIC_BASE_URL not set - outbound calls and playback redirects will not work")
	}

	twilioSID := os.Getenv("TWILIO_ACCOUNT_SID")
	twilioToken := os.Getenv("TWILIO_AUTH_TOKEN")
	if twilioSID == "" || twilioToken == "" {
		log.Println("Warning: TWILIO_ACCOUNT_SID/TWILIO_AUTH_TOKEN not set - call control will not work")
	}

	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	if elevenKey == "" {
		log.Println("Warning: ELEVENLABS_API_KEY not set - transcription and TTS will not work")
	}
	voiceID := os.Getenv("ELEVENLABS_VOICE_ID")
	if voiceID == "" {
		log.Println("Warning: ELEVENLABS_VOICE_ID not set - set a concrete voice ID from your ElevenLabs dashboard")
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - TTS fallback disabled")
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	if supabaseURL == "" || supabaseKey == "" {
		log.Println("Warning: SUPABASE_URL/SUPABASE_SERVICE_ROLE_KEY not set - audio archiving disabled")
	}

	log.Printf("config: HTTP_ADDRESS=%s", addr)
	return Config{
		HTTPAddress:   addr,
		PublicBaseURL: baseURL,

		TwilioAccountSID: twilioSID,
		TwilioAuthToken:  twilioToken,
		OutboundTo:       os.Getenv("OUTBOUND_TO_NUMBER"),
		OutboundFrom:     os.Getenv("OUTBOUND_FROM_NUMBER"),
		Greeting:         os.Getenv("CALL_GREETING"),

		ElevenLabsKey:     elevenKey,
		ElevenLabsVoiceID: voiceID,
		ElevenLabsModelID: os.Getenv("ELEVENLABS_MODEL_ID"),

		STTModelID:        os.Getenv("STT_MODEL_ID"),
		STTLanguageCode:   os.Getenv("STT_LANGUAGE_CODE"),
		STTAudioFormat:    os.Getenv("STT_AUDIO_FORMAT"),
		STTCommitStrategy: os.Getenv("STT_COMMIT_STRATEGY"),

		DeepgramAPIKey: deepgramKey,
		DeepgramModel:  os.Getenv("DEEPGRAM_TTS_MODEL"),

		SupabaseURL:    supabaseURL,
		SupabaseKey:    supabaseKey,
		SupabaseBucket: os.Getenv("SUPABASE_BUCKET"),

		AudioCacheTTL:   envDuration("AUDIO_CACHE_TTL", 10*time.Minute),
		AudioCacheSweep: envDuration("AUDIO_CACHE_SWEEP_INTERVAL", time.Minute),
	}
}
