package tts

// Named ElevenLabs voices available to customers. Customer profiles
// store the short name; ResolveVoice maps it to the provider voice ID.
var namedVoices = map[string]string{
	"rachel": "21m00Tcm4TlvDq8ikWAM", // warm female (default)
	"adam":   "pNInz6obpgDQGcFmaJgB", // deep male
	"josh":   "TxGEqnHWrfWFTfGW9XjX", // young male
	"bella":  "EXAVITQu4vr4xnSDxMaL", // soft female
	"elli":   "MF3mGyEYCl7XYWbV9V6O", // young female
}

// DefaultVoice is used when a profile names no voice or an unknown one.
const DefaultVoice = "rachel"

// ResolveVoice maps a short voice name to its ElevenLabs voice ID.
// Raw voice IDs pass through unchanged, so custom cloned voices work
// without registration. Unknown short names fall back to the default.
func ResolveVoice(name string) string {
	if name == "" {
		return namedVoices[DefaultVoice]
	}
	if id, ok := namedVoices[name]; ok {
		return id
	}
	// Heuristic: ElevenLabs voice IDs are 20-char opaque tokens.
	if len(name) >= 20 {
		return name
	}
	return namedVoices[DefaultVoice]
}

// VoiceNames returns the short names of the built-in voices.
func VoiceNames() []string {
	names := make([]string, 0, len(namedVoices))
	for name := range namedVoices {
		names = append(names, name)
	}
	return names
}
