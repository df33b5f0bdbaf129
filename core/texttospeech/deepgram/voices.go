package deepgram

type deepgramVoice string

const defaultVoice = VoiceAuraOrionEn

const (
	VoiceAuraAsteriaEn deepgramVoice = "aura-asteria-en"
	VoiceAuraLunaEn    deepgramVoice = "aura-luna-en"
	VoiceAuraStellaEn  deepgramVoice = "aura-stella-en"
	VoiceAuraAthenaEn  deepgramVoice = "aura-athena-en"
	VoiceAuraHeraEn    deepgramVoice = "aura-hera-en"
	VoiceAuraOrionEn   deepgramVoice = "aura-orion-en"
	VoiceAuraArcasEn   deepgramVoice = "aura-arcas-en"
	VoiceAuraPerseusEn deepgramVoice = "aura-perseus-en"
	VoiceAuraAngusEn   deepgramVoice = "aura-angus-en"
	VoiceAuraOrpheusEn deepgramVoice = "aura-orpheus-en"
	VoiceAuraHeliosEn  deepgramVoice = "aura-helios-en"
	VoiceAuraZeusEn    deepgramVoice = "aura-zeus-en"
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{
		VoiceAuraAsteriaEn,
		VoiceAuraLunaEn,
		VoiceAuraStellaEn,
		VoiceAuraAthenaEn,
		VoiceAuraHeraEn,
		VoiceAuraOrionEn,
		VoiceAuraArcasEn,
		VoiceAuraPerseusEn,
		VoiceAuraAngusEn,
		VoiceAuraOrpheusEn,
		VoiceAuraHeliosEn,
		VoiceAuraZeusEn,
	}
}

// ParseVoice returns the voice with the given name, or the default voice for
// an empty name.
func ParseVoice(name string) (deepgramVoice, bool) {
	if name == "" {
		return defaultVoice, true
	}
	for _, voice := range GetAvailableVoices() {
		if string(voice) == name {
			return voice, true
		}
	}
	return "", false
}
