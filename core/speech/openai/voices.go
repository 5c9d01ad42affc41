package openai

type realtimeVoice string

const (
	VoiceAlloy   realtimeVoice = "alloy"
	VoiceAsh     realtimeVoice = "ash"
	VoiceBallad  realtimeVoice = "ballad"
	VoiceCoral   realtimeVoice = "coral"
	VoiceEcho    realtimeVoice = "echo"
	VoiceSage    realtimeVoice = "sage"
	VoiceShimmer realtimeVoice = "shimmer"
	VoiceVerse   realtimeVoice = "verse"

	defaultVoice = VoiceAlloy
)

func GetAvailableVoices() []realtimeVoice {
	return []realtimeVoice{
		VoiceAlloy,
		VoiceAsh,
		VoiceBallad,
		VoiceCoral,
		VoiceEcho,
		VoiceSage,
		VoiceShimmer,
		VoiceVerse,
	}
}
