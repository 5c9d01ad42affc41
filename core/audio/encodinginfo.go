package audio

const (
	// CaptureSampleRate is the rate the microphone is opened at. It matches
	// the speech endpoint's expected input rate.
	CaptureSampleRate = 24000
	// ModelSampleRate is the rate the speech endpoint synthesizes audio at.
	ModelSampleRate = 24000
	// RenderSampleRate is the rate the avatar-rendering endpoint expects.
	RenderSampleRate = 16000

	// CaptureFrameSamples is the fixed microphone frame size (~85ms at 24kHz).
	CaptureFrameSamples = 2048

	DefaultFormat = "linear16"
)

func GetCaptureEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: CaptureSampleRate, Format: encodingFormat(DefaultFormat)}
}

func GetRenderEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: RenderSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
