// Package speech transcribes recorded audio through a Whisper-compatible
// HTTP API.
//
// The client is only available when an API key is configured. Whisper
// does not report a confidence, so Transcribe estimates one from the
// shape of the text.
package speech
