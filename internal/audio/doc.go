// Package audio plays encoded synthesis output through the default
// audio device: payloads are staged to disk, decoded to PCM with
// ffmpeg, and streamed via oto/v3. Each clip gets a Playback handle
// for stopping it and observing when it settles.
package audio
