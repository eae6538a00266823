// Package speech turns text into spoken audio through one of three
// interchangeable backends: the OpenAI speech endpoint, the ElevenLabs
// speech endpoint, or the operating system's own synthesis engine.
//
// A Dispatcher owns the configuration, routes each Speak call to the
// active provider, and falls back to the platform engine when a remote
// provider fails, so callers get sound whenever any backend can make
// it. Lifecycle callbacks fire at most once per request no matter
// which backend ends up speaking.
package speech
