// Package whisper transcribes extracted audio with faster-whisper.
//
// The recogniser is a small Python helper embedded in the binary and run with
// the configured interpreter. It writes {words:[{word,start,end}],language}
// JSON, which is decoded into records.Transcript. Commands go through a
// media.Runner so tests can stand in for the interpreter.
package whisper
