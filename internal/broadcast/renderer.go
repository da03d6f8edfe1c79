package broadcast

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiscardRenderer drops every payload. The default for sessions that only
// need channel membership and chat, not actual playback.
type DiscardRenderer struct{}

func (DiscardRenderer) OpenAudio(string) (io.WriteCloser, error) {
	return nopWriteCloser{io.Discard}, nil
}

func (DiscardRenderer) OpenVideo(string) (io.WriteCloser, error) {
	return nopWriteCloser{io.Discard}, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// FileRenderer dumps raw track payloads into a directory, one file per
// track. Handy for piping into an external player or inspecting a capture.
type FileRenderer struct {
	Dir string
}

func (r FileRenderer) OpenAudio(trackID string) (io.WriteCloser, error) {
	return r.open(trackID, "opus")
}

func (r FileRenderer) OpenVideo(trackID string) (io.WriteCloser, error) {
	return r.open(trackID, "vp8")
}

func (r FileRenderer) open(trackID, ext string) (io.WriteCloser, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, err
	}
	name := filepath.Join(r.Dir, fmt.Sprintf("%s.%s", trackID, ext))
	return os.Create(name)
}
