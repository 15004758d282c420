// ABOUTME: Decoder interface definition
// ABOUTME: Common interface and codec selection for note sample decoders
package decode

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/pianoroom/pkg/audio"
)

// ErrUnsupportedCodec is returned when no decoder handles a codec or file extension
var ErrUnsupportedCodec = errors.New("unsupported codec")

// Decoder decodes a complete encoded file into a Sample
type Decoder interface {
	// Decode converts encoded audio data to a decoded sample
	Decode(data []byte) (*audio.Sample, error)

	// Close releases decoder resources
	Close() error
}

// New creates a decoder for the format's codec
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "wav":
		return NewWAV(format)
	case "mp3":
		return NewMP3(format)
	case "flac":
		return NewFLAC(format)
	case "opus":
		return NewOpus(format)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, format.Codec)
	}
}

// CodecForName maps a file name or URL to a codec by extension
func CodecForName(name string) (string, error) {
	name = strings.SplitN(name, "?", 2)[0]
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".wave":
		return "wav", nil
	case ".mp3":
		return "mp3", nil
	case ".flac":
		return "flac", nil
	case ".opus", ".ogg":
		return "opus", nil
	case ".pcm", ".raw":
		return "pcm", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedCodec, name)
	}
}

// ForName creates a decoder suited to the file name's extension.
// Raw PCM has no header, so its rate and channels come from fallback.
func ForName(name string, fallback audio.Format) (Decoder, error) {
	codec, err := CodecForName(name)
	if err != nil {
		return nil, err
	}
	format := fallback
	format.Codec = codec
	return New(format)
}
