package glrender

import (
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"

	"github.com/soypat/gshade"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// VideoConfig configures a [VideoEncoder].
type VideoConfig struct {
	Width, Height int
	FPS           int
	// Codec is the ffmpeg video codec. Defaults to libx264.
	Codec string
	// PixelFormat is the encoded pixel format. Defaults to yuv420p, which
	// requires even width and height.
	PixelFormat string
	// FFmpegPath overrides the ffmpeg executable looked up in PATH.
	FFmpegPath string
	// Stderr receives ffmpeg's diagnostic output. Nil discards it.
	Stderr io.Writer
}

// VideoEncoder pipes raw RGBA frames into an ffmpeg process.
type VideoEncoder struct {
	cfg    VideoConfig
	pw     *io.PipeWriter
	errc   chan error
	frames int
	closed bool
}

// NewVideoEncoder starts ffmpeg writing to filename. The caller must call
// Close to flush the output and release the process.
func NewVideoEncoder(filename string, cfg VideoConfig) (*VideoEncoder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid video size %dx%d", cfg.Width, cfg.Height)
	} else if cfg.FPS <= 0 {
		return nil, errors.New("frame rate must be positive")
	} else if filename == "" {
		return nil, errors.New("empty output filename")
	}
	if cfg.Codec == "" {
		cfg.Codec = "libx264"
	}
	if cfg.PixelFormat == "" {
		cfg.PixelFormat = "yuv420p"
	}
	if cfg.PixelFormat == "yuv420p" && (cfg.Width%2 != 0 || cfg.Height%2 != 0) {
		return nil, fmt.Errorf("yuv420p requires even dimensions, got %dx%d", cfg.Width, cfg.Height)
	}
	inputArgs, outputArgs := cfg.args()
	pr, pw := io.Pipe()
	cmd := ffmpeg.Input("pipe:", inputArgs).
		Output(filename, outputArgs).
		OverWriteOutput().WithInput(pr)
	if cfg.Stderr != nil {
		cmd = cmd.WithErrorOutput(cfg.Stderr)
	}
	if cfg.FFmpegPath != "" {
		cmd = cmd.SetFfmpegPath(cfg.FFmpegPath)
	}
	gshade.Logger().Debug("starting ffmpeg", "file", filename, "codec", cfg.Codec, "pix_fmt", cfg.PixelFormat)
	errc := make(chan error, 1)
	go func() {
		err := cmd.Run()
		if err != nil {
			err = fmt.Errorf("ffmpeg: %w", err)
			pr.CloseWithError(err)
		} else {
			pr.CloseWithError(io.ErrClosedPipe)
		}
		errc <- err
	}()
	return &VideoEncoder{
		cfg:  cfg,
		pw:   pw,
		errc: errc,
	}, nil
}

func (cfg VideoConfig) args() (inputArgs, outputArgs ffmpeg.KwArgs) {
	inputArgs = ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgba",
		"s":       strconv.Itoa(cfg.Width) + "x" + strconv.Itoa(cfg.Height),
		"r":       strconv.Itoa(cfg.FPS),
	}
	outputArgs = ffmpeg.KwArgs{
		"c:v":     cfg.Codec,
		"pix_fmt": cfg.PixelFormat,
	}
	return inputArgs, outputArgs
}

// Frames returns the number of frames written so far.
func (ve *VideoEncoder) Frames() int { return ve.frames }

// WriteFrame writes img as the next frame. img must have the configured size.
// NRGBA pixels are sent unpremultiplied, which matches ffmpeg's rgba.
func (ve *VideoEncoder) WriteFrame(img *image.NRGBA) error {
	if ve.closed {
		return errors.New("write to closed VideoEncoder")
	}
	bb := img.Bounds()
	if bb.Dx() != ve.cfg.Width || bb.Dy() != ve.cfg.Height {
		return fmt.Errorf("frame size %dx%d does not match video %dx%d", bb.Dx(), bb.Dy(), ve.cfg.Width, ve.cfg.Height)
	}
	rowLen := 4 * bb.Dx()
	if img.Stride == rowLen {
		start := img.PixOffset(bb.Min.X, bb.Min.Y)
		_, err := ve.pw.Write(img.Pix[start : start+rowLen*bb.Dy()])
		if err != nil {
			return err
		}
	} else {
		for y := bb.Min.Y; y < bb.Max.Y; y++ {
			start := img.PixOffset(bb.Min.X, y)
			_, err := ve.pw.Write(img.Pix[start : start+rowLen])
			if err != nil {
				return err
			}
		}
	}
	ve.frames++
	return nil
}

// Close signals end of input and waits for ffmpeg to finish writing the file.
func (ve *VideoEncoder) Close() error {
	if ve.closed {
		return errors.New("VideoEncoder already closed")
	}
	ve.closed = true
	ve.pw.Close()
	err := <-ve.errc
	gshade.Logger().Info("video encoded", "frames", ve.frames, "err", err)
	return err
}
